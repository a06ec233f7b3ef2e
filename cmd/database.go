package cmd

import (
	"context"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Initialize the ledger database and apply migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		defer l.Sync() //nolint:errcheck

		if err := cfg.Validate(); err != nil {
			return err
		}

		grm, err := openDatabase(cfg, l)
		if err != nil {
			l.Sugar().Errorw("Failed to open database", zap.Error(err))
			return err
		}
		defer func() {
			if sqlDb, err := grm.DB(); err == nil {
				_ = sqlDb.Close()
			}
		}()

		if err := migrateDatabase(grm, cfg, l); err != nil {
			l.Sugar().Errorw("Failed to migrate database", zap.Error(err))
			return err
		}
		l.Sugar().Infow("Database migrated", zap.String("storageDriver", string(cfg.StorageDriver)))
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the stored ledger against its accounting invariants",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		defer l.Sync() //nolint:errcheck

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx := context.Background()
		rt, err := bootstrap(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.ledger.VerifyInvariants(ctx); err != nil {
			l.Sugar().Errorw("Ledger invariants violated", zap.Error(err))
			return err
		}
		l.Sugar().Info("Ledger invariants hold")
		return nil
	},
}
