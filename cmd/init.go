package cmd

import (
	"context"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/ledger"
	"github.com/Layr-Labs/tokenfarm/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var initLedgerCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the ledger with its owner, assets and tier rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		defer l.Sync() //nolint:errcheck

		if err := cfg.Validate(); err != nil {
			return err
		}

		rates, err := config.LoadTierRates(viper.GetString(config.InitTiersFile))
		if err != nil {
			return err
		}

		ctx := context.Background()
		rt, err := bootstrap(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer rt.Close()

		err = rt.ledger.InitializeBase(ctx, ledger.BaseParams{
			Owner:       cfg.GetOwnerAddress(),
			StakeAsset:  rt.stakeToken.Address(),
			RewardAsset: rt.rewardToken.Address(),
			TierRates:   rates,
		})
		if err != nil {
			l.Sugar().Errorw("Failed to initialize ledger", zap.Error(err))
			return err
		}
		l.Sugar().Infow("Ledger initialized",
			zap.String("owner", cfg.GetOwnerAddress().Hex()),
			zap.String("stakeAsset", rt.stakeToken.Address().Hex()),
			zap.String("rewardAsset", rt.rewardToken.Address().Hex()),
		)
		return nil
	},
}
