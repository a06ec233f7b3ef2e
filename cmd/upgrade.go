package cmd

import (
	"context"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade the ledger to the fee-aware version",
	Long:  "Upgrade the ledger to the fee-aware version. Claims made after the upgrade withhold --upgrade.fee-bps of the reward into the fee vault.",
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

		feeBps := viper.GetUint64(config.UpgradeFeeBps)
		if err := rt.ledger.UpgradeSetFee(ctx, cfg.GetOwnerAddress(), feeBps); err != nil {
			l.Sugar().Errorw("Failed to upgrade ledger", zap.Error(err))
			return err
		}
		v, err := rt.ledger.Version(ctx)
		if err != nil {
			return err
		}
		l.Sugar().Infow("Ledger upgraded", zap.String("version", v.String()), zap.Uint64("feeRateBps", feeBps))
		return nil
	},
}
