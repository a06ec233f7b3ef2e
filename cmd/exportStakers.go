package cmd

import (
	"context"
	"os"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/ledger"
	"github.com/Layr-Labs/tokenfarm/pkg/logger"
	"github.com/Layr-Labs/tokenfarm/pkg/utils"
	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type stakerCsvRow struct {
	Slot             uint64 `csv:"slot"`
	Address          string `csv:"address"`
	StakedAmount     string `csv:"staked_amount"`
	PendingReward    string `csv:"pending_reward"`
	LastAccrualPoint uint64 `csv:"last_accrual_point"`
}

var exportStakersCmd = &cobra.Command{
	Use:   "export-stakers",
	Short: "Write every staker record to a CSV file",
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

		rows, err := collectStakerRows(ctx, rt.ledger, cfg.DistributionConfig.BatchSize)
		if err != nil {
			return err
		}

		output := viper.GetString(config.ExportOutput)
		file, err := os.OpenFile(output, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer file.Close()

		if err := gocsv.MarshalFile(&rows, file); err != nil {
			l.Sugar().Errorw("Failed to write stakers", zap.Error(err), zap.String("output", output))
			return err
		}
		l.Sugar().Infow("Exported stakers", zap.Int("count", len(rows)), zap.String("output", output))
		return nil
	},
}

func collectStakerRows(ctx context.Context, l *ledger.Ledger, pageSize int) ([]*stakerCsvRow, error) {
	rows := make([]*stakerCsvRow, 0)
	afterSlot := uint64(0)
	for {
		page, err := l.ListStakerRecords(ctx, afterSlot, pageSize)
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			rows = append(rows, &stakerCsvRow{
				Slot:             r.Slot,
				Address:          utils.NormalizeAddress(r.Address),
				StakedAmount:     r.StakedAmount.String(),
				PendingReward:    r.PendingReward.String(),
				LastAccrualPoint: r.LastAccrualPoint,
			})
			afterSlot = r.Slot
		}
		if len(page) < pageSize {
			return rows, nil
		}
	}
}
