package cmd

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/ledger"
	"github.com/Layr-Labs/tokenfarm/pkg/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Run a distribution sweep over every staker as the owner",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		defer l.Sync() //nolint:errcheck

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rt, err := bootstrap(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer rt.Close()

		cycle := viper.GetUint64(config.DistributeCycle)
		if cycle == 0 {
			cycle, err = rt.cycles.Current(ctx)
			if err != nil {
				return err
			}
		}

		count, err := rt.ledger.CountStakers(ctx)
		if err != nil {
			return err
		}

		summary, err := distributeWithProgress(ctx, rt.ledger, cfg, cycle, count)
		if err != nil {
			l.Sugar().Errorw("Distribution failed", zap.Error(err), zap.Uint64("cycle", cycle))
			return err
		}

		l.Sugar().Infow("Distribution complete",
			zap.Uint64("cycle", summary.Cycle),
			zap.Uint64("stakersRewarded", summary.StakersRewarded),
			zap.String("totalApplied", summary.TotalApplied.String()),
			zap.String("expected", summary.Expected.String()),
			zap.String("dust", summary.Dust.String()),
		)
		return nil
	},
}

// distributeWithProgress sweeps the roster one batch at a time. Roster slots
// are dense, so the cursor doubles as the number of stakers visited.
func distributeWithProgress(ctx context.Context, l *ledger.Ledger, cfg *config.Config, cycle uint64, count int64) (*ledger.DistributionSummary, error) {
	bar := progressbar.Default(count, fmt.Sprintf("distributing cycle %d", cycle))
	defer bar.Close() //nolint:errcheck

	var summary *ledger.DistributionSummary
	caller := cfg.GetOwnerAddress()
	afterSlot := uint64(0)
	for {
		batch, next, done, err := l.DistributeBatch(ctx, caller, cycle, afterSlot, cfg.DistributionConfig.BatchSize)
		if err != nil {
			return summary, err
		}
		if summary == nil {
			summary = batch
		} else {
			summary.Merge(batch)
		}
		_ = bar.Set(int(next))
		if done {
			return summary, nil
		}
		afterSlot = next
	}
}
