package ledger

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres/helpers"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
	"gorm.io/gorm"
)

// expectedPrecision is the number of decimal places kept in Expected.
const expectedPrecision = 18

// DistributionSummary describes the rewards applied by a sweep.
//
// Expected is the exact, real-valued sum of participation x rate x cycles
// (truncated to 18 decimal places) and Dust is what rounding each staker's
// reward down left undistributed. Dust is never negative and is less than
// StakersRewarded.
type DistributionSummary struct {
	Cycle           uint64
	StakersRewarded uint64
	TotalApplied    *big.Int
	Expected        decimal.Decimal
	Dust            decimal.Decimal
}

func newDistributionSummary(cycle uint64) *DistributionSummary {
	return &DistributionSummary{
		Cycle:        cycle,
		TotalApplied: big.NewInt(0),
		Expected:     decimal.Zero,
		Dust:         decimal.Zero,
	}
}

// Merge folds the summary of a later batch of the same sweep into s.
func (s *DistributionSummary) Merge(other *DistributionSummary) {
	s.StakersRewarded += other.StakersRewarded
	s.TotalApplied.Add(s.TotalApplied, other.TotalApplied)
	s.Expected = s.Expected.Add(other.Expected)
	s.Dust = s.Expected.Sub(decimal.NewFromBigInt(s.TotalApplied, 0))
}

// truncatedQuotient returns num/den truncated to expectedPrecision places.
func truncatedQuotient(num, den *big.Int) decimal.Decimal {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(expectedPrecision), nil)
	scaled := new(big.Int).Mul(num, scale)
	scaled.Quo(scaled, den)
	return decimal.NewFromBigInt(scaled, -expectedPrecision)
}

// ComputeReward is floor(staked x rate x cyclesPassed / total). It is zero
// when total is zero.
func ComputeReward(staked, rate *big.Int, cyclesPassed uint64, total *big.Int) *big.Int {
	if total.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(staked, rate)
	num.Mul(num, new(big.Int).SetUint64(cyclesPassed))
	return num.Quo(num, total)
}

func (l *Ledger) batchSize() int {
	if l.globalConfig != nil && l.globalConfig.DistributionConfig.BatchSize > 0 {
		return l.globalConfig.DistributionConfig.BatchSize
	}
	return config.DefaultDistributionBatchSize
}

// sweepContext holds the values that stay fixed for a whole sweep.
type sweepContext struct {
	cycle uint64
	total *big.Int
	tiers *TierTable
}

func (l *Ledger) prepareSweep(tx *gorm.DB, caller common.Address, currentCycle uint64) (*sweepContext, error) {
	state, err := l.loadState(tx)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(state, caller); err != nil {
		return nil, err
	}
	total, err := parseAmount("total_staking_balance", state.TotalStakingBalance)
	if err != nil {
		return nil, err
	}
	tiers, err := l.loadTiers(tx)
	if err != nil {
		return nil, err
	}
	return &sweepContext{cycle: currentCycle, total: total, tiers: tiers}, nil
}

// distributeBatch accrues rewards for up to limit stakers after afterSlot in
// one transaction. It returns the slot of the last staker visited and whether
// the end of the roster was reached.
func (l *Ledger) distributeBatch(ctx context.Context, sc *sweepContext, afterSlot uint64, limit int) (*DistributionSummary, uint64, bool, error) {
	type batchResult struct {
		summary  *DistributionSummary
		lastSlot uint64
		done     bool
	}

	span, ctx := ddTracer.StartSpanFromContext(ctx, "ledger.distributeBatch")
	span.SetTag("cycle", sc.cycle)
	span.SetTag("after_slot", afterSlot)
	defer span.Finish()

	res, err := helpers.WrapTxAndCommitWithContext(ctx, func(tx *gorm.DB) (*batchResult, error) {
		summary := newDistributionSummary(sc.cycle)
		rows, err := listStakersAfter(tx, afterSlot, limit)
		if err != nil {
			return nil, err
		}
		lastSlot := afterSlot
		expectedNum := big.NewInt(0)

		for _, row := range rows {
			lastSlot = row.Slot
			staked, err := parseAmount("staked_amount", row.StakedAmount)
			if err != nil {
				return nil, err
			}
			if staked.Sign() == 0 || row.LastAccrualPoint >= sc.cycle || sc.total.Sign() == 0 {
				continue
			}
			cyclesPassed := sc.cycle - row.LastAccrualPoint
			rate, err := rateFor(sc.tiers, cyclesPassed)
			if err != nil {
				return nil, err
			}
			pending, err := parseAmount("pending_reward", row.PendingReward)
			if err != nil {
				return nil, err
			}

			reward := ComputeReward(staked, rate, cyclesPassed, sc.total)

			// reward and accrual point move together so a partial sweep never
			// advances a staker without paying it
			updates := map[string]interface{}{
				"pending_reward":     new(big.Int).Add(pending, reward).String(),
				"last_accrual_point": sc.cycle,
			}
			if res := tx.Model(&Staker{}).Where("address = ?", row.Address).Updates(updates); res.Error != nil {
				return nil, errors.Wrap(res.Error, "failed to apply reward")
			}

			num := new(big.Int).Mul(staked, rate)
			num.Mul(num, new(big.Int).SetUint64(cyclesPassed))
			expectedNum.Add(expectedNum, num)

			summary.StakersRewarded++
			summary.TotalApplied.Add(summary.TotalApplied, reward)
		}

		if sc.total.Sign() > 0 {
			summary.Expected = truncatedQuotient(expectedNum, sc.total)
		}
		summary.Dust = summary.Expected.Sub(decimal.NewFromBigInt(summary.TotalApplied, 0))

		if err := tx.Model(&LedgerState{}).
			Where("id = ? and current_cycle < ?", singletonId, sc.cycle).
			Update("current_cycle", sc.cycle).Error; err != nil {
			return nil, errors.Wrap(err, "failed to record current cycle")
		}
		return &batchResult{summary: summary, lastSlot: lastSlot, done: len(rows) < limit}, nil
	}, l.db)
	if err != nil {
		span.SetTag("error", true)
		span.SetTag("error.message", err.Error())
		return nil, afterSlot, false, err
	}
	span.SetTag("stakers_rewarded", res.summary.StakersRewarded)
	return res.summary, res.lastSlot, res.done, nil
}

// DistributeAll accrues rewards for every staker up to currentCycle. Only the
// owner may sweep.
//
// The roster is processed in batches, each in its own transaction, and ctx is
// checked between batches. A cancelled sweep returns ctx.Err() with the
// completed batches committed; calling again with the same cycle finishes
// the rest, since stakers already swept accrue nothing more.
func (l *Ledger) DistributeAll(ctx context.Context, caller common.Address, currentCycle uint64) (*DistributionSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	span, ctx := ddTracer.StartSpanFromContext(ctx, "ledger.DistributeAll")
	span.SetTag("cycle", currentCycle)
	defer span.Finish()

	start := time.Now()
	summary, err := l.distributeAll(ctx, caller, currentCycle)
	_ = l.metricsSink.Timing(metricsTypes.Metric_Timing_DistributionDuration, time.Since(start), []metricsTypes.MetricsLabel{
		{Name: "hasError", Value: strconv.FormatBool(err != nil)},
	})
	if summary != nil {
		_ = l.metricsSink.Incr(metricsTypes.Metric_Incr_DistributionStakersRewarded, nil, float64(summary.StakersRewarded))
	}
	if err != nil {
		span.SetTag("error", true)
		span.SetTag("error.message", err.Error())
		l.logFailure("DistributeAll", err, zap.Uint64("cycle", currentCycle))
		return summary, err
	}
	_ = l.metricsSink.Gauge(metricsTypes.Metric_Gauge_CurrentCycle, float64(currentCycle), nil)

	l.logger.Sugar().Infow("Distributed rewards",
		zap.Uint64("cycle", currentCycle),
		zap.Uint64("stakersRewarded", summary.StakersRewarded),
		zap.String("totalApplied", summary.TotalApplied.String()),
		zap.String("dust", summary.Dust.String()),
		zap.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

func (l *Ledger) distributeAll(ctx context.Context, caller common.Address, currentCycle uint64) (*DistributionSummary, error) {
	sc, err := l.prepareSweep(l.db.WithContext(ctx), caller, currentCycle)
	if err != nil {
		return nil, err
	}

	summary := newDistributionSummary(currentCycle)
	afterSlot := uint64(0)
	limit := l.batchSize()
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		batch, lastSlot, done, err := l.distributeBatch(ctx, sc, afterSlot, limit)
		if err != nil {
			return summary, err
		}
		summary.Merge(batch)
		if done {
			return summary, nil
		}
		afterSlot = lastSlot
	}
}

// DistributeBatch runs a single batch of a sweep, starting after afterSlot.
// It returns the cursor for the next call and whether the roster is
// exhausted. Unlike DistributeAll the writer lock is released between
// batches, so the total used for participation can change between calls.
func (l *Ledger) DistributeBatch(ctx context.Context, caller common.Address, currentCycle uint64, afterSlot uint64, limit int) (*DistributionSummary, uint64, bool, error) {
	if limit <= 0 {
		limit = l.batchSize()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sc, err := l.prepareSweep(l.db.WithContext(ctx), caller, currentCycle)
	if err != nil {
		l.logFailure("DistributeBatch", err, zap.Uint64("cycle", currentCycle))
		return nil, afterSlot, false, err
	}
	summary, next, done, err := l.distributeBatch(ctx, sc, afterSlot, limit)
	if err != nil {
		l.logFailure("DistributeBatch", err, zap.Uint64("cycle", currentCycle), zap.Uint64("afterSlot", afterSlot))
		return nil, afterSlot, false, err
	}
	_ = l.metricsSink.Incr(metricsTypes.Metric_Incr_DistributionStakersRewarded, nil, float64(summary.StakersRewarded))
	return summary, next, done, nil
}

// CountStakers returns the roster size.
func (l *Ledger) CountStakers(ctx context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var count int64
	if err := l.db.WithContext(ctx).Model(&Staker{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count stakers")
	}
	return count, nil
}
