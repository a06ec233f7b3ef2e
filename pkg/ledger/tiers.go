package ledger

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/tokenfarm/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres/helpers"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TierKey_Short  uint64 = 10
	TierKey_Medium uint64 = 100
	TierKey_Long   uint64 = 1000
)

// TierKeys are the only tiers a ledger has, in ascending order.
var TierKeys = []uint64{TierKey_Short, TierKey_Medium, TierKey_Long}

func isTierKey(key uint64) bool {
	for _, k := range TierKeys {
		if k == key {
			return true
		}
	}
	return false
}

// TierForCycles selects the tier for the number of cycles since a staker's
// last accrual. Ranges are half-open: [0,100) short, [100,1000) medium and
// [1000,inf) long.
func TierForCycles(cyclesPassed uint64) uint64 {
	switch {
	case cyclesPassed < TierKey_Medium:
		return TierKey_Short
	case cyclesPassed < TierKey_Long:
		return TierKey_Medium
	default:
		return TierKey_Long
	}
}

// TierTable is an ordered view of tier key to rate.
type TierTable = orderedmap.OrderedMap[uint64, *big.Int]

func (l *Ledger) loadTiers(tx *gorm.DB) (*TierTable, error) {
	rows := make([]*RewardTier, 0)
	res := tx.Order("tier_key asc").Find(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to load reward tiers")
	}
	tiers := orderedmap.New[uint64, *big.Int](len(rows))
	for _, row := range rows {
		rate, err := parseAmount("rate", row.Rate)
		if err != nil {
			return nil, err
		}
		tiers.Set(row.TierKey, rate)
	}
	return tiers, nil
}

// rateFor returns the rate of the tier selected for cyclesPassed.
func rateFor(tiers *TierTable, cyclesPassed uint64) (*big.Int, error) {
	key := TierForCycles(cyclesPassed)
	rate, ok := tiers.Get(key)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTier, "tier %d is not configured", key)
	}
	return rate, nil
}

// Tiers returns every tier rate, ordered by ascending tier key.
func (l *Ledger) Tiers(ctx context.Context) (*TierTable, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.loadTiers(l.db.WithContext(ctx))
}

// UpdateRewardRange overwrites the rate of an existing tier. Only the owner
// may call it.
func (l *Ledger) UpdateRewardRange(ctx context.Context, caller common.Address, tierKey uint64, newRate *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := helpers.WrapTxAndCommitWithContext(ctx, func(tx *gorm.DB) (interface{}, error) {
		state, err := l.loadState(tx)
		if err != nil {
			return nil, err
		}
		if err := requireOwner(state, caller); err != nil {
			return nil, err
		}
		if !isTierKey(tierKey) {
			return nil, ErrUnknownTier
		}
		if newRate == nil || newRate.Sign() < 0 {
			return nil, ErrInvalidAmount
		}

		res := tx.Model(&RewardTier{}).Where("tier_key = ?", tierKey).Update("rate", newRate.String())
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "failed to update reward tier")
		}
		if res.RowsAffected == 0 {
			return nil, ErrUnknownTier
		}
		return nil, nil
	}, l.db)
	if err != nil {
		l.logFailure("UpdateRewardRange", err, zap.Uint64("tierKey", tierKey))
		return err
	}

	l.logger.Sugar().Infow("Updated reward tier",
		zap.Uint64("tierKey", tierKey),
		zap.String("rate", newRate.String()),
	)
	l.publish(eventBusTypes.Event_RangeRewardUpdated, &eventBusTypes.RangeRewardUpdatedData{
		TierKey: tierKey,
		Rate:    new(big.Int).Set(newRate),
	})
	return nil
}
