package ledger

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/tokenfarm/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres/helpers"
	"github.com/Layr-Labs/tokenfarm/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// findStaker returns nil without error when the address never deposited.
func findStaker(tx *gorm.DB, user common.Address) (*Staker, error) {
	var staker Staker
	res := tx.Where("address = ?", utils.NormalizeAddress(user)).Limit(1).Find(&staker)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to load staker")
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &staker, nil
}

func nextSlot(tx *gorm.DB) (uint64, error) {
	var maxSlot uint64
	res := tx.Model(&Staker{}).Select("coalesce(max(slot), 0)").Scan(&maxSlot)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to find next roster slot")
	}
	return maxSlot + 1, nil
}

type depositResult struct {
	cycle uint64
	total *big.Int
}

// Deposit pulls amount of the stake asset from user into the farm and credits
// it to user's stake. The first deposit registers user in the roster.
func (l *Ledger) Deposit(ctx context.Context, user common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	moved := false
	res, err := helpers.WrapTxAndCommitDetached(ctx, func(tx *gorm.DB) (*depositResult, error) {
		state, err := l.loadState(tx)
		if err != nil {
			return nil, err
		}
		cycle, err := l.observeCycle(ctx, state)
		if err != nil {
			return nil, err
		}
		total, err := parseAmount("total_staking_balance", state.TotalStakingBalance)
		if err != nil {
			return nil, err
		}

		staker, err := findStaker(tx, user)
		if err != nil {
			return nil, err
		}
		if staker == nil {
			slot, err := nextSlot(tx)
			if err != nil {
				return nil, err
			}
			staker = &Staker{
				Address:          utils.NormalizeAddress(user),
				Slot:             slot,
				StakedAmount:     amount.String(),
				PendingReward:    "0",
				LastAccrualPoint: cycle,
			}
			if res := tx.Create(staker); res.Error != nil {
				return nil, errors.Wrap(res.Error, "failed to register staker")
			}
		} else {
			staked, err := parseAmount("staked_amount", staker.StakedAmount)
			if err != nil {
				return nil, err
			}
			updates := map[string]interface{}{
				"staked_amount": new(big.Int).Add(staked, amount).String(),
			}
			// cycles spent with nothing staked earn nothing
			if staked.Sign() == 0 {
				updates["last_accrual_point"] = cycle
			}
			if res := tx.Model(&Staker{}).Where("address = ?", staker.Address).Updates(updates); res.Error != nil {
				return nil, errors.Wrap(res.Error, "failed to update staker")
			}
		}

		total.Add(total, amount)
		if err := l.updateState(tx, map[string]interface{}{
			"total_staking_balance": total.String(),
			"current_cycle":         cycle,
		}); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.stakeAsset.TransferFrom(ctx, l.farm, user, l.farm, amount); err != nil {
			return nil, wrapTransferError("deposit", err)
		}
		moved = true
		return &depositResult{cycle: cycle, total: total}, nil
	}, l.db)
	_ = l.metricsSink.Incr(metricsTypes.Metric_Incr_Deposit, statusLabel(err), 1)
	if err != nil {
		if moved {
			l.logSettlementLost("Deposit", err, zap.String("user", user.Hex()), zap.String("amount", amount.String()))
		}
		l.logFailure("Deposit", err, zap.String("user", user.Hex()), zap.String("amount", amount.String()))
		return err
	}

	l.recordTotal(res.total)
	l.logger.Sugar().Debugw("Deposited stake",
		zap.String("user", user.Hex()),
		zap.String("amount", amount.String()),
		zap.Uint64("cycle", res.cycle),
	)
	l.publish(eventBusTypes.Event_Deposited, &eventBusTypes.DepositedData{
		User:   utils.NormalizeAddress(user),
		Amount: new(big.Int).Set(amount),
		Cycle:  res.cycle,
	})
	return nil
}

type withdrawResult struct {
	amount *big.Int
	total  *big.Int
}

// Withdraw returns user's entire stake. Pending rewards are left in place and
// remain claimable.
func (l *Ledger) Withdraw(ctx context.Context, user common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	moved := false
	res, err := helpers.WrapTxAndCommitDetached(ctx, func(tx *gorm.DB) (*withdrawResult, error) {
		state, err := l.loadState(tx)
		if err != nil {
			return nil, err
		}
		staker, err := findStaker(tx, user)
		if err != nil {
			return nil, err
		}
		if staker == nil {
			return nil, ErrNotAnActiveStaker
		}
		staked, err := parseAmount("staked_amount", staker.StakedAmount)
		if err != nil {
			return nil, err
		}
		if staked.Sign() == 0 {
			return nil, ErrNotAnActiveStaker
		}
		total, err := parseAmount("total_staking_balance", state.TotalStakingBalance)
		if err != nil {
			return nil, err
		}

		res := tx.Model(&Staker{}).Where("address = ?", staker.Address).Update("staked_amount", "0")
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "failed to update staker")
		}
		total.Sub(total, staked)
		if total.Sign() < 0 {
			return nil, errors.Errorf("total staking balance would become negative withdrawing %s", staked)
		}
		if err := l.updateState(tx, map[string]interface{}{"total_staking_balance": total.String()}); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.stakeAsset.Transfer(ctx, l.farm, user, staked); err != nil {
			return nil, wrapTransferError("withdraw", err)
		}
		moved = true
		return &withdrawResult{amount: staked, total: total}, nil
	}, l.db)
	_ = l.metricsSink.Incr(metricsTypes.Metric_Incr_Withdraw, statusLabel(err), 1)
	if err != nil {
		if moved {
			l.logSettlementLost("Withdraw", err, zap.String("user", user.Hex()))
		}
		l.logFailure("Withdraw", err, zap.String("user", user.Hex()))
		return nil, err
	}

	l.recordTotal(res.total)
	l.logger.Sugar().Debugw("Withdrew stake",
		zap.String("user", user.Hex()),
		zap.String("amount", res.amount.String()),
	)
	l.publish(eventBusTypes.Event_Withdrawn, &eventBusTypes.WithdrawnData{
		User:   utils.NormalizeAddress(user),
		Amount: new(big.Int).Set(res.amount),
	})
	return res.amount, nil
}

// GetUserInfo returns the record of a user that has deposited at least once.
func (l *Ledger) GetUserInfo(ctx context.Context, user common.Address) (*StakerRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	staker, err := findStaker(l.db.WithContext(ctx), user)
	if err != nil {
		return nil, err
	}
	if staker == nil {
		return nil, ErrNotAStaker
	}
	return staker.toRecord()
}

// ListStakers returns the roster in registration order.
func (l *Ledger) ListStakers(ctx context.Context) ([]common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	addresses := make([]string, 0)
	res := l.db.WithContext(ctx).Model(&Staker{}).Order("slot asc").Pluck("address", &addresses)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to list stakers")
	}
	return utils.Map(addresses, func(a string, i uint64) common.Address {
		return common.HexToAddress(a)
	}), nil
}

// GetAllStakers is an alias of ListStakers.
func (l *Ledger) GetAllStakers(ctx context.Context) ([]common.Address, error) {
	return l.ListStakers(ctx)
}

func listStakersAfter(tx *gorm.DB, afterSlot uint64, limit int) ([]*Staker, error) {
	rows := make([]*Staker, 0)
	res := tx.Where("slot > ?", afterSlot).Order("slot asc").Limit(limit).Find(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to list stakers")
	}
	return rows, nil
}

// ListStakerRecords pages through the roster. Pass the Slot of the last
// record returned as afterSlot to fetch the next page; 0 starts at the
// beginning.
func (l *Ledger) ListStakerRecords(ctx context.Context, afterSlot uint64, limit int) ([]*StakerRecord, error) {
	if limit <= 0 {
		limit = l.batchSize()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	rows, err := listStakersAfter(l.db.WithContext(ctx), afterSlot, limit)
	if err != nil {
		return nil, err
	}
	records := make([]*StakerRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// TotalStakingBalance is zero until the ledger is initialized.
func (l *Ledger) TotalStakingBalance(ctx context.Context) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, err := l.loadState(l.db.WithContext(ctx))
	if err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseAmount("total_staking_balance", state.TotalStakingBalance)
}
