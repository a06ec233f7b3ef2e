package ledger

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/tokenfarm/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres/helpers"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func loadFeeVault(tx *gorm.DB) (*FeeVault, error) {
	var vault FeeVault
	res := tx.Where("id = ?", singletonId).Limit(1).Find(&vault)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to load fee vault")
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotUpgraded
	}
	return &vault, nil
}

func updateFeeBalance(tx *gorm.DB, balance *big.Int) error {
	res := tx.Model(&FeeVault{}).Where("id = ?", singletonId).Update("fee_balance", balance.String())
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update fee balance")
	}
	return nil
}

// WithdrawFee pays the whole fee balance to the owner.
func (l *Ledger) WithdrawFee(ctx context.Context, caller common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	paid := false
	amount, err := helpers.WrapTxAndCommitDetached(ctx, func(tx *gorm.DB) (*big.Int, error) {
		v, state, err := l.loadVersion(tx)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, ErrNotInitialized
		}
		if err := requireOwner(state, caller); err != nil {
			return nil, err
		}
		if v < Version_FeeAware {
			return nil, ErrNotUpgraded
		}
		vault, err := loadFeeVault(tx)
		if err != nil {
			return nil, err
		}
		balance, err := parseAmount("fee_balance", vault.FeeBalance)
		if err != nil {
			return nil, err
		}
		if balance.Sign() == 0 {
			return nil, ErrZeroFeeBalance
		}
		if err := updateFeeBalance(tx, big.NewInt(0)); err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.rewardAsset.Mint(ctx, l.farm, caller, balance); err != nil {
			return nil, wrapTransferError("withdraw fee", err)
		}
		paid = true
		return balance, nil
	}, l.db)
	if err != nil {
		if paid {
			l.logSettlementLost("WithdrawFee", err, zap.String("caller", caller.Hex()))
		}
		l.logFailure("WithdrawFee", err, zap.String("caller", caller.Hex()))
		return nil, err
	}

	l.logger.Sugar().Infow("Withdrew protocol fees", zap.String("amount", amount.String()))
	l.publish(eventBusTypes.Event_FeeClaimed, &eventBusTypes.FeeClaimedData{Amount: new(big.Int).Set(amount)})
	return amount, nil
}

// Fee returns the fee rate in basis points, 0 before the upgrade.
func (l *Ledger) Fee(ctx context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	vault, err := loadFeeVault(l.db.WithContext(ctx))
	if err != nil {
		if errors.Is(err, ErrNotUpgraded) {
			return 0, nil
		}
		return 0, err
	}
	return vault.FeeRateBps, nil
}

// FeeBalance returns the fees withheld and not yet withdrawn.
func (l *Ledger) FeeBalance(ctx context.Context) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	vault, err := loadFeeVault(l.db.WithContext(ctx))
	if err != nil {
		if errors.Is(err, ErrNotUpgraded) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseAmount("fee_balance", vault.FeeBalance)
}
