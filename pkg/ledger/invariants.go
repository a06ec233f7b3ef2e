package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// InvariantViolation describes ledger state that should be impossible.
type InvariantViolation struct {
	Name    string
	Message string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", v.Name, v.Message)
}

func isSqlite(tx *gorm.DB) bool {
	return tx.Dialector.Name() == "sqlite"
}

func sumStaked(tx *gorm.DB) (*big.Int, error) {
	var sum string
	query := `select coalesce(sum(staked_amount::numeric), 0)::text from stakers`
	if isSqlite(tx) {
		query = `select coalesce(sum_big(staked_amount), '0') from stakers`
	}
	if res := tx.Raw(query).Scan(&sum); res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to sum staked amounts")
	}
	return parseAmount("sum(staked_amount)", sum)
}

func countNegativeAmounts(tx *gorm.DB) (int64, error) {
	var count int64
	query := `
		select count(*) from stakers
		where staked_amount::numeric < 0 or pending_reward::numeric < 0
	`
	if isSqlite(tx) {
		query = `
			select count(*) from stakers
			where compare_big(staked_amount, '0') < 0 or compare_big(pending_reward, '0') < 0
		`
	}
	if res := tx.Raw(query).Scan(&count); res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to check staker amounts")
	}
	return count, nil
}

// VerifyInvariants checks the stored ledger against its accounting rules:
// the total staking balance equals the sum of stakes, no amount is negative,
// every tier is present and the fee vault exists exactly when the ledger is
// fee-aware. It returns the first violation found.
func (l *Ledger) VerifyInvariants(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx := l.db.WithContext(ctx)
	v, state, err := l.loadVersion(tx)
	if err != nil {
		return err
	}
	if state == nil {
		var count int64
		if err := tx.Model(&Staker{}).Count(&count).Error; err != nil {
			return errors.Wrap(err, "failed to count stakers")
		}
		if count > 0 {
			return &InvariantViolation{Name: "roster", Message: fmt.Sprintf("%d stakers before initialization", count)}
		}
		return nil
	}

	total, err := parseAmount("total_staking_balance", state.TotalStakingBalance)
	if err != nil {
		return err
	}
	sum, err := sumStaked(tx)
	if err != nil {
		return err
	}
	if total.Cmp(sum) != 0 {
		return &InvariantViolation{
			Name:    "total",
			Message: fmt.Sprintf("total staking balance %s does not equal the sum of stakes %s", total, sum),
		}
	}

	negative, err := countNegativeAmounts(tx)
	if err != nil {
		return err
	}
	if negative > 0 {
		return &InvariantViolation{Name: "amounts", Message: fmt.Sprintf("%d stakers hold negative amounts", negative)}
	}

	tiers, err := l.loadTiers(tx)
	if err != nil {
		return err
	}
	if tiers.Len() != len(TierKeys) {
		return &InvariantViolation{Name: "tiers", Message: fmt.Sprintf("expected %d tiers, found %d", len(TierKeys), tiers.Len())}
	}
	for _, key := range TierKeys {
		if _, ok := tiers.Get(key); !ok {
			return &InvariantViolation{Name: "tiers", Message: fmt.Sprintf("tier %d is missing", key)}
		}
	}

	vault, err := loadFeeVault(tx)
	switch {
	case errors.Is(err, ErrNotUpgraded):
		if v >= Version_FeeAware {
			return &InvariantViolation{Name: "feeVault", Message: "fee-aware ledger has no fee vault"}
		}
	case err != nil:
		return err
	default:
		if v < Version_FeeAware {
			return &InvariantViolation{Name: "feeVault", Message: "fee vault exists before the upgrade"}
		}
		balance, err := parseAmount("fee_balance", vault.FeeBalance)
		if err != nil {
			return err
		}
		if balance.Sign() < 0 {
			return &InvariantViolation{Name: "feeVault", Message: "fee balance is negative"}
		}
	}
	return nil
}
