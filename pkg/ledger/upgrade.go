package ledger

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/tokenfarm/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres"
	"github.com/Layr-Labs/tokenfarm/pkg/postgres/helpers"
	"github.com/Layr-Labs/tokenfarm/pkg/sqlite"
	"github.com/Layr-Labs/tokenfarm/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BaseParams struct {
	Owner       common.Address
	StakeAsset  common.Address
	RewardAsset common.Address
	// TierRates must contain exactly the keys in TierKeys.
	TierRates map[uint64]*big.Int
}

func isDuplicateKeyError(err error) bool {
	return postgres.IsDuplicateKeyError(err) || sqlite.IsDuplicateKeyError(err)
}

func validateTierRates(rates map[uint64]*big.Int) error {
	for key, rate := range rates {
		if !isTierKey(key) {
			return errors.Wrapf(ErrUnknownTier, "tier %d", key)
		}
		if rate == nil || rate.Sign() < 0 {
			return errors.Wrapf(ErrInvalidAmount, "rate for tier %d", key)
		}
	}
	for _, key := range TierKeys {
		if _, ok := rates[key]; !ok {
			return errors.Wrapf(ErrUnknownTier, "missing rate for tier %d", key)
		}
	}
	return nil
}

// InitializeBase moves an empty ledger to the base version, recording the
// owner, the asset addresses and the initial tier rates. It runs at most once.
func (l *Ledger) InitializeBase(ctx context.Context, params BaseParams) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := helpers.WrapTxAndCommitWithContext(ctx, func(tx *gorm.DB) (interface{}, error) {
		current, _, err := l.loadVersion(tx)
		if err != nil {
			return nil, err
		}
		if _, err := current.Transition(Version_Base); err != nil {
			return nil, err
		}
		if params.Owner == (common.Address{}) {
			return nil, errors.Wrap(ErrUnauthorized, "owner must not be the zero address")
		}
		if params.StakeAsset != l.stakeAsset.Address() || params.RewardAsset != l.rewardAsset.Address() {
			return nil, ErrAssetMismatch
		}
		if err := validateTierRates(params.TierRates); err != nil {
			return nil, err
		}
		cycle, err := l.cycles.Current(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read current cycle")
		}

		state := &LedgerState{
			ID:                  singletonId,
			Owner:               utils.NormalizeAddress(params.Owner),
			StakeAsset:          utils.NormalizeAddress(params.StakeAsset),
			RewardAsset:         utils.NormalizeAddress(params.RewardAsset),
			Version:             Version_Base.String(),
			TotalStakingBalance: "0",
			CurrentCycle:        cycle,
		}
		if res := tx.Create(state); res.Error != nil {
			if isDuplicateKeyError(res.Error) {
				return nil, ErrAlreadyInitialized
			}
			return nil, errors.Wrap(res.Error, "failed to create ledger state")
		}

		tiers := make([]*RewardTier, 0, len(TierKeys))
		for _, key := range TierKeys {
			tiers = append(tiers, &RewardTier{TierKey: key, Rate: params.TierRates[key].String()})
		}
		if res := tx.Create(&tiers); res.Error != nil {
			return nil, errors.Wrap(res.Error, "failed to create reward tiers")
		}
		return nil, nil
	}, l.db)
	if err != nil {
		l.logFailure("InitializeBase", err, zap.String("owner", params.Owner.Hex()))
		return err
	}

	l.logger.Sugar().Infow("Initialized ledger",
		zap.String("version", Version_Base.String()),
		zap.String("owner", params.Owner.Hex()),
	)
	l.publish(eventBusTypes.Event_VersionUpgraded, &eventBusTypes.VersionUpgradedData{Version: Version_Base.String()})
	return nil
}

// UpgradeSetFee moves the ledger to the fee-aware version with the given fee
// rate. Staker records, the roster and the total are not modified.
func (l *Ledger) UpgradeSetFee(ctx context.Context, caller common.Address, feeRateBps uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := helpers.WrapTxAndCommitWithContext(ctx, func(tx *gorm.DB) (interface{}, error) {
		current, state, err := l.loadVersion(tx)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, ErrNotInitialized
		}
		if err := requireOwner(state, caller); err != nil {
			return nil, err
		}
		next, err := current.Transition(Version_FeeAware)
		if err != nil {
			return nil, err
		}
		if feeRateBps == 0 || feeRateBps > bpsDenominator {
			return nil, ErrInvalidFeeRate
		}

		if res := tx.Create(&FeeVault{ID: singletonId, FeeRateBps: feeRateBps, FeeBalance: "0"}); res.Error != nil {
			if isDuplicateKeyError(res.Error) {
				return nil, ErrAlreadyInitialized
			}
			return nil, errors.Wrap(res.Error, "failed to create fee vault")
		}
		if err := l.updateState(tx, map[string]interface{}{"version": next.String()}); err != nil {
			return nil, err
		}
		return nil, nil
	}, l.db)
	if err != nil {
		l.logFailure("UpgradeSetFee", err, zap.Uint64("feeRateBps", feeRateBps))
		return err
	}

	l.logger.Sugar().Infow("Upgraded ledger",
		zap.String("version", Version_FeeAware.String()),
		zap.Uint64("feeRateBps", feeRateBps),
	)
	l.publish(eventBusTypes.Event_VersionUpgraded, &eventBusTypes.VersionUpgradedData{Version: Version_FeeAware.String()})
	return nil
}

func (l *Ledger) Version(ctx context.Context) (Version, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	v, _, err := l.loadVersion(l.db.WithContext(ctx))
	return v, err
}

// Owner returns the owner recorded at initialization.
func (l *Ledger) Owner(ctx context.Context) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, err := l.loadState(l.db.WithContext(ctx))
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(state.Owner), nil
}
