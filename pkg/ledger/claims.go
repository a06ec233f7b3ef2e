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

const bpsDenominator = 10_000

// SplitFee splits pending into the protocol fee and the amount paid to the
// user. The fee is rounded down.
func SplitFee(pending *big.Int, feeRateBps uint64) (net *big.Int, fee *big.Int) {
	fee = new(big.Int).Mul(pending, new(big.Int).SetUint64(feeRateBps))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	net = new(big.Int).Sub(pending, fee)
	return net, fee
}

// ClaimRewards pays out user's pending reward in the reward asset, withholding
// the protocol fee once the ledger is fee-aware.
func (l *Ledger) ClaimRewards(ctx context.Context, user common.Address) (*ClaimReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var version Version
	paid := false
	receipt, err := helpers.WrapTxAndCommitDetached(ctx, func(tx *gorm.DB) (*ClaimReceipt, error) {
		v, state, err := l.loadVersion(tx)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, ErrNotInitialized
		}
		version = v

		staker, err := findStaker(tx, user)
		if err != nil {
			return nil, err
		}
		if staker == nil {
			return nil, ErrNotAStaker
		}
		pending, err := parseAmount("pending_reward", staker.PendingReward)
		if err != nil {
			return nil, err
		}
		if pending.Sign() == 0 {
			return nil, ErrNoPendingReward
		}

		var vault *FeeVault
		feeRateBps := uint64(0)
		if v >= Version_FeeAware {
			if vault, err = loadFeeVault(tx); err != nil {
				return nil, err
			}
			feeRateBps = vault.FeeRateBps
		}
		net, fee := SplitFee(pending, feeRateBps)

		res := tx.Model(&Staker{}).Where("address = ?", staker.Address).Update("pending_reward", "0")
		if res.Error != nil {
			return nil, errors.Wrap(res.Error, "failed to clear pending reward")
		}
		if fee.Sign() > 0 {
			balance, err := parseAmount("fee_balance", vault.FeeBalance)
			if err != nil {
				return nil, err
			}
			if err := updateFeeBalance(tx, balance.Add(balance, fee)); err != nil {
				return nil, err
			}
		}

		if net.Sign() > 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := l.rewardAsset.Mint(ctx, l.farm, user, net); err != nil {
				return nil, wrapTransferError("claim", err)
			}
			paid = true
		}
		return &ClaimReceipt{Net: net, Fee: fee}, nil
	}, l.db)
	_ = l.metricsSink.Incr(metricsTypes.Metric_Incr_Claim, append(statusLabel(err), metricsTypes.MetricsLabel{
		Name:  "version",
		Value: version.String(),
	}), 1)
	if err != nil {
		if paid {
			l.logSettlementLost("ClaimRewards", err, zap.String("user", user.Hex()))
		}
		l.logFailure("ClaimRewards", err, zap.String("user", user.Hex()))
		return nil, err
	}

	l.logger.Sugar().Debugw("Claimed rewards",
		zap.String("user", user.Hex()),
		zap.String("net", receipt.Net.String()),
		zap.String("fee", receipt.Fee.String()),
	)
	l.publish(eventBusTypes.Event_RewardsClaimed, &eventBusTypes.RewardsClaimedData{
		User:   utils.NormalizeAddress(user),
		Amount: new(big.Int).Set(receipt.Net),
	})
	return receipt, nil
}
