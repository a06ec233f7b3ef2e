// Package ledger implements the staking and reward ledger: stake accounting,
// tiered reward distribution, claims, the protocol fee vault and the one-way
// upgrade from the base version to the fee-aware version.
//
// All state lives in the database. A Ledger serializes mutations behind a
// single writer lock and runs each one in a transaction, so every failure
// leaves the ledger unchanged.
package ledger

import (
	"context"
	"math/big"
	"sync"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/cycles"
	"github.com/Layr-Labs/tokenfarm/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Asset is a fungible asset ledger the farm moves value through.
type Asset interface {
	Address() common.Address
	TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Mint(ctx context.Context, caller, to common.Address, amount *big.Int) error
	Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

type Ledger struct {
	mu sync.RWMutex

	db           *gorm.DB
	logger       *zap.Logger
	globalConfig *config.Config

	// farm is the ledger's own account in both asset ledgers
	farm        common.Address
	stakeAsset  Asset
	rewardAsset Asset
	cycles      cycles.Source
	eventBus    eventBusTypes.IEventBus
	metricsSink *metrics.MetricsSink
}

func NewLedger(
	grm *gorm.DB,
	stakeAsset Asset,
	rewardAsset Asset,
	cycleSource cycles.Source,
	eb eventBusTypes.IEventBus,
	ms *metrics.MetricsSink,
	l *zap.Logger,
	cfg *config.Config,
) (*Ledger, error) {
	if grm == nil {
		return nil, errors.New("database is required")
	}
	if stakeAsset == nil || rewardAsset == nil {
		return nil, errors.New("stake and reward assets are required")
	}
	if cycleSource == nil {
		return nil, errors.New("cycle source is required")
	}
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &Ledger{
		db:           grm,
		logger:       l,
		globalConfig: cfg,
		farm:         cfg.GetFarmAddress(),
		stakeAsset:   stakeAsset,
		rewardAsset:  rewardAsset,
		cycles:       cycleSource,
		eventBus:     eb,
		metricsSink:  ms,
	}, nil
}

// FarmAddress is the account holding staked principal.
func (l *Ledger) FarmAddress() common.Address {
	return l.farm
}

func (l *Ledger) loadState(tx *gorm.DB) (*LedgerState, error) {
	var state LedgerState
	res := tx.Where("id = ?", singletonId).First(&state)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, errors.Wrap(res.Error, "failed to load ledger state")
	}
	return &state, nil
}

func (l *Ledger) loadVersion(tx *gorm.DB) (Version, *LedgerState, error) {
	state, err := l.loadState(tx)
	if err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return Version_Uninitialized, nil, nil
		}
		return Version_Uninitialized, nil, err
	}
	v, err := ParseVersion(state.Version)
	if err != nil {
		return Version_Uninitialized, nil, err
	}
	return v, state, nil
}

func requireOwner(state *LedgerState, caller common.Address) error {
	if !utils.AreAddressesEqual(state.Owner, utils.NormalizeAddress(caller)) {
		return ErrUnauthorized
	}
	return nil
}

// observeCycle returns the current cycle. The value recorded in the ledger
// state is a floor, so a source that restarts lower cannot rewind accrual.
func (l *Ledger) observeCycle(ctx context.Context, state *LedgerState) (uint64, error) {
	c, err := l.cycles.Current(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read current cycle")
	}
	if c < state.CurrentCycle {
		return state.CurrentCycle, nil
	}
	return c, nil
}

func (l *Ledger) updateState(tx *gorm.DB, updates map[string]interface{}) error {
	res := tx.Model(&LedgerState{}).Where("id = ?", singletonId).Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update ledger state")
	}
	return nil
}

func (l *Ledger) publish(name eventBusTypes.EventName, data any) {
	if l.eventBus == nil {
		return
	}
	l.eventBus.Publish(&eventBusTypes.Event{Name: name, Data: data})
}

func statusLabel(err error) []metricsTypes.MetricsLabel {
	status := "success"
	if err != nil {
		status = "error"
	}
	return []metricsTypes.MetricsLabel{{Name: "status", Value: status}}
}

func (l *Ledger) recordTotal(total *big.Int) {
	f, _ := new(big.Float).SetInt(total).Float64()
	_ = l.metricsSink.Gauge(metricsTypes.Metric_Gauge_TotalStakingBalance, f, nil)
}

// logFailure logs unexpected errors. Caller errors (bad input, wrong state)
// are logged at debug level.
func (l *Ledger) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	if isCallerError(err) {
		l.logger.Sugar().Debugw("Ledger operation rejected", fieldsToArgs(fields)...)
		return
	}
	l.logger.Sugar().Errorw("Ledger operation failed", fieldsToArgs(fields)...)
}

// logSettlementLost reports an asset movement whose ledger transaction then
// failed to commit. The two sides disagree until an operator reconciles them.
func (l *Ledger) logSettlementLost(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	l.logger.Sugar().Errorw("Asset moved but ledger commit failed", fieldsToArgs(fields)...)
}

func fieldsToArgs(fields []zap.Field) []interface{} {
	args := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return args
}

var callerErrors = []error{
	ErrInvalidAmount,
	ErrNotAStaker,
	ErrNotAnActiveStaker,
	ErrNoPendingReward,
	ErrUnknownTier,
	ErrUnauthorized,
	ErrZeroFeeBalance,
	ErrAlreadyInitialized,
	ErrNotInitialized,
	ErrNotUpgraded,
	ErrInvalidFeeRate,
	ErrAssetMismatch,
}

func isCallerError(err error) bool {
	for _, e := range callerErrors {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
