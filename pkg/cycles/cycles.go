// Package cycles provides the distribution-cycle counter the ledger sweeps against.
package cycles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Source reports the current cycle. Values never decrease.
type Source interface {
	Current(ctx context.Context) (uint64, error)
}

// ManualSource is a counter advanced explicitly or by a ticker.
type ManualSource struct {
	mu    sync.Mutex
	value uint64
}

func NewManualSource(start uint64) *ManualSource {
	return &ManualSource{value: start}
}

func (m *ManualSource) Current(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value, nil
}

// Advance moves the counter forward by n and returns the new value.
func (m *ManualSource) Advance(n uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value += n
	return m.value
}

// Set moves the counter to value. Moving backwards is an error.
func (m *ManualSource) Set(value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value < m.value {
		return fmt.Errorf("cycle %d is before the current cycle %d", value, m.value)
	}
	m.value = value
	return nil
}

// StartTicker advances the counter by one every interval until ctx is done.
func (m *ManualSource) StartTicker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Advance(1)
			}
		}
	}()
}

// BlockNumberReader is the part of an ethereum client the block source needs.
type BlockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthereumSource uses the block height of an ethereum node as the cycle,
// as the on-chain deployment of the farm does.
type EthereumSource struct {
	client BlockNumberReader
	logger *zap.Logger

	mu   sync.Mutex
	last uint64
}

func NewEthereumSource(client BlockNumberReader, l *zap.Logger) *EthereumSource {
	return &EthereumSource{client: client, logger: l}
}

// DialEthereumSource connects to the node at rpcUrl.
func DialEthereumSource(ctx context.Context, rpcUrl string, l *zap.Logger) (*EthereumSource, error) {
	client, err := ethclient.DialContext(ctx, rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum node: %w", err)
	}
	return NewEthereumSource(client, l), nil
}

// Current returns the latest block number. A node that reports a lower block
// than previously seen (e.g. a lagging load-balanced backend) does not move
// the cycle backwards.
func (e *EthereumSource) Current(ctx context.Context) (uint64, error) {
	block, err := e.client.BlockNumber(ctx)
	if err != nil {
		e.logger.Sugar().Errorw("Failed to fetch block number", zap.Error(err))
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if block < e.last {
		e.logger.Sugar().Warnw("Node reported an older block", zap.Uint64("block", block), zap.Uint64("last", e.last))
		return e.last, nil
	}
	e.last = block
	return block, nil
}

// NewSourceFromConfig builds the source selected by cycles.source.
func NewSourceFromConfig(ctx context.Context, cfg *config.Config, l *zap.Logger) (Source, error) {
	switch cfg.CyclesConfig.Source {
	case config.CycleSource_Ethereum:
		return DialEthereumSource(ctx, cfg.CyclesConfig.EthereumRpcUrl, l)
	case config.CycleSource_Manual, "":
		m := NewManualSource(0)
		if cfg.CyclesConfig.TickInterval > 0 {
			m.StartTicker(ctx, cfg.CyclesConfig.TickInterval)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported cycle source '%s'", cfg.CyclesConfig.Source)
}
