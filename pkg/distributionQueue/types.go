package distributionQueue

import (
	"context"

	"github.com/Layr-Labs/tokenfarm/pkg/cycles"
	"github.com/Layr-Labs/tokenfarm/pkg/ledger"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Distributor runs a full accrual sweep. It is satisfied by *ledger.Ledger.
type Distributor interface {
	DistributeAll(ctx context.Context, caller common.Address, currentCycle uint64) (*ledger.DistributionSummary, error)
}

// DistributionRequest asks for a sweep up to Cycle on behalf of Caller.
type DistributionRequest struct {
	Caller common.Address

	// Cycle to sweep up to. Zero means the current cycle of the queue's
	// cycle source at the time the request is processed.
	Cycle uint64
}

// DistributionMessage is a request sitting in the queue.
type DistributionMessage struct {
	Data DistributionRequest

	// Context of the caller; the sweep is cancelled with it. Nil means background.
	Context context.Context

	// ResponseChan receives the result. If nil, no response is sent.
	ResponseChan chan *DistributionResponse
}

type DistributionResponse struct {
	Summary *ledger.DistributionSummary
	Error   error
}

// DistributionQueue serializes sweep requests onto a single worker so that
// API calls and the scheduler never race each other.
type DistributionQueue struct {
	logger      *zap.Logger
	distributor Distributor
	cycles      cycles.Source
	metricsSink *metrics.MetricsSink

	queue chan *DistributionMessage
	done  chan struct{}
}
