// Package distributionQueue runs reward sweeps one at a time on a background
// worker, fed by the HTTP API and the periodic scheduler.
package distributionQueue

import (
	"context"
	"fmt"
	"time"

	"github.com/Layr-Labs/tokenfarm/pkg/cycles"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/metricsTypes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const queueSize = 100

var ErrQueueFull = errors.New("distribution queue is full, please wait and try again")

func NewDistributionQueue(d Distributor, source cycles.Source, ms *metrics.MetricsSink, logger *zap.Logger) *DistributionQueue {
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &DistributionQueue{
		logger:      logger,
		distributor: d,
		cycles:      source,
		metricsSink: ms,
		// allow the queue to buffer up to 100 requests
		queue: make(chan *DistributionMessage, queueSize),
		done:  make(chan struct{}),
	}
}

func (dq *DistributionQueue) recordBacklog() {
	_ = dq.metricsSink.Gauge(metricsTypes.Metric_Gauge_DistributionQueueBacklogSize, float64(len(dq.queue)), nil)
}

// Enqueue adds a message to the queue without waiting for it to be processed.
// It fails with ErrQueueFull rather than block.
func (dq *DistributionQueue) Enqueue(payload *DistributionMessage) error {
	select {
	case dq.queue <- payload:
		dq.logger.Sugar().Infow("Enqueued distribution request",
			zap.String("caller", payload.Data.Caller.Hex()),
			zap.Uint64("cycle", payload.Data.Cycle),
		)
		dq.recordBacklog()
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueAndWait adds a request to the queue and waits for the sweep to finish
// or for ctx to be cancelled. A cancelled ctx also cancels the sweep once it
// starts; batches already committed stay committed.
func (dq *DistributionQueue) EnqueueAndWait(ctx context.Context, data DistributionRequest) (*DistributionResponse, error) {
	responseChan := make(chan *DistributionResponse, 1)
	payload := &DistributionMessage{
		Data:         data,
		Context:      ctx,
		ResponseChan: responseChan,
	}
	if err := dq.Enqueue(payload); err != nil {
		return nil, err
	}

	dq.logger.Sugar().Debugw("Waiting for distribution response", zap.Uint64("cycle", data.Cycle))

	select {
	case response := <-responseChan:
		return response, nil
	case <-ctx.Done():
		dq.logger.Sugar().Infow("Received context.Done()")
		select {
		case response := <-responseChan:
			return response, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// Close stops the worker. Requests still queued are not processed.
func (dq *DistributionQueue) Close() {
	dq.logger.Sugar().Infow("Closing distribution queue")
	close(dq.done)
}

// Process is the worker loop. It runs until Close is called.
func (dq *DistributionQueue) Process() {
	for {
		select {
		case <-dq.done:
			dq.logger.Sugar().Infow("Distribution queue closed")
			return
		case msg := <-dq.queue:
			dq.recordBacklog()
			response := dq.handle(msg)

			status := "success"
			if response.Error != nil {
				status = "error"
			}
			_ = dq.metricsSink.Incr(metricsTypes.Metric_Incr_DistributionQueueRequest, []metricsTypes.MetricsLabel{
				{Name: "status", Value: status},
			}, 1)

			if msg.ResponseChan != nil {
				select {
				case msg.ResponseChan <- response:
				default:
					dq.logger.Sugar().Infow("No receiver for distribution response, dropping")
				}
			}
		}
	}
}

func (dq *DistributionQueue) handle(msg *DistributionMessage) *DistributionResponse {
	ctx := msg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return &DistributionResponse{Error: err}
	}

	cycle := msg.Data.Cycle
	if cycle == 0 {
		current, err := dq.cycles.Current(ctx)
		if err != nil {
			return &DistributionResponse{Error: errors.Wrap(err, "failed to read current cycle")}
		}
		cycle = current
	}

	dq.logger.Sugar().Infow("Processing distribution request",
		zap.String("caller", msg.Data.Caller.Hex()),
		zap.Uint64("cycle", cycle),
	)
	summary, err := dq.distributor.DistributeAll(ctx, msg.Data.Caller, cycle)
	if err != nil {
		dq.logger.Sugar().Errorw("Distribution request failed",
			zap.Uint64("cycle", cycle),
			zap.Error(err),
		)
	}
	return &DistributionResponse{Summary: summary, Error: err}
}

// StartScheduler enqueues a sweep at the current cycle every interval until
// ctx is done. A full queue skips the tick.
func (dq *DistributionQueue) StartScheduler(ctx context.Context, caller common.Address, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid scheduler interval %s", interval)
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := dq.Enqueue(&DistributionMessage{
					Data:    DistributionRequest{Caller: caller},
					Context: ctx,
				})
				if err != nil {
					dq.logger.Sugar().Warnw("Skipping scheduled distribution", zap.Error(err))
				}
			}
		}
	}()
	dq.logger.Sugar().Infow("Started distribution scheduler", zap.Duration("interval", interval))
	return nil
}
