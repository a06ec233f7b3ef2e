package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/internal/tracer"
	"github.com/Layr-Labs/tokenfarm/internal/version"
	"github.com/Layr-Labs/tokenfarm/pkg/distributionQueue"
	"github.com/Layr-Labs/tokenfarm/pkg/eventBus/eventBusTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/logger"
	"github.com/Layr-Labs/tokenfarm/pkg/rpcServer"
	"github.com/Layr-Labs/tokenfarm/pkg/shutdown"
	"github.com/Layr-Labs/tokenfarm/pkg/token"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the TokenFarm ledger and its HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		defer l.Sync() //nolint:errcheck

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}

		l.Sugar().Infow("tokenfarm run",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.String("environment", cfg.Environment.String()),
			zap.String("storageDriver", string(cfg.StorageDriver)),
		)

		tracer.StartTracer(cfg.DataDogConfig.EnableTracing, cfg.Environment)
		defer tracer.StopTracer()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rt, err := bootstrap(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to bootstrap ledger", zap.Error(err))
		}
		defer rt.Close()

		go logEvents(ctx, rt, l)

		dq := distributionQueue.NewDistributionQueue(rt.ledger, rt.cycles, rt.sink, l)
		go dq.Process()
		defer dq.Close()

		if cfg.DistributionConfig.Interval > 0 {
			owner := cfg.GetOwnerAddress()
			if err := dq.StartScheduler(ctx, owner, cfg.DistributionConfig.Interval); err != nil {
				l.Sugar().Fatalw("Failed to start distribution scheduler", zap.Error(err))
			}
			l.Sugar().Infow("Scheduled distributions",
				zap.Duration("interval", cfg.DistributionConfig.Interval),
				zap.String("caller", owner.Hex()),
			)
		}

		// the token endpoints let anyone mint and approve, so only a local devnet gets them
		var tokens []*token.Token
		if cfg.Environment == config.Environment_Local {
			tokens = []*token.Token{rt.stakeToken, rt.rewardToken}
		}

		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			HttpPort:     cfg.RpcConfig.HttpPort,
			AllowOrigins: cfg.RpcConfig.AllowOrigins,
		}, rt.ledger, dq, tokens, rt.sink, l, cfg)

		if _, err := rpc.Start(ctx); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		if cfg.PrometheusConfig.Enabled && rt.prometheus != nil {
			rt.prometheus.StartMetricsServer(ctx, cfg.PrometheusConfig.Port)
		}

		l.Sugar().Info("Started TokenFarm")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool, 1)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			cancel()
			// give the HTTP server a moment to drain before closing storage
			time.Sleep(time.Second)
			done <- true
		}, time.Second*5, l)
	},
}

// logEvents writes every ledger event to the log until ctx is done.
func logEvents(ctx context.Context, rt *farmRuntime, l *zap.Logger) {
	consumer := eventBusTypes.NewConsumer(ctx, 100)
	rt.eventBus.Subscribe(consumer)
	defer rt.eventBus.Unsubscribe(consumer)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-consumer.Channel:
			data, err := json.Marshal(event.Data)
			if err != nil {
				l.Sugar().Errorw("Failed to marshal event", zap.Error(err), zap.String("eventName", event.Name.String()))
				continue
			}
			l.Sugar().Infow("Ledger event",
				zap.String("eventName", event.Name.String()),
				zap.String("data", string(data)),
			)
		}
	}
}
