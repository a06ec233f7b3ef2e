// Package rpcServer exposes the ledger over a JSON HTTP API.
package rpcServer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/distributionQueue"
	"github.com/Layr-Labs/tokenfarm/pkg/ledger"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics"
	"github.com/Layr-Labs/tokenfarm/pkg/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type RpcServerConfig struct {
	HttpPort     int
	AllowOrigins []string
}

type RpcServer struct {
	config       *RpcServerConfig
	ledger       *ledger.Ledger
	queue        *distributionQueue.DistributionQueue
	tokens       map[common.Address]*token.Token
	metricsSink  *metrics.MetricsSink
	logger       *zap.Logger
	globalConfig *config.Config
}

// NewRpcServer builds the API. tokens are served under /v1/tokens and may be
// empty outside of local environments.
func NewRpcServer(
	cfg *RpcServerConfig,
	l *ledger.Ledger,
	dq *distributionQueue.DistributionQueue,
	tokens []*token.Token,
	ms *metrics.MetricsSink,
	logger *zap.Logger,
	globalConfig *config.Config,
) *RpcServer {
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	byAddress := make(map[common.Address]*token.Token, len(tokens))
	for _, t := range tokens {
		byAddress[t.Address()] = t
	}
	return &RpcServer{
		config:       cfg,
		ledger:       l,
		queue:        dq,
		tokens:       byAddress,
		metricsSink:  ms,
		logger:       logger,
		globalConfig: globalConfig,
	}
}

func (rpc *RpcServer) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(rpc.metricsMiddleware)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/health", WrapHandlerFunc(rpc.handleHealth)).Methods(http.MethodGet)
	v1.HandleFunc("/version", WrapHandlerFunc(rpc.handleGetVersion)).Methods(http.MethodGet)

	v1.HandleFunc("/stakers", WrapHandlerFunc(rpc.handleListStakers)).Methods(http.MethodGet)
	v1.HandleFunc("/stakers/{address}", WrapHandlerFunc(rpc.handleGetStaker)).Methods(http.MethodGet)
	v1.HandleFunc("/stakers/{address}/deposit", WrapHandlerFunc(rpc.handleDeposit)).Methods(http.MethodPost)
	v1.HandleFunc("/stakers/{address}/withdraw", WrapHandlerFunc(rpc.handleWithdraw)).Methods(http.MethodPost)
	v1.HandleFunc("/stakers/{address}/claim", WrapHandlerFunc(rpc.handleClaim)).Methods(http.MethodPost)
	v1.HandleFunc("/total-staking-balance", WrapHandlerFunc(rpc.handleTotalStakingBalance)).Methods(http.MethodGet)

	v1.HandleFunc("/distribute", WrapHandlerFunc(rpc.handleDistribute)).Methods(http.MethodPost)
	v1.HandleFunc("/tiers", WrapHandlerFunc(rpc.handleListTiers)).Methods(http.MethodGet)
	v1.HandleFunc("/tiers/{key}", WrapHandlerFunc(rpc.handleUpdateTier)).Methods(http.MethodPut)

	v1.HandleFunc("/fee", WrapHandlerFunc(rpc.handleGetFee)).Methods(http.MethodGet)
	v1.HandleFunc("/fees/withdraw", WrapHandlerFunc(rpc.handleWithdrawFee)).Methods(http.MethodPost)
	v1.HandleFunc("/upgrade", WrapHandlerFunc(rpc.handleUpgrade)).Methods(http.MethodPost)

	if len(rpc.tokens) > 0 {
		v1.HandleFunc("/tokens/{token}/balances/{address}", WrapHandlerFunc(rpc.handleTokenBalance)).Methods(http.MethodGet)
		v1.HandleFunc("/tokens/{token}/mint", WrapHandlerFunc(rpc.handleTokenMint)).Methods(http.MethodPost)
		v1.HandleFunc("/tokens/{token}/approve", WrapHandlerFunc(rpc.handleTokenApprove)).Methods(http.MethodPost)
	}

	router.NotFoundHandler = WrapHandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return HTTPError(fmt.Errorf("no route for %s %s", r.Method, r.URL.Path), http.StatusNotFound)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: rpc.config.AllowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}

// Start serves the API on the configured port until ctx is done.
func (rpc *RpcServer) Start(ctx context.Context) (*http.Server, error) {
	if rpc.config.HttpPort <= 0 {
		return nil, fmt.Errorf("invalid http port %d", rpc.config.HttpPort)
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", rpc.config.HttpPort),
		Handler:           rpc.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// sweeps run inside the request
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		rpc.logger.Sugar().Infow("Starting HTTP server", zap.Int("port", rpc.config.HttpPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rpc.logger.Sugar().Errorw("HTTP server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		rpc.logger.Sugar().Infow("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			rpc.logger.Sugar().Errorw("Failed to shut down HTTP server", zap.Error(err))
		}
	}()
	return server, nil
}
