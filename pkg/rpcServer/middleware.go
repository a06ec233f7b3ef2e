package rpcServer

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Layr-Labs/tokenfarm/pkg/metrics/metricsTypes"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.statusCode = code
	s.ResponseWriter.WriteHeader(code)
}

func clientIp(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rpc *RpcServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		pattern := ""
		if route := mux.CurrentRoute(r); route != nil {
			pattern, _ = route.GetPathTemplate()
		}
		labels := []metricsTypes.MetricsLabel{
			{Name: "method", Value: r.Method},
			{Name: "path", Value: r.URL.Path},
			{Name: "pattern", Value: pattern},
			{Name: "status_code", Value: strconv.Itoa(rec.statusCode)},
			{Name: "client_ip", Value: clientIp(r)},
		}
		_ = rpc.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, labels, 1)
		_ = rpc.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), labels)

		rpc.logger.Sugar().Debugw("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
