package metrics

import (
	"errors"
	"time"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/dogstatsd"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/prometheus"
	"go.uber.org/zap"
)

type MetricsSinkConfig struct {
	// DefaultLabels are appended to every metric. Only use labels every
	// configured metric declares.
	DefaultLabels []metricsTypes.MetricsLabel
}

// MetricsSink fans every metric out to all configured clients.
type MetricsSink struct {
	config  *MetricsSinkConfig
	clients []metricsTypes.IMetricsClient
}

func NewMetricsSink(cfg *MetricsSinkConfig, clients []metricsTypes.IMetricsClient) (*MetricsSink, error) {
	if cfg == nil {
		cfg = &MetricsSinkConfig{}
	}
	return &MetricsSink{
		config:  cfg,
		clients: clients,
	}, nil
}

// NewNoopMetricsSink returns a sink without clients.
func NewNoopMetricsSink() *MetricsSink {
	sink, _ := NewMetricsSink(nil, nil)
	return sink
}

func (ms *MetricsSink) withDefaults(labels []metricsTypes.MetricsLabel) []metricsTypes.MetricsLabel {
	if len(ms.config.DefaultLabels) == 0 {
		return labels
	}
	out := make([]metricsTypes.MetricsLabel, 0, len(labels)+len(ms.config.DefaultLabels))
	out = append(out, labels...)
	return append(out, ms.config.DefaultLabels...)
}

func (ms *MetricsSink) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	var errs error
	for _, client := range ms.clients {
		errs = errors.Join(errs, client.Incr(name, ms.withDefaults(labels), value))
	}
	return errs
}

func (ms *MetricsSink) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	var errs error
	for _, client := range ms.clients {
		errs = errors.Join(errs, client.Gauge(name, value, ms.withDefaults(labels)))
	}
	return errs
}

func (ms *MetricsSink) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	var errs error
	for _, client := range ms.clients {
		errs = errors.Join(errs, client.Timing(name, value, ms.withDefaults(labels)))
	}
	return errs
}

func (ms *MetricsSink) Flush() {
	for _, client := range ms.clients {
		client.Flush()
	}
}

// InitMetricsSinksFromConfig builds the clients enabled in cfg. The returned
// prometheus client is nil when prometheus is disabled.
func InitMetricsSinksFromConfig(cfg *config.Config, l *zap.Logger) ([]metricsTypes.IMetricsClient, *prometheus.PrometheusMetricsClient, error) {
	clients := make([]metricsTypes.IMetricsClient, 0)
	var pmc *prometheus.PrometheusMetricsClient

	if cfg.DataDogConfig.StatsdConfig.Enabled {
		dd, err := dogstatsd.NewDogStatsdMetricsClient(cfg.DataDogConfig.StatsdConfig.Url, cfg.DataDogConfig.StatsdConfig.SampleRate, l)
		if err != nil {
			l.Sugar().Errorw("Failed to create dogstatsd client", zap.Error(err))
			return nil, nil, err
		}
		clients = append(clients, dd)
		l.Sugar().Infow("DogStatsD metrics enabled", zap.String("url", cfg.DataDogConfig.StatsdConfig.Url))
	}

	if cfg.PrometheusConfig.Enabled {
		var err error
		pmc, err = prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		if err != nil {
			l.Sugar().Errorw("Failed to create prometheus client", zap.Error(err))
			return nil, nil, err
		}
		clients = append(clients, pmc)
		l.Sugar().Infow("Prometheus metrics enabled", zap.Int("port", cfg.PrometheusConfig.Port))
	}

	return clients, pmc, nil
}
