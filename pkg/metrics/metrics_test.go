package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/Layr-Labs/tokenfarm/internal/config"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingClient struct {
	incrs   map[string]float64
	gauges  map[string]float64
	timings map[string]time.Duration
	labels  [][]metricsTypes.MetricsLabel
	flushed int
	err     error
}

func newCountingClient() *countingClient {
	return &countingClient{
		incrs:   make(map[string]float64),
		gauges:  make(map[string]float64),
		timings: make(map[string]time.Duration),
	}
}

func (c *countingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	c.incrs[name] += value
	c.labels = append(c.labels, labels)
	return c.err
}

func (c *countingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	c.gauges[name] = value
	return c.err
}

func (c *countingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	c.timings[name] = value
	return c.err
}

func (c *countingClient) Flush() {
	c.flushed++
}

func Test_MetricsSink(t *testing.T) {
	t.Run("Should fan out to every client", func(t *testing.T) {
		a := newCountingClient()
		b := newCountingClient()
		sink, err := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{a, b})
		assert.Nil(t, err)

		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_Deposit, nil, 1))
		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_Deposit, nil, 1))
		assert.Nil(t, sink.Gauge(metricsTypes.Metric_Gauge_TotalStakingBalance, 100, nil))
		assert.Nil(t, sink.Timing(metricsTypes.Metric_Timing_DistributionDuration, time.Second, nil))
		sink.Flush()

		for _, c := range []*countingClient{a, b} {
			assert.Equal(t, float64(2), c.incrs[metricsTypes.Metric_Incr_Deposit])
			assert.Equal(t, float64(100), c.gauges[metricsTypes.Metric_Gauge_TotalStakingBalance])
			assert.Equal(t, time.Second, c.timings[metricsTypes.Metric_Timing_DistributionDuration])
			assert.Equal(t, 1, c.flushed)
		}
	})
	t.Run("Should append default labels", func(t *testing.T) {
		c := newCountingClient()
		sink, _ := NewMetricsSink(&MetricsSinkConfig{
			DefaultLabels: []metricsTypes.MetricsLabel{{Name: "status", Value: "success"}},
		}, []metricsTypes.IMetricsClient{c})

		_ = sink.Incr(metricsTypes.Metric_Incr_Withdraw, nil, 1)
		assert.Equal(t, []metricsTypes.MetricsLabel{{Name: "status", Value: "success"}}, c.labels[0])
	})
	t.Run("Should keep going when a client fails", func(t *testing.T) {
		failing := newCountingClient()
		failing.err = errors.New("boom")
		ok := newCountingClient()
		sink, _ := NewMetricsSink(nil, []metricsTypes.IMetricsClient{failing, ok})

		err := sink.Incr(metricsTypes.Metric_Incr_Claim, nil, 1)
		assert.NotNil(t, err)
		assert.Equal(t, float64(1), ok.incrs[metricsTypes.Metric_Incr_Claim])
	})
	t.Run("Should do nothing without clients", func(t *testing.T) {
		sink := NewNoopMetricsSink()
		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_Claim, nil, 1))
	})
}

func Test_InitMetricsSinksFromConfig(t *testing.T) {
	l, _ := zap.NewDevelopment()

	cfg := &config.Config{}
	clients, pmc, err := InitMetricsSinksFromConfig(cfg, l)
	assert.Nil(t, err)
	assert.Len(t, clients, 0)
	assert.Nil(t, pmc)

	cfg.PrometheusConfig.Enabled = true
	clients, pmc, err = InitMetricsSinksFromConfig(cfg, l)
	assert.Nil(t, err)
	assert.Len(t, clients, 1)
	assert.NotNil(t, pmc)
}
