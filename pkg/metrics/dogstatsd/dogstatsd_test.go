package dogstatsd

import (
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/Layr-Labs/tokenfarm/pkg/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordedMetric struct {
	name  string
	value float64
	tags  []string
	rate  float64
}

type recordingClient struct {
	*statsd.NoOpClient
	recorded []recordedMetric
}

func (r *recordingClient) Count(name string, value int64, tags []string, rate float64) error {
	r.recorded = append(r.recorded, recordedMetric{name: name, value: float64(value), tags: tags, rate: rate})
	return nil
}

func (r *recordingClient) Gauge(name string, value float64, tags []string, rate float64) error {
	r.recorded = append(r.recorded, recordedMetric{name: name, value: value, tags: tags, rate: rate})
	return nil
}

func (r *recordingClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	r.recorded = append(r.recorded, recordedMetric{name: name, value: float64(value.Milliseconds()), tags: tags, rate: rate})
	return nil
}

func Test_DogStatsdMetricsClient(t *testing.T) {
	l, _ := zap.NewDevelopment()

	t.Run("Should forward metrics with labels as tags", func(t *testing.T) {
		rc := &recordingClient{NoOpClient: &statsd.NoOpClient{}}
		c := NewDogStatsdMetricsClientWithClient(rc, 0.5, l)

		assert.Nil(t, c.Incr(metricsTypes.Metric_Incr_Deposit, []metricsTypes.MetricsLabel{{Name: "status", Value: "success"}}, 1))
		assert.Nil(t, c.Gauge(metricsTypes.Metric_Gauge_TotalStakingBalance, 42, nil))
		assert.Nil(t, c.Timing(metricsTypes.Metric_Timing_DistributionDuration, 20*time.Millisecond, nil))
		c.Flush()

		assert.Len(t, rc.recorded, 3)
		assert.Equal(t, metricsTypes.Metric_Incr_Deposit, rc.recorded[0].name)
		assert.Equal(t, []string{"status:success"}, rc.recorded[0].tags)
		assert.Equal(t, 0.5, rc.recorded[0].rate)
		assert.Equal(t, float64(42), rc.recorded[1].value)
		assert.Equal(t, float64(20), rc.recorded[2].value)
	})
	t.Run("Should fall back to a full sample rate", func(t *testing.T) {
		rc := &recordingClient{NoOpClient: &statsd.NoOpClient{}}
		c := NewDogStatsdMetricsClientWithClient(rc, 0, l)
		assert.Nil(t, c.Incr(metricsTypes.Metric_Incr_Claim, nil, 1))
		assert.Equal(t, float64(1), rc.recorded[0].rate)
	})
}
