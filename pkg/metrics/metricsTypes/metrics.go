package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_Deposit                       = "ledger.deposit"
	Metric_Incr_Withdraw                      = "ledger.withdraw"
	Metric_Incr_Claim                         = "ledger.claim"
	Metric_Incr_DistributionStakersRewarded   = "ledger.distribution.stakersRewarded"
	Metric_Incr_HttpRequest                   = "rpc.http.request"
	Metric_Gauge_TotalStakingBalance          = "ledger.totalStakingBalance"
	Metric_Gauge_CurrentCycle                 = "ledger.currentCycle"
	Metric_Timing_DistributionDuration        = "ledger.distribution.duration"
	Metric_Timing_HttpDuration                = "rpc.http.duration"
	Metric_Incr_DistributionQueueRequest      = "distributionQueue.request"
	Metric_Gauge_DistributionQueueBacklogSize = "distributionQueue.backlog"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_Deposit,
			Labels: []string{"status"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_Withdraw,
			Labels: []string{"status"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_Claim,
			Labels: []string{"status", "version"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_DistributionStakersRewarded,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name: Metric_Incr_HttpRequest,
			Labels: []string{
				"method",
				"path",
				"pattern",
				"status_code",
				"client_ip",
			},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_DistributionQueueRequest,
			Labels: []string{"status"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_TotalStakingBalance,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_CurrentCycle,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_DistributionQueueBacklogSize,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_DistributionDuration,
			Labels: []string{"hasError"},
		},
		MetricsTypeConfig{
			Name: Metric_Timing_HttpDuration,
			Labels: []string{
				"method",
				"path",
				"pattern",
				"status_code",
				"client_ip",
			},
		},
	},
}
