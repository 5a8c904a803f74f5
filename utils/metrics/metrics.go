package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

var (
	registry = prometheus.NewRegistry()
	logger   *zap.Logger
)

type MetricsConfig struct {
	ReportInterval time.Duration
	LogMetrics     bool
}

func Initialize(cfg *MetricsConfig, log *zap.Logger) {
	logger = log
	prometheus.DefaultRegisterer = registry
}

// Handler exposes the process registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

type ScanMetrics struct {
	Cycles        prometheus.Counter
	PathsEmitted  prometheus.Counter
	PathsSkipped  prometheus.Counter
	Attempts      prometheus.Counter
	CycleDuration prometheus.Histogram
}

func NewScanMetrics(namespace string) *ScanMetrics {
	return &ScanMetrics{
		Cycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of completed scan cycles",
		}),
		PathsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paths_emitted_total",
			Help:      "Total number of candidate paths enumerated",
		}),
		PathsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paths_skipped_total",
			Help:      "Total number of paths pruned by the blacklist",
		}),
		Attempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Total number of ladder evaluations started",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one full scan cycle",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

type QuoteMetrics struct {
	Batches       prometheus.Counter
	Calls         prometheus.Counter
	CallFailures  prometheus.Counter
	BatchFailures prometheus.Counter
	BatchLatency  prometheus.Histogram
	BatchSize     prometheus.Histogram
}

func NewQuoteMetrics(namespace string) *QuoteMetrics {
	return &QuoteMetrics{
		Batches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of aggregated quote round trips",
		}),
		Calls: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of logical quote calls",
		}),
		CallFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_failures_total",
			Help:      "Total number of quote calls that reverted or decoded empty",
		}),
		BatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Total number of aggregated round trips that failed outright",
		}),
		BatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_latency_seconds",
			Help:      "Latency of one aggregated round trip",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size_calls",
			Help:      "Number of calls packed into one round trip",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

type ExecutionMetrics struct {
	DryRunRejections   prometheus.Counter
	GasEstimateErrors  prometheus.Counter
	BelowFloor         prometheus.Counter
	Executions         prometheus.Counter
	ExecutionFailures  prometheus.Counter
	PathsBlacklisted   prometheus.Counter
	NetProfitUnits     prometheus.Counter
	GasUsed            prometheus.Histogram
	InclusionTime      prometheus.Histogram
}

func NewExecutionMetrics(namespace string) *ExecutionMetrics {
	return &ExecutionMetrics{
		DryRunRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dry_run_rejections_total",
			Help:      "Total number of trials rejected by the pre-commit dry run",
		}),
		GasEstimateErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_estimate_errors_total",
			Help:      "Total number of trials rejected at gas estimation",
		}),
		BelowFloor: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "below_floor_total",
			Help:      "Total number of trials below the net profit floor",
		}),
		Executions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of confirmed executions",
		}),
		ExecutionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_failures_total",
			Help:      "Total number of broadcast or inclusion failures",
		}),
		PathsBlacklisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paths_blacklisted_total",
			Help:      "Total number of paths blacklisted after an exhausted ladder",
		}),
		NetProfitUnits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "net_profit_units_total",
			Help:      "Cumulative net profit in settlement units",
		}),
		GasUsed: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_used",
			Help:      "Gas used per confirmed execution",
			Buckets:   prometheus.ExponentialBuckets(21000, 2, 10),
		}),
		InclusionTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inclusion_time_seconds",
			Help:      "Time from broadcast to inclusion",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

// SuccessRate derives confirmed executions over started attempts by
// reading the counters back out of the client library.
func (m *ExecutionMetrics) SuccessRate(attempts prometheus.Counter) float64 {
	total := counterValue(attempts)
	if total == 0 {
		return 0
	}
	return counterValue(m.Executions) / total
}

func counterValue(c prometheus.Counter) float64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		if logger != nil {
			logger.Error("Failed to read counter", zap.Error(err))
		}
		return 0
	}
	return metric.GetCounter().GetValue()
}
