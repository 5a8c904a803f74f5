package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMetricsInitialization(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cfg := &MetricsConfig{
		ReportInterval: time.Second,
		LogMetrics:     true,
	}

	Initialize(cfg, logger)
	assert.NotNil(t, registry)
}

func TestScanMetrics(t *testing.T) {
	metrics := NewScanMetrics("test_scan")
	assert.NotNil(t, metrics)

	metrics.Cycles.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Cycles))

	metrics.PathsSkipped.Add(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.PathsSkipped))

	metrics.CycleDuration.Observe(1.5)
	assert.NotNil(t, metrics.CycleDuration)
}

func TestQuoteMetrics(t *testing.T) {
	metrics := NewQuoteMetrics("test_quote")
	assert.NotNil(t, metrics)

	metrics.Batches.Inc()
	metrics.Calls.Add(9)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Batches))
	assert.Equal(t, float64(9), testutil.ToFloat64(metrics.Calls))

	metrics.BatchLatency.Observe(0.05)
	metrics.BatchSize.Observe(9)
	assert.NotNil(t, metrics.BatchLatency)
}

func TestExecutionMetrics(t *testing.T) {
	metrics := NewExecutionMetrics("test_exec")
	assert.NotNil(t, metrics)

	metrics.DryRunRejections.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DryRunRejections))

	metrics.Executions.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Executions))

	metrics.GasUsed.Observe(450000)
	assert.NotNil(t, metrics.GasUsed)
}

func TestSuccessRate(t *testing.T) {
	scan := NewScanMetrics("test_rate_scan")
	exec := NewExecutionMetrics("test_rate_exec")

	assert.Equal(t, float64(0), exec.SuccessRate(scan.Attempts))

	scan.Attempts.Add(4)
	exec.Executions.Inc()
	assert.InDelta(t, 0.25, exec.SuccessRate(scan.Attempts), 1e-9)
}
