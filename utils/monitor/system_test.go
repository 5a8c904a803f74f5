package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSystemMonitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon, err := NewSystemMonitor(ctx, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, mon)
	defer mon.Cleanup()

	mon.collectMetrics()

	metrics := mon.GetMetrics()
	assert.Contains(t, metrics, "mem_usage")
	assert.Contains(t, metrics, "goroutines")
	assert.Contains(t, metrics, "heap_objects")
	assert.Contains(t, metrics, "heap_alloc")
	assert.Contains(t, metrics, "gc_pause")

	goroutines, ok := metrics["goroutines"].(int64)
	assert.True(t, ok)
	assert.Greater(t, goroutines, int64(0))

	heapAlloc, ok := metrics["heap_alloc"].(int64)
	assert.True(t, ok)
	assert.Greater(t, heapAlloc, int64(0))

	gcPause, ok := metrics["gc_pause"].(float64)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, gcPause, float64(0))
}

func TestCleanupStopsSampling(t *testing.T) {
	mon, err := NewSystemMonitor(context.Background(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, mon.Cleanup())

	// The snapshot path keeps working after shutdown.
	assert.NotNil(t, mon.GetMetrics())
}
