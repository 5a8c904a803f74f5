// Package monitor exposes process runtime health (heap, goroutines,
// GC pauses) alongside the domain metrics, so a scrape can tell a
// stalled scan loop apart from a starved process.
package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// SystemMonitor samples Go runtime statistics on a fixed interval.
type SystemMonitor struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	metrics struct {
		memUsage    prometheus.Gauge
		goroutines  prometheus.Gauge
		heapObjects prometheus.Gauge
		heapAlloc   prometheus.Gauge
		gcPause     prometheus.Gauge
	}
	wg sync.WaitGroup
}

// NewSystemMonitor creates a monitor and starts its sampling loop.
func NewSystemMonitor(ctx context.Context, logger *zap.Logger) (*SystemMonitor, error) {
	ctx, cancel := context.WithCancel(ctx)
	m := &SystemMonitor{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	m.metrics.memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_process_memory_usage_percent",
		Help: "Allocated heap as a share of memory obtained from the OS",
	})
	m.metrics.goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_process_goroutines",
		Help: "Current number of goroutines",
	})
	m.metrics.heapObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_process_heap_objects",
		Help: "Current number of heap objects",
	})
	m.metrics.heapAlloc = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_process_heap_alloc_bytes",
		Help: "Current heap allocation in bytes",
	})
	m.metrics.gcPause = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flasharb_process_gc_pause_ms",
		Help: "Most recent GC pause duration in milliseconds",
	})

	prometheus.MustRegister(m.metrics.memUsage)
	prometheus.MustRegister(m.metrics.goroutines)
	prometheus.MustRegister(m.metrics.heapObjects)
	prometheus.MustRegister(m.metrics.heapAlloc)
	prometheus.MustRegister(m.metrics.gcPause)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.monitor()
	}()

	return m, nil
}

func (m *SystemMonitor) monitor() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.collectMetrics()
		}
	}
}

func (m *SystemMonitor) collectMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.metrics.memUsage.Set(memoryShare(&memStats))
	m.metrics.goroutines.Set(float64(runtime.NumGoroutine()))
	m.metrics.heapObjects.Set(float64(memStats.HeapObjects))
	m.metrics.heapAlloc.Set(float64(memStats.HeapAlloc))
	m.metrics.gcPause.Set(lastGCPauseMs(&memStats))
}

// GetMetrics returns a point-in-time snapshot, for log lines and
// tests.
func (m *SystemMonitor) GetMetrics() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"mem_usage":    int64(memoryShare(&memStats)),
		"goroutines":   int64(runtime.NumGoroutine()),
		"heap_objects": int64(memStats.HeapObjects),
		"heap_alloc":   int64(memStats.HeapAlloc),
		"gc_pause":     lastGCPauseMs(&memStats),
	}
}

// Cleanup stops the sampling loop, waits for it to exit and releases
// the gauge registrations so a restarted monitor can re-register.
func (m *SystemMonitor) Cleanup() error {
	m.cancel()
	m.wg.Wait()
	prometheus.Unregister(m.metrics.memUsage)
	prometheus.Unregister(m.metrics.goroutines)
	prometheus.Unregister(m.metrics.heapObjects)
	prometheus.Unregister(m.metrics.heapAlloc)
	prometheus.Unregister(m.metrics.gcPause)
	return nil
}

func memoryShare(s *runtime.MemStats) float64 {
	if s.Sys == 0 {
		return 0
	}
	return float64(s.Alloc) / float64(s.Sys) * 100
}

func lastGCPauseMs(s *runtime.MemStats) float64 {
	return float64(s.PauseNs[(s.NumGC+255)%256]) / float64(time.Millisecond)
}
