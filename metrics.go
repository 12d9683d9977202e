package permuto

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    filterHistogram prometheus.Histogram
//	    growthCounter   prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordFilter(elements, vertices int, duration time.Duration, err error) {
//	    p.filterHistogram.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordFilter is called after each filter call.
	// elements is the number of input elements, vertices the number of
	// occupied lattice points, err is nil if successful.
	RecordFilter(elements, vertices int, duration time.Duration, err error)

	// RecordGrowth is called whenever the lattice hash table grows.
	RecordGrowth(capacity int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFilter(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordGrowth(int)                           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FilterCount      atomic.Int64
	FilterErrors     atomic.Int64
	FilterTotalNanos atomic.Int64
	ElementCount     atomic.Int64
	VertexCount      atomic.Int64
	GrowthCount      atomic.Int64
	MaxCapacity      atomic.Int64
}

// RecordFilter implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFilter(elements, vertices int, duration time.Duration, err error) {
	b.FilterCount.Add(1)
	b.FilterTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FilterErrors.Add(1)
		return
	}
	b.ElementCount.Add(int64(elements))
	b.VertexCount.Add(int64(vertices))
}

// RecordGrowth implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGrowth(capacity int) {
	b.GrowthCount.Add(1)
	c := int64(capacity)
	for {
		cur := b.MaxCapacity.Load()
		if c <= cur || b.MaxCapacity.CompareAndSwap(cur, c) {
			return
		}
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FilterCount:    b.FilterCount.Load(),
		FilterErrors:   b.FilterErrors.Load(),
		FilterAvgNanos: b.getAvgFilterNanos(),
		ElementCount:   b.ElementCount.Load(),
		VertexCount:    b.VertexCount.Load(),
		GrowthCount:    b.GrowthCount.Load(),
		MaxCapacity:    b.MaxCapacity.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgFilterNanos() int64 {
	count := b.FilterCount.Load()
	if count == 0 {
		return 0
	}
	return b.FilterTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FilterCount    int64
	FilterErrors   int64
	FilterAvgNanos int64
	ElementCount   int64
	VertexCount    int64
	GrowthCount    int64
	MaxCapacity    int64
}
