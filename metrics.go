package bitfunnel

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
//	    ingestCounter  prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordIngest(duration time.Duration, err error) {
//	    p.ingestCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordIngest is called right after each document slot is claimed,
	// before any postings are written. duration is the time the claim
	// took, err is nil if successful.
	RecordIngest(duration time.Duration, err error)

	// RecordQuery is called after each Matcher.Run, and also when the
	// query's arena cannot be allocated. matched is the number of documents
	// the query returned.
	RecordQuery(matched int, duration time.Duration, err error)

	// RecordRecycle is called after each Slice the Recycler drains,
	// whether or not a Backup was configured.
	RecordRecycle(duration time.Duration, err error)

	// RecordCompile is called after each RowMatchNode tree is rewritten
	// and lowered to a CompileNode program.
	RecordCompile(duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(time.Duration, error)     {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRecycle(time.Duration, error)    {}
func (NoopMetricsCollector) RecordCompile(time.Duration)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount       atomic.Int64
	IngestErrors      atomic.Int64
	IngestTotalNanos  atomic.Int64
	QueryCount        atomic.Int64
	QueryErrors       atomic.Int64
	QueryTotalNanos   atomic.Int64
	QueryMatched      atomic.Int64
	RecycleCount      atomic.Int64
	RecycleErrors     atomic.Int64
	CompileCount      atomic.Int64
	CompileTotalNanos atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(duration time.Duration, err error) {
	b.IngestCount.Add(1)
	b.IngestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IngestErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(matched int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	b.QueryMatched.Add(int64(matched))
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordRecycle implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecycle(duration time.Duration, err error) {
	b.RecycleCount.Add(1)
	if err != nil {
		b.RecycleErrors.Add(1)
	}
}

// RecordCompile implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompile(duration time.Duration) {
	b.CompileCount.Add(1)
	b.CompileTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:     b.IngestCount.Load(),
		IngestErrors:    b.IngestErrors.Load(),
		IngestAvgNanos:  b.avgNanos(b.IngestTotalNanos.Load(), b.IngestCount.Load()),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryAvgNanos:   b.avgNanos(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		QueryMatched:    b.QueryMatched.Load(),
		RecycleCount:    b.RecycleCount.Load(),
		RecycleErrors:   b.RecycleErrors.Load(),
		CompileCount:    b.CompileCount.Load(),
		CompileAvgNanos: b.avgNanos(b.CompileTotalNanos.Load(), b.CompileCount.Load()),
	}
}

func (b *BasicMetricsCollector) avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount     int64
	IngestErrors    int64
	IngestAvgNanos  int64
	QueryCount      int64
	QueryErrors     int64
	QueryAvgNanos   int64
	QueryMatched    int64
	RecycleCount    int64
	RecycleErrors   int64
	CompileCount    int64
	CompileAvgNanos int64
}
