package colframe

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/colframe/blockmanager"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    blockReads prometheus.Counter
//	    scanTime   prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordBlockRead(bytes int, d time.Duration, err error) {
//	    p.blockReads.Inc()
//	}
type MetricsCollector interface {
	// RecordBlockRead is called after a block was fetched from storage.
	// bytes is the stored (compressed) size.
	RecordBlockRead(bytes int, duration time.Duration, err error)

	// RecordCacheLookup is called for every decoded-block cache lookup.
	RecordCacheLookup(hit bool)

	// RecordOptimize is called after each optimizer run.
	RecordOptimize(passes, rewrites int, converged bool, duration time.Duration)

	// RecordScan is called after each parallel scan.
	RecordScan(rows int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBlockRead(int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordCacheLookup(bool)                        {}
func (NoopMetricsCollector) RecordOptimize(int, int, bool, time.Duration) {}
func (NoopMetricsCollector) RecordScan(int64, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	BlockReads      atomic.Int64
	BlockReadErrors atomic.Int64
	BytesRead       atomic.Int64
	ReadTotalNanos  atomic.Int64
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64
	OptimizeCount   atomic.Int64
	Rewrites        atomic.Int64
	NotConverged    atomic.Int64
	ScanCount       atomic.Int64
	ScanErrors      atomic.Int64
	ScannedRows     atomic.Int64
	ScanTotalNanos  atomic.Int64
}

// RecordBlockRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBlockRead(bytes int, duration time.Duration, err error) {
	b.BlockReads.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BlockReadErrors.Add(1)
		return
	}
	b.BytesRead.Add(int64(bytes))
}

// RecordCacheLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheLookup(hit bool) {
	if hit {
		b.CacheHits.Add(1)
	} else {
		b.CacheMisses.Add(1)
	}
}

// RecordOptimize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOptimize(_, rewrites int, converged bool, _ time.Duration) {
	b.OptimizeCount.Add(1)
	b.Rewrites.Add(int64(rewrites))
	if !converged {
		b.NotConverged.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(rows int64, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScannedRows.Add(rows)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BlockReads:      b.BlockReads.Load(),
		BlockReadErrors: b.BlockReadErrors.Load(),
		BytesRead:       b.BytesRead.Load(),
		ReadAvgNanos:    avg(b.ReadTotalNanos.Load(), b.BlockReads.Load()),
		CacheHits:       b.CacheHits.Load(),
		CacheMisses:     b.CacheMisses.Load(),
		OptimizeCount:   b.OptimizeCount.Load(),
		Rewrites:        b.Rewrites.Load(),
		NotConverged:    b.NotConverged.Load(),
		ScanCount:       b.ScanCount.Load(),
		ScanErrors:      b.ScanErrors.Load(),
		ScannedRows:     b.ScannedRows.Load(),
		ScanAvgNanos:    avg(b.ScanTotalNanos.Load(), b.ScanCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BlockReads      int64
	BlockReadErrors int64
	BytesRead       int64
	ReadAvgNanos    int64
	CacheHits       int64
	CacheMisses     int64
	OptimizeCount   int64
	Rewrites        int64
	NotConverged    int64
	ScanCount       int64
	ScanErrors      int64
	ScannedRows     int64
	ScanAvgNanos    int64
}

// blockObserver forwards block manager events to a MetricsCollector.
type blockObserver struct {
	mc MetricsCollector
}

var _ blockmanager.Observer = blockObserver{}

func (o blockObserver) OnBlockRead(bytes int, d time.Duration, err error) {
	o.mc.RecordBlockRead(bytes, d, err)
}

func (o blockObserver) OnCacheLookup(hit bool) { o.mc.RecordCacheLookup(hit) }
