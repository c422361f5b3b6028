package rtseg

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems. The
// metrics/prometheus package provides a Prometheus implementation.
//
// A MetricsCollector is handed to the segment, the transform pipeline and
// exports, so its methods are called from the ingestion goroutine and from
// query goroutines concurrently.
type MetricsCollector interface {
	// RecordIndex is called after each segment Index call.
	RecordIndex(duration time.Duration, err error)

	// RecordRead is called after each segment Record call.
	RecordRead(duration time.Duration, err error)

	// RecordTransform is called after each raw record. produced is the
	// number of rows handed to the segment.
	RecordTransform(duration time.Duration, produced int, err error)

	// RecordQuery is called after each executed query.
	RecordQuery(duration time.Duration, docsScanned int64, err error)

	// RecordExport is called after each export.
	RecordExport(duration time.Duration, bytes int64, err error)
}

// SegmentObserver is optionally implemented by a MetricsCollector to track
// segment sizes.
type SegmentObserver interface {
	ObserveSegment(name string, numDocs int, memoryBytes int64)
	ForgetSegment(name string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIndex(time.Duration, error)          {}
func (NoopMetricsCollector) RecordRead(time.Duration, error)           {}
func (NoopMetricsCollector) RecordTransform(time.Duration, int, error) {}
func (NoopMetricsCollector) RecordQuery(time.Duration, int64, error)   {}
func (NoopMetricsCollector) RecordExport(time.Duration, int64, error)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	IndexCount      atomic.Int64
	IndexErrors     atomic.Int64
	IndexTotalNanos atomic.Int64
	ReadCount       atomic.Int64
	ReadErrors      atomic.Int64
	TransformCount  atomic.Int64
	TransformErrors atomic.Int64
	RowsProduced    atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryTotalNanos atomic.Int64
	DocsScanned     atomic.Int64
	ExportCount     atomic.Int64
	ExportErrors    atomic.Int64
	ExportBytes     atomic.Int64
}

// RecordIndex implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndex(duration time.Duration, err error) {
	b.IndexCount.Add(1)
	b.IndexTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IndexErrors.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(_ time.Duration, err error) {
	b.ReadCount.Add(1)
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordTransform implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTransform(_ time.Duration, produced int, err error) {
	b.TransformCount.Add(1)
	b.RowsProduced.Add(int64(produced))
	if err != nil {
		b.TransformErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(duration time.Duration, docsScanned int64, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	b.DocsScanned.Add(docsScanned)
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordExport implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExport(_ time.Duration, bytes int64, err error) {
	b.ExportCount.Add(1)
	if err != nil {
		b.ExportErrors.Add(1)
		return
	}
	b.ExportBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IndexCount:      b.IndexCount.Load(),
		IndexErrors:     b.IndexErrors.Load(),
		IndexAvgNanos:   avg(b.IndexTotalNanos.Load(), b.IndexCount.Load()),
		ReadCount:       b.ReadCount.Load(),
		ReadErrors:      b.ReadErrors.Load(),
		TransformCount:  b.TransformCount.Load(),
		TransformErrors: b.TransformErrors.Load(),
		RowsProduced:    b.RowsProduced.Load(),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryAvgNanos:   avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		DocsScanned:     b.DocsScanned.Load(),
		ExportCount:     b.ExportCount.Load(),
		ExportErrors:    b.ExportErrors.Load(),
		ExportBytes:     b.ExportBytes.Load(),
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
	IndexCount      int64
	IndexErrors     int64
	IndexAvgNanos   int64
	ReadCount       int64
	ReadErrors      int64
	TransformCount  int64
	TransformErrors int64
	RowsProduced    int64
	QueryCount      int64
	QueryErrors     int64
	QueryAvgNanos   int64
	DocsScanned     int64
	ExportCount     int64
	ExportErrors    int64
	ExportBytes     int64
}
