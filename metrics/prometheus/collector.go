// Package prometheus exports segment ingestion and read metrics through
// prometheus/client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Collector records rtseg operations as Prometheus metrics. It satisfies
// rtseg.MetricsCollector.
type Collector struct {
	indexDuration     *prometheus.HistogramVec
	readDuration      *prometheus.HistogramVec
	transformDuration *prometheus.HistogramVec
	rowsProduced      prometheus.Counter
	exportDuration    *prometheus.HistogramVec
	exportBytes       prometheus.Counter
	queryDuration     *prometheus.HistogramVec
	docsScanned       prometheus.Counter

	segmentDocs   *prometheus.GaugeVec
	segmentMemory *prometheus.GaugeVec
}

// New registers the collector's metrics with r under namespace.
func New(r prometheus.Registerer, namespace string) *Collector {
	f := promauto.With(r)
	durationVec := func(name, help string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"status"})
	}
	return &Collector{
		indexDuration:     durationVec("segment_index_duration_seconds", "Time taken to index one row."),
		readDuration:      durationVec("segment_record_duration_seconds", "Time taken to reconstruct one record."),
		transformDuration: durationVec("transform_duration_seconds", "Time taken to transform one raw record."),
		rowsProduced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_rows_produced_total",
			Help:      "Total number of rows produced by the transform pipeline.",
		}),
		exportDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Time taken to export a segment.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		exportBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_stored_bytes_total",
			Help:      "Total number of bytes written by exports.",
		}),
		queryDuration: durationVec("query_duration_seconds", "Time taken to execute a query."),
		docsScanned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_docs_scanned_total",
			Help:      "Total number of documents selected by query filters.",
		}),
		segmentDocs: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segment_docs",
			Help:      "Number of documents in a consuming segment.",
		}, []string{"segment"}),
		segmentMemory: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segment_memory_bytes",
			Help:      "Index memory reserved by a consuming segment.",
		}, []string{"segment"}),
	}
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}

// RecordIndex observes one Index call.
func (c *Collector) RecordIndex(d time.Duration, err error) {
	c.indexDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}

// RecordRead observes one Record call.
func (c *Collector) RecordRead(d time.Duration, err error) {
	c.readDuration.WithLabelValues(status(err)).Observe(d.Seconds())
}

// RecordTransform observes one pipeline run.
func (c *Collector) RecordTransform(d time.Duration, produced int, err error) {
	c.transformDuration.WithLabelValues(status(err)).Observe(d.Seconds())
	c.rowsProduced.Add(float64(produced))
}

// RecordExport observes one export.
func (c *Collector) RecordExport(d time.Duration, bytes int64, err error) {
	c.exportDuration.WithLabelValues(status(err)).Observe(d.Seconds())
	if err == nil {
		c.exportBytes.Add(float64(bytes))
	}
}

// RecordQuery observes one query.
func (c *Collector) RecordQuery(d time.Duration, docsScanned int64, err error) {
	c.queryDuration.WithLabelValues(status(err)).Observe(d.Seconds())
	c.docsScanned.Add(float64(docsScanned))
}

// ObserveSegment sets the size gauges of a segment.
func (c *Collector) ObserveSegment(name string, numDocs int, memoryBytes int64) {
	c.segmentDocs.WithLabelValues(name).Set(float64(numDocs))
	c.segmentMemory.WithLabelValues(name).Set(float64(memoryBytes))
}

// ForgetSegment removes the gauges of a destroyed segment.
func (c *Collector) ForgetSegment(name string) {
	c.segmentDocs.DeleteLabelValues(name)
	c.segmentMemory.DeleteLabelValues(name)
}
