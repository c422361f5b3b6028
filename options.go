package rtseg

import (
	"log/slog"

	"github.com/hupe1980/rtseg/resource"
	"github.com/hupe1980/rtseg/schema"
	"github.com/hupe1980/rtseg/segment"
)

type options struct {
	table            *schema.TableConfig
	segmentOptions   []segment.Option
	resources        *resource.Controller
	errorPolicy      schema.ErrorPolicy
	metricsCollector MetricsCollector
	logger           *Logger
	stopOnParseError bool
}

// Option configures Ingester construction.
type Option func(*options)

// WithTableConfig sets the indexing and ingestion configuration. Nil means
// defaults: every column dictionary encoded, null handling enabled, no
// derived columns and the strict error policy.
func WithTableConfig(cfg *schema.TableConfig) Option {
	return func(o *options) {
		o.table = cfg
	}
}

// WithSegmentOptions passes options through to segment.New.
//
// Example:
//
//	rtseg.New(s, rtseg.WithSegmentOptions(segment.WithChunkSize(4096)))
func WithSegmentOptions(opts ...segment.Option) Option {
	return func(o *options) {
		o.segmentOptions = append(o.segmentOptions, opts...)
	}
}

// WithResources bounds index memory, export concurrency and export IO
// through rc.
func WithResources(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithErrorPolicy overrides the error policy of the table config.
func WithErrorPolicy(p schema.ErrorPolicy) Option {
	return func(o *options) {
		o.errorPolicy = p
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rtseg.BasicMetricsCollector{}
//	in, _ := rtseg.New(s, rtseg.WithMetricsCollector(metrics))
//	// ... ingest ...
//	stats := metrics.GetStats()
//	fmt.Printf("Indexed: %d, Avg latency: %dns\n", stats.IndexCount, stats.IndexAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithStopOnParseError makes IngestReader return the first malformed
// record instead of counting and skipping it.
func WithStopOnParseError() Option {
	return func(o *options) {
		o.stopOnParseError = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
