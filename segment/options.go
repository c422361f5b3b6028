package segment

import (
	"log/slog"
	"time"

	"github.com/hupe1980/rtseg/internal/chunked"
	"github.com/hupe1980/rtseg/internal/dictionary"
	"github.com/hupe1980/rtseg/internal/postings"
	"github.com/hupe1980/rtseg/resource"
	"github.com/hupe1980/rtseg/schema"
)

// Metrics receives segment operation timings. The root package's
// MetricsCollector implements it.
type Metrics interface {
	RecordIndex(d time.Duration, err error)
	RecordRead(d time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordIndex(time.Duration, error) {}
func (noopMetrics) RecordRead(time.Duration, error)  {}

// Options configures a MutableSegment.
type Options struct {
	// Name of the segment. Defaults to "<schema>__<uuid>".
	Name string

	// ChunkSize is the number of documents per forward-index chunk. It is
	// rounded up to a power of two. Default 65536.
	ChunkSize int

	// MaxDictionarySize bounds each column dictionary. Default MaxInt32.
	MaxDictionarySize int

	// PostingChunkSize is the growth step of inverted and text posting
	// lists. Default 256.
	PostingChunkSize int

	// TableConfig selects indexes and null handling. Nil means defaults:
	// every column dictionary encoded, null handling enabled.
	TableConfig *schema.TableConfig

	// Resources bounds index memory. Nil means unlimited.
	Resources *resource.Controller

	Logger  *slog.Logger
	Metrics Metrics
}

// DefaultOptions returns the default segment options.
func DefaultOptions() Options {
	return Options{
		ChunkSize:         chunked.DefaultChunkSize,
		MaxDictionarySize: dictionary.DefaultMaxSize,
		PostingChunkSize:  postings.DefaultChunkSize,
		Logger:            slog.New(slog.DiscardHandler),
		Metrics:           noopMetrics{},
	}
}

// Option configures a MutableSegment.
type Option func(*Options)

// WithName sets the segment name.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithChunkSize sets the documents per chunk. Small sizes are useful in
// tests to exercise growth.
func WithChunkSize(n int) Option {
	return func(o *Options) { o.ChunkSize = n }
}

// WithMaxDictionarySize bounds every column dictionary.
func WithMaxDictionarySize(n int) Option {
	return func(o *Options) { o.MaxDictionarySize = n }
}

// WithPostingChunkSize sets the posting-list growth step.
func WithPostingChunkSize(n int) Option {
	return func(o *Options) { o.PostingChunkSize = n }
}

// WithTableConfig sets the indexing configuration.
func WithTableConfig(cfg *schema.TableConfig) Option {
	return func(o *Options) { o.TableConfig = cfg }
}

// WithResourceController reserves index memory through rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *Options) { o.Resources = rc }
}

// WithLogger sets the logger. Nil discards logs.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l == nil {
			l = slog.New(slog.DiscardHandler)
		}
		o.Logger = l
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m Metrics) Option {
	return func(o *Options) {
		if m == nil {
			m = noopMetrics{}
		}
		o.Metrics = m
	}
}
