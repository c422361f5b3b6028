// Package rtseg provides an in-memory, real-time column segment.
//
// This file implements the fluent builder for Ingesters.
// Builders are immutable - each method returns a new builder with the updated configuration.
package rtseg

import (
	"slices"

	"github.com/hupe1980/rtseg/resource"
	"github.com/hupe1980/rtseg/schema"
	"github.com/hupe1980/rtseg/segment"
)

// Table creates a new Ingester builder for s.
//
// The builder is immutable - each method returns a new builder with the updated configuration.
// This makes it safe to derive several configurations from a common base.
//
// Example:
//
//	in, err := rtseg.Table(s).
//	    InvertedIndex("user").
//	    RangeIndex("clicks").
//	    Filter(`clicks < 0`).
//	    Lenient().
//	    MemoryLimit(512 << 20).
//	    Build()
func Table(s *schema.Schema) TableBuilder {
	b := TableBuilder{schema: s}
	if s != nil {
		b.table.Name = s.Name
	}
	return b
}

// TableBuilder is an immutable fluent builder for Ingesters.
type TableBuilder struct {
	schema *schema.Schema
	table  schema.TableConfig

	segmentName      string
	chunkSize        int
	maxDictSize      int
	postingChunkSize int

	memoryLimit int64
	ioLimit     int64
	resources   *resource.Controller

	logger           *Logger
	metrics          MetricsCollector
	stopOnParseError bool
}

// Config replaces the table configuration. Later builder calls add to it.
func (b TableBuilder) Config(cfg *schema.TableConfig) TableBuilder {
	if cfg == nil {
		b.table = schema.TableConfig{Name: b.table.Name}
		return b
	}
	b.table = *cfg
	b.table.Indexing.NoDictionaryColumns = slices.Clone(cfg.Indexing.NoDictionaryColumns)
	b.table.Indexing.InvertedIndexColumns = slices.Clone(cfg.Indexing.InvertedIndexColumns)
	b.table.Indexing.RangeIndexColumns = slices.Clone(cfg.Indexing.RangeIndexColumns)
	b.table.Indexing.TextIndexColumns = slices.Clone(cfg.Indexing.TextIndexColumns)
	b.table.Ingestion.Transforms = slices.Clone(cfg.Ingestion.Transforms)
	if ct := cfg.Ingestion.ComplexType; ct != nil {
		c := *ct
		c.UnnestFields = slices.Clone(ct.UnnestFields)
		b.table.Ingestion.ComplexType = &c
	}
	return b
}

// NoDictionary stores the columns as raw values.
func (b TableBuilder) NoDictionary(columns ...string) TableBuilder {
	b.table.Indexing.NoDictionaryColumns = append(slices.Clone(b.table.Indexing.NoDictionaryColumns), columns...)
	return b
}

// InvertedIndex adds inverted indexes on the columns.
func (b TableBuilder) InvertedIndex(columns ...string) TableBuilder {
	b.table.Indexing.InvertedIndexColumns = append(slices.Clone(b.table.Indexing.InvertedIndexColumns), columns...)
	return b
}

// RangeIndex adds range indexes on the columns.
func (b TableBuilder) RangeIndex(columns ...string) TableBuilder {
	b.table.Indexing.RangeIndexColumns = append(slices.Clone(b.table.Indexing.RangeIndexColumns), columns...)
	return b
}

// TextIndex adds text indexes on the columns.
func (b TableBuilder) TextIndex(columns ...string) TableBuilder {
	b.table.Indexing.TextIndexColumns = append(slices.Clone(b.table.Indexing.TextIndexColumns), columns...)
	return b
}

// NullHandling toggles null-value vectors. Enabled by default.
func (b TableBuilder) NullHandling(enabled bool) TableBuilder {
	b.table.Indexing.NullHandlingEnabled = &enabled
	return b
}

// Transform derives column from an expression over the raw record.
func (b TableBuilder) Transform(column, expression string) TableBuilder {
	b.table.Ingestion.Transforms = append(slices.Clone(b.table.Ingestion.Transforms),
		schema.TransformConfig{Column: column, Expression: expression})
	return b
}

// Filter drops records for which the expression is true.
func (b TableBuilder) Filter(expression string) TableBuilder {
	b.table.Ingestion.FilterExpression = expression
	return b
}

// Unnest expands the array fields into one row per element. Nested maps are
// flattened with delimiter; an empty delimiter means ".".
func (b TableBuilder) Unnest(delimiter string, fields ...string) TableBuilder {
	ct := schema.ComplexTypeConfig{Delimiter: delimiter}
	if old := b.table.Ingestion.ComplexType; old != nil {
		ct.UnnestFields = slices.Clone(old.UnnestFields)
	}
	ct.UnnestFields = append(ct.UnnestFields, fields...)
	b.table.Ingestion.ComplexType = &ct
	return b
}

// Lenient substitutes defaults for values that cannot be converted.
func (b TableBuilder) Lenient() TableBuilder {
	b.table.Ingestion.ErrorPolicy = schema.ErrorPolicyLenient
	return b
}

// Strict drops records with values that cannot be converted. This is the
// default.
func (b TableBuilder) Strict() TableBuilder {
	b.table.Ingestion.ErrorPolicy = schema.ErrorPolicyStrict
	return b
}

// SegmentName names the consuming segment.
func (b TableBuilder) SegmentName(name string) TableBuilder {
	b.segmentName = name
	return b
}

// ChunkSize sets the documents per forward index chunk.
func (b TableBuilder) ChunkSize(n int) TableBuilder {
	b.chunkSize = n
	return b
}

// MaxDictionarySize bounds every column dictionary.
func (b TableBuilder) MaxDictionarySize(n int) TableBuilder {
	b.maxDictSize = n
	return b
}

// PostingChunkSize sets the growth step of posting lists.
func (b TableBuilder) PostingChunkSize(n int) TableBuilder {
	b.postingChunkSize = n
	return b
}

// MemoryLimit bounds index memory in bytes. Ignored when Resources is set.
func (b TableBuilder) MemoryLimit(bytes int64) TableBuilder {
	b.memoryLimit = bytes
	return b
}

// IOLimit throttles export IO in bytes per second. Ignored when Resources
// is set.
func (b TableBuilder) IOLimit(bytesPerSec int64) TableBuilder {
	b.ioLimit = bytesPerSec
	return b
}

// Resources shares a resource controller, for example between several
// tables.
func (b TableBuilder) Resources(rc *resource.Controller) TableBuilder {
	b.resources = rc
	return b
}

// Logger sets the logger.
func (b TableBuilder) Logger(l *Logger) TableBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector.
func (b TableBuilder) Metrics(mc MetricsCollector) TableBuilder {
	b.metrics = mc
	return b
}

// StopOnParseError makes IngestReader fail on the first malformed record.
func (b TableBuilder) StopOnParseError() TableBuilder {
	b.stopOnParseError = true
	return b
}

// Build validates the configuration and creates the Ingester.
func (b TableBuilder) Build() (*Ingester, error) {
	rc := b.resources
	if rc == nil && (b.memoryLimit > 0 || b.ioLimit > 0) {
		rc = resource.NewController(resource.Config{
			MemoryLimitBytes:   b.memoryLimit,
			IOLimitBytesPerSec: b.ioLimit,
		})
	}

	var segOpts []segment.Option
	if b.segmentName != "" {
		segOpts = append(segOpts, segment.WithName(b.segmentName))
	}
	if b.chunkSize > 0 {
		segOpts = append(segOpts, segment.WithChunkSize(b.chunkSize))
	}
	if b.maxDictSize > 0 {
		segOpts = append(segOpts, segment.WithMaxDictionarySize(b.maxDictSize))
	}
	if b.postingChunkSize > 0 {
		segOpts = append(segOpts, segment.WithPostingChunkSize(b.postingChunkSize))
	}

	table := b.table
	opts := []Option{
		WithTableConfig(&table),
		WithResources(rc),
		WithSegmentOptions(segOpts...),
	}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		opts = append(opts, WithMetricsCollector(b.metrics))
	}
	if b.stopOnParseError {
		opts = append(opts, WithStopOnParseError())
	}
	return New(b.schema, opts...)
}
