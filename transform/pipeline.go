package transform

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// Metrics receives pipeline timings. The root package's MetricsCollector
// implements it.
type Metrics interface {
	RecordTransform(d time.Duration, produced int, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordTransform(time.Duration, int, error) {}

// Options configures a Pipeline.
type Options struct {
	Logger  *slog.Logger
	Metrics Metrics

	// ErrorPolicy overrides the table config's policy when set.
	ErrorPolicy schema.ErrorPolicy
}

// Option configures a Pipeline.
type Option func(*Options)

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

// WithErrorPolicy overrides the error policy.
func WithErrorPolicy(p schema.ErrorPolicy) Option {
	return func(o *Options) { o.ErrorPolicy = p }
}

// Result is the outcome of processing one raw record.
type Result struct {
	// Rows are ready to index. Empty when the record was filtered or
	// skipped; more than one when a field was unnested.
	Rows []*row.Row

	// Skipped counts rows dropped because of an error.
	Skipped int
	// Filtered counts rows dropped by the filter expression.
	Filtered int
	// Incomplete counts rows in Rows with substituted values.
	Incomplete int

	// Errors holds the failures behind Skipped and Incomplete.
	Errors []error
}

// Stats are cumulative pipeline counters.
type Stats struct {
	Processed  int64 `json:"processed"`
	Produced   int64 `json:"produced"`
	Filtered   int64 `json:"filtered"`
	Skipped    int64 `json:"skipped"`
	Incomplete int64 `json:"incomplete"`
	Errors     int64 `json:"errors"`
	Sanitized  int64 `json:"sanitized"`
}

// Pipeline turns raw records into rows that match a schema.
//
// Transformers run in a fixed order: complex type, expression, filter, data
// type, special value, null value, sanitization. A Pipeline is used by one
// ingestion goroutine; Stats may be read concurrently.
type Pipeline struct {
	schema       *schema.Schema
	policy       schema.ErrorPolicy
	complex      *ComplexType
	transformers []Transformer
	logger       *slog.Logger
	metrics      Metrics

	ctx Context

	processed  atomic.Int64
	produced   atomic.Int64
	filtered   atomic.Int64
	skipped    atomic.Int64
	incomplete atomic.Int64
	errors     atomic.Int64
	sanitized  atomic.Int64
}

// New builds the pipeline for s. A nil cfg means no derived columns, no
// filter and the strict error policy.
func New(s *schema.Schema, cfg *schema.TableConfig, optFns ...Option) (*Pipeline, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &schema.TableConfig{Name: s.Name}
	}
	if err := cfg.Validate(s); err != nil {
		return nil, err
	}

	opts := Options{
		Logger:  slog.New(slog.DiscardHandler),
		Metrics: noopMetrics{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	p := &Pipeline{
		schema:  s,
		policy:  cfg.Ingestion.ErrorPolicy,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if opts.ErrorPolicy != "" {
		p.policy = opts.ErrorPolicy
	}
	if !p.policy.Valid() {
		return nil, fmt.Errorf("%w: unknown error policy %q", schema.ErrInvalidSchema, p.policy)
	}

	ing := &cfg.Ingestion
	if ing.ComplexType != nil {
		p.complex = NewComplexType(ing.ComplexType)
	}
	if len(ing.Transforms) > 0 {
		t, err := NewExpression(ing.Transforms)
		if err != nil {
			return nil, err
		}
		p.transformers = append(p.transformers, t)
	}
	if ing.FilterExpression != "" {
		t, err := NewFilter(ing.FilterExpression)
		if err != nil {
			return nil, err
		}
		p.transformers = append(p.transformers, t)
	}
	p.transformers = append(p.transformers,
		NewDataType(s),
		NewSpecialValue(s),
		NewNullValue(s),
		NewSanitization(s),
	)
	return p, nil
}

// Schema returns the target schema.
func (p *Pipeline) Schema() *schema.Schema { return p.schema }

// Process transforms raw. Without unnesting, the only result row is raw
// itself, modified in place; it stays valid until raw is reused.
func (p *Pipeline) Process(raw *row.Row) Result {
	start := time.Now()
	p.processed.Add(1)

	rows := []*row.Row{raw}
	if p.complex != nil {
		rows = p.complex.Expand(raw)
	}

	var res Result
	for _, r := range rows {
		keep, err := p.run(r)
		res.Errors = append(res.Errors, p.ctx.Errors...)
		p.sanitized.Add(int64(p.ctx.Sanitized))
		switch {
		case err != nil:
			res.Skipped++
			res.Errors = append(res.Errors, err)
			p.logger.Debug("row skipped", "error", err)
		case !keep:
			res.Filtered++
		default:
			if p.ctx.Incomplete {
				res.Incomplete++
			}
			res.Rows = append(res.Rows, r)
		}
	}

	p.produced.Add(int64(len(res.Rows)))
	p.filtered.Add(int64(res.Filtered))
	p.skipped.Add(int64(res.Skipped))
	p.incomplete.Add(int64(res.Incomplete))
	p.errors.Add(int64(len(res.Errors)))

	var first error
	if len(res.Errors) > 0 {
		first = res.Errors[0]
	}
	p.metrics.RecordTransform(time.Since(start), len(res.Rows), first)
	return res
}

func (p *Pipeline) run(r *row.Row) (bool, error) {
	p.ctx.reset(p.policy)
	for _, t := range p.transformers {
		keep, err := t.Transform(r, &p.ctx)
		if err != nil || !keep {
			return keep, err
		}
	}
	return true, nil
}

// Stats returns the cumulative counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:  p.processed.Load(),
		Produced:   p.produced.Load(),
		Filtered:   p.filtered.Load(),
		Skipped:    p.skipped.Load(),
		Incomplete: p.incomplete.Load(),
		Errors:     p.errors.Load(),
		Sanitized:  p.sanitized.Load(),
	}
}
