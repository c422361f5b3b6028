package rtseg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/rtseg/blobstore"
	"github.com/hupe1980/rtseg/export"
	"github.com/hupe1980/rtseg/reader"
	"github.com/hupe1980/rtseg/resource"
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
	"github.com/hupe1980/rtseg/segment"
	"github.com/hupe1980/rtseg/transform"
)

// observeEvery is the number of records between segment size updates.
const observeEvery = 1024

// IngestStats counts the outcome of ingested records.
type IngestStats struct {
	// Records is the number of raw records handed to the pipeline.
	Records int64 `json:"records"`
	// Indexed is the number of rows added to the segment.
	Indexed int64 `json:"indexed"`
	// Filtered is the number of rows dropped by the filter expression.
	Filtered int64 `json:"filtered"`
	// Skipped is the number of rows the pipeline dropped because of errors.
	Skipped int64 `json:"skipped"`
	// Incomplete is the number of indexed rows with substituted values.
	Incomplete int64 `json:"incomplete"`
	// Rejected is the number of rows the segment refused with a type
	// mismatch.
	Rejected int64 `json:"rejected"`
	// ParseErrors is the number of records the reader could not decode.
	ParseErrors int64 `json:"parseErrors"`
}

func (s *IngestStats) add(o IngestStats) {
	s.Records += o.Records
	s.Indexed += o.Indexed
	s.Filtered += o.Filtered
	s.Skipped += o.Skipped
	s.Incomplete += o.Incomplete
	s.Rejected += o.Rejected
	s.ParseErrors += o.ParseErrors
}

// Ingester drives raw records through the transform pipeline into a
// mutable segment.
//
// Ingestion calls are serialized; queries, exports and Stats run
// concurrently with them.
type Ingester struct {
	schema    *schema.Schema
	table     *schema.TableConfig
	pipeline  *transform.Pipeline
	seg       *segment.MutableSegment
	resources *resource.Controller
	logger    *Logger
	metrics   MetricsCollector
	opts      options

	mu     sync.Mutex // serializes ingestion and Close
	closed atomic.Bool
	reuse  *row.Row

	totals struct {
		sync.Mutex
		IngestStats
	}
}

// New creates an Ingester with an empty segment for s.
func New(s *schema.Schema, optFns ...Option) (*Ingester, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil schema", ErrInvalidSchema)
	}
	opts := applyOptions(optFns)

	table := opts.table
	if table == nil {
		table = &schema.TableConfig{Name: s.Name}
	}
	if err := table.Validate(s); err != nil {
		return nil, err
	}

	pipeline, err := transform.New(s, table,
		transform.WithLogger(opts.logger.Logger),
		transform.WithMetrics(opts.metricsCollector),
		transform.WithErrorPolicy(opts.errorPolicy),
	)
	if err != nil {
		return nil, err
	}

	segOpts := []segment.Option{
		segment.WithTableConfig(table),
		segment.WithResourceController(opts.resources),
		segment.WithLogger(opts.logger.Logger),
		segment.WithMetrics(opts.metricsCollector),
	}
	seg, err := segment.New(s, append(segOpts, opts.segmentOptions...)...)
	if err != nil {
		return nil, err
	}

	return &Ingester{
		schema:    s,
		table:     table,
		pipeline:  pipeline,
		seg:       seg,
		resources: opts.resources,
		logger:    opts.logger.WithSegment(seg.Name()),
		metrics:   opts.metricsCollector,
		opts:      opts,
		reuse:     row.New(),
	}, nil
}

// Schema returns the table schema.
func (in *Ingester) Schema() *schema.Schema { return in.schema }

// TableConfig returns the table configuration in effect.
func (in *Ingester) TableConfig() *schema.TableConfig { return in.table }

// Segment returns the consuming segment.
func (in *Ingester) Segment() *segment.MutableSegment { return in.seg }

// Pipeline returns the transform pipeline.
func (in *Ingester) Pipeline() *transform.Pipeline { return in.pipeline }

// NumDocs returns the number of indexed documents.
func (in *Ingester) NumDocs() int { return in.seg.NumDocs() }

// Metadata returns the segment statistics.
func (in *Ingester) Metadata() (segment.SegmentMetadata, error) { return in.seg.Metadata() }

// Stats returns the cumulative ingestion counters.
func (in *Ingester) Stats() IngestStats {
	in.totals.Lock()
	defer in.totals.Unlock()
	return in.totals.IngestStats
}

func (in *Ingester) record(st IngestStats) {
	in.totals.Lock()
	in.totals.add(st)
	in.totals.Unlock()
}

// IngestRow transforms raw and indexes the resulting rows. raw is not
// retained.
//
// Rows rejected by the pipeline or by a type mismatch are counted and do not
// fail the call. An error that makes the segment read-only is returned; rows
// produced from raw after it are not indexed.
func (in *Ingester) IngestRow(ctx context.Context, raw *row.Row) (IngestStats, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed.Load() {
		return IngestStats{}, ErrClosed
	}
	st, err := in.ingest(ctx, raw)
	in.record(st)
	if in.seg.NumDocs()%observeEvery == 0 {
		in.observe()
	}
	return st, err
}

// IngestReader ingests every record of r until io.EOF, ctx is done or the
// segment stops accepting rows.
//
// Malformed records are counted and skipped unless WithStopOnParseError is
// set.
func (in *Ingester) IngestReader(ctx context.Context, r reader.Reader) (IngestStats, error) {
	start := time.Now()

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed.Load() {
		return IngestStats{}, ErrClosed
	}

	var (
		total IngestStats
		err   error
	)
	for i := 0; ; i++ {
		if i%observeEvery == 0 {
			if err = ctx.Err(); err != nil {
				break
			}
			if i > 0 {
				in.observe()
			}
		}

		raw, rerr := r.Next(in.reuse)
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			var pe *reader.ParseError
			if errors.As(rerr, &pe) && !in.opts.stopOnParseError {
				total.ParseErrors++
				in.logger.WarnContext(ctx, "skipping malformed record", "line", pe.Line, "error", pe.Err)
				continue
			}
			err = rerr
			break
		}

		st, ierr := in.ingest(ctx, raw)
		total.add(st)
		if ierr != nil {
			err = ierr
			break
		}
	}

	in.record(total)
	in.observe()
	in.logger.LogIngest(ctx, total, time.Since(start), err)
	return total, err
}

func (in *Ingester) ingest(ctx context.Context, raw *row.Row) (IngestStats, error) {
	res := in.pipeline.Process(raw)
	st := IngestStats{
		Records:    1,
		Filtered:   int64(res.Filtered),
		Skipped:    int64(res.Skipped),
		Incomplete: int64(res.Incomplete),
	}
	in.logger.LogTransform(ctx, res.Skipped, res.Incomplete, res.Errors)

	for _, r := range res.Rows {
		docID := in.seg.NumDocs()
		err := in.seg.Index(r)
		if err == nil {
			st.Indexed++
			continue
		}
		in.logger.LogIndex(ctx, docID, err)
		if rowRejected(err) {
			st.Rejected++
			continue
		}
		return st, err
	}
	return st, nil
}

func (in *Ingester) observe() {
	if obs, ok := in.metrics.(SegmentObserver); ok {
		obs.ObserveSegment(in.seg.Name(), in.seg.NumDocs(), in.seg.MemoryUsage())
	}
}

// Export writes a snapshot of the segment to store under name. The
// exporter shares the Ingester's resource controller, logger and metrics.
// Ingestion may continue while the export runs; documents indexed after it
// started are not included.
func (in *Ingester) Export(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(*export.Options)) (*export.Manifest, error) {
	if in.closed.Load() {
		return nil, ErrClosed
	}
	fns := append([]func(*export.Options){func(o *export.Options) {
		o.Resources = in.resources
		o.Logger = in.logger.Logger
		o.Metrics = in.metrics
	}}, optFns...)
	e, err := export.New(store, fns...)
	if err != nil {
		return nil, err
	}
	return e.Export(ctx, in.seg, name)
}
