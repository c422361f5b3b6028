// Package rtseg provides an in-memory, real-time column segment.
//
// This file implements a fluent query API over consuming segments.
package rtseg

import (
	"context"
	"encoding/hex"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hupe1980/rtseg/predicate"
	"github.com/hupe1980/rtseg/response"
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/segment"
)

// DefaultLimit is the number of rows Execute returns without Limit.
const DefaultLimit = 10

// Select creates a new fluent query selecting columns. No columns, or "*",
// selects every column of the schema.
//
// Example:
//
//	resp, err := rtseg.Select("user", "clicks").
//	    From(seg1, seg2).
//	    Where(predicate.Eq("user", row.String("alice"))).
//	    Limit(100).
//	    Execute(ctx)
//
//	// Or with streaming:
//	for r, err := range rtseg.Select().From(seg).Stream(ctx) {
//	    if err != nil { break }
//	    process(r)
//	}
func Select(columns ...string) *QueryBuilder {
	return &QueryBuilder{
		columns: columns,
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
}

// Select creates a query over the Ingester's segment that reports to the
// Ingester's logger and metrics collector.
func (in *Ingester) Select(columns ...string) *QueryBuilder {
	return Select(columns...).
		From(in.seg).
		Logger(in.logger).
		Metrics(in.metrics)
}

// QueryBuilder is a fluent builder for selection queries.
type QueryBuilder struct {
	columns   []string
	segments  []*segment.MutableSegment
	filter    *predicate.Predicate
	limit     int
	limitSet  bool
	requestID string
	trace     bool

	logger  *Logger
	metrics MetricsCollector
}

// From adds segments to query.
func (qb *QueryBuilder) From(segs ...*segment.MutableSegment) *QueryBuilder {
	qb.segments = append(qb.segments, segs...)
	return qb
}

// Where restricts the query to documents matching p.
func (qb *QueryBuilder) Where(p predicate.Predicate) *QueryBuilder {
	qb.filter = &p
	return qb
}

// Limit caps the number of returned rows. A negative n removes the cap.
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.limit = n
	qb.limitSet = true
	return qb
}

// RequestID sets the id echoed in the response. Defaults to a random UUID.
func (qb *QueryBuilder) RequestID(id string) *QueryBuilder {
	qb.requestID = id
	return qb
}

// Trace records the index structures used per segment in the response's
// trace info.
func (qb *QueryBuilder) Trace(enabled bool) *QueryBuilder {
	qb.trace = enabled
	return qb
}

// Logger sets the logger. Nil disables logging.
func (qb *QueryBuilder) Logger(l *Logger) *QueryBuilder {
	if l == nil {
		l = NoopLogger()
	}
	qb.logger = l
	return qb
}

// Metrics sets the metrics collector. Nil disables metrics.
func (qb *QueryBuilder) Metrics(mc MetricsCollector) *QueryBuilder {
	if mc == nil {
		mc = NoopMetricsCollector{}
	}
	qb.metrics = mc
	return qb
}

// String renders the query for logs.
func (qb *QueryBuilder) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(qb.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(qb.columns, ", "))
	}
	if qb.filter != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(qb.filter.String())
	}
	if limit := qb.effectiveLimit(); limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	return sb.String()
}

// effectiveLimit returns the row cap of Execute; negative means none.
func (qb *QueryBuilder) effectiveLimit() int {
	if !qb.limitSet {
		return DefaultLimit
	}
	return qb.limit
}

// Execute runs the query and returns a broker response.
//
// Each segment is evaluated against the document count visible when its
// evaluation starts. Failures on a segment, such as an unknown column or a
// destroyed segment, become exceptions of a partial response; the error
// return is reserved for ctx cancellation.
func (qb *QueryBuilder) Execute(ctx context.Context) (*response.BrokerResponse, error) {
	start := time.Now()
	resp := response.Empty()
	resp.RequestID = qb.requestID
	if resp.RequestID == "" {
		resp.RequestID = uuid.NewString()
	}

	var firstErr error
	fail := func(seg *segment.MutableSegment, err error) {
		if firstErr == nil {
			firstErr = err
		}
		resp.AddException(response.ExceptionFromError(fmt.Errorf("segment %s: %w", seg.Name(), err)))
	}

	var (
		table    *response.ResultTable
		limit    = qb.effectiveLimit()
		minFresh int64
		reuse    = row.New()
	)
	for _, seg := range qb.segments {
		if err := ctx.Err(); err != nil {
			qb.metrics.RecordQuery(time.Since(start), resp.NumDocsScanned, err)
			return nil, err
		}
		resp.NumSegmentsQueried++
		resp.NumConsumingSegmentsQueried++
		resp.AddTable(seg.TableConfig().Name)

		cols, err := qb.resolveColumns(seg)
		if err != nil {
			fail(seg, err)
			continue
		}
		if table == nil {
			table = &response.ResultTable{DataSchema: dataSchema(seg, cols), Rows: [][]any{}}
		}

		if seg.State() == segment.StateEmpty {
			resp.NumSegmentsPrunedByServer++
			continue
		}

		docs, st, err := qb.match(seg)
		if err != nil {
			fail(seg, err)
			continue
		}
		resp.NumSegmentsProcessed++
		resp.NumConsumingSegmentsProcessed++
		resp.TotalDocs += int64(st.NumDocs)
		resp.NumEntriesScannedInFilter += st.NumEntriesScannedInFilter
		resp.NumDocsScanned += st.NumDocsMatched
		if st.NumDocsMatched > 0 {
			resp.NumSegmentsMatched++
			resp.NumConsumingSegmentsMatched++
		}
		if ts := seg.LastIndexedAt(); !ts.IsZero() {
			if ms := ts.UnixMilli(); minFresh == 0 || ms < minFresh {
				minFresh = ms
			}
		}
		if qb.trace {
			if resp.TraceInfo == nil {
				resp.TraceInfo = make(map[string]string)
			}
			resp.TraceInfo[seg.Name()] = strings.Join(st.IndexesUsed, ",")
		}

		it := docs.Iterator()
		for it.HasNext() && (limit < 0 || len(table.Rows) < limit) {
			r, err := seg.Record(int(it.Next()), reuse)
			if err != nil {
				fail(seg, err)
				break
			}
			table.Rows = append(table.Rows, project(r, cols))
			resp.NumEntriesScannedPostFilter += int64(len(cols))
		}
	}

	resp.MinConsumingFreshnessTimeMs = minFresh
	if table != nil {
		resp.SetResultTable(table)
	}
	resp.TimeUsedMs = time.Since(start).Milliseconds()

	qb.metrics.RecordQuery(time.Since(start), resp.NumDocsScanned, firstErr)
	qb.logger.LogQuery(ctx, qb.String(), resp.NumDocsScanned, len(resp.Exceptions))
	return resp, nil
}

// MustExecute runs the query, panicking on error.
// Use this only in tests or when the context cannot be canceled.
func (qb *QueryBuilder) MustExecute(ctx context.Context) *response.BrokerResponse {
	resp, err := qb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return resp
}

// Stream returns an iterator over the matching rows of every segment in
// docID order. Only the selected columns are present. The yielded row is
// reused and valid until the next iteration. Without an explicit Limit all
// matching rows are yielded.
//
// Example:
//
//	for r, err := range rtseg.Select("user").From(seg).Stream(ctx) {
//	    if err != nil { break }
//	    process(r)
//	}
func (qb *QueryBuilder) Stream(ctx context.Context) iter.Seq2[*row.Row, error] {
	return func(yield func(*row.Row, error) bool) {
		limit := -1
		if qb.limitSet {
			limit = qb.limit
		}
		var (
			emitted int
			reuse   = row.New()
			out     = row.New()
		)
		for _, seg := range qb.segments {
			cols, err := qb.resolveColumns(seg)
			if err != nil {
				yield(nil, err)
				return
			}
			docs, _, err := qb.match(seg)
			if err != nil {
				yield(nil, err)
				return
			}
			it := docs.Iterator()
			for it.HasNext() {
				if limit >= 0 && emitted >= limit {
					return
				}
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				r, err := seg.Record(int(it.Next()), reuse)
				if err != nil {
					yield(nil, err)
					return
				}
				projectRow(r, cols, out)
				emitted++
				if !yield(out, nil) {
					return
				}
			}
		}
	}
}

// Count returns the number of matching documents across all segments.
func (qb *QueryBuilder) Count(ctx context.Context) (int64, error) {
	var total int64
	for _, seg := range qb.segments {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		docs, _, err := qb.match(seg)
		if err != nil {
			return 0, fmt.Errorf("segment %s: %w", seg.Name(), err)
		}
		total += int64(docs.GetCardinality())
	}
	return total, nil
}

// First returns the first matching row, or ErrNoRows.
func (qb *QueryBuilder) First(ctx context.Context) (*row.Row, error) {
	for r, err := range qb.Stream(ctx) {
		if err != nil {
			return nil, err
		}
		return r.Clone(), nil
	}
	return nil, ErrNoRows
}

// Exists reports whether at least one document matches.
func (qb *QueryBuilder) Exists(ctx context.Context) (bool, error) {
	n, err := qb.Count(ctx)
	return n > 0, err
}

// match evaluates the filter, or selects every visible document.
func (qb *QueryBuilder) match(seg *segment.MutableSegment) (*roaring.Bitmap, predicate.Stats, error) {
	if qb.filter != nil {
		return predicate.Evaluate(seg, *qb.filter)
	}
	if seg.State() == segment.StateDestroyed {
		return nil, predicate.Stats{}, segment.ErrSegmentDestroyed
	}
	n := seg.NumDocs()
	bm := roaring.New()
	bm.AddRange(0, uint64(n))
	return bm, predicate.Stats{NumDocs: n, NumDocsMatched: int64(n)}, nil
}

func (qb *QueryBuilder) resolveColumns(seg *segment.MutableSegment) ([]string, error) {
	if len(qb.columns) == 0 || (len(qb.columns) == 1 && qb.columns[0] == "*") {
		return seg.ColumnNames(), nil
	}
	s := seg.Schema()
	for _, c := range qb.columns {
		if !s.HasColumn(c) {
			return nil, fmt.Errorf("%w: %q", segment.ErrColumnNotFound, c)
		}
	}
	return qb.columns, nil
}

func dataSchema(seg *segment.MutableSegment, cols []string) response.DataSchema {
	ds := response.DataSchema{
		ColumnNames:     cols,
		ColumnDataTypes: make([]string, len(cols)),
	}
	for i, c := range cols {
		f, _ := seg.Schema().Field(c)
		t := f.DataType.String()
		if f.MultiValue {
			t += "_ARRAY"
		}
		ds.ColumnDataTypes[i] = t
	}
	return ds
}

func project(r *row.Row, cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		if r.IsNull(c) {
			continue
		}
		if v, ok := r.Value(c); ok {
			out[i] = native(v)
		}
	}
	return out
}

func projectRow(r *row.Row, cols []string, out *row.Row) {
	out.Clear()
	for _, c := range cols {
		v, ok := r.Value(c)
		if !ok {
			continue
		}
		if r.IsNull(c) {
			out.PutDefaultNullValue(c, v)
			continue
		}
		out.PutValue(c, v)
	}
}

// native converts v for a result table. BYTES render as hex and BIG_DECIMAL
// as its exact decimal string.
func native(v row.Value) any {
	switch x := v.Native().(type) {
	case []byte:
		return hex.EncodeToString(x)
	case decimal.Decimal:
		return x.String()
	case []any:
		for i, e := range x {
			switch t := e.(type) {
			case []byte:
				x[i] = hex.EncodeToString(t)
			case decimal.Decimal:
				x[i] = t.String()
			}
		}
		return x
	default:
		return x
	}
}
