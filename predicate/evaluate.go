package predicate

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/segment"
)

var (
	// ErrInvalidPredicate is returned for malformed predicates.
	ErrInvalidPredicate = errors.New("invalid predicate")

	// ErrUnsupported is returned when a column lacks the structure a
	// predicate requires, such as TextMatch without a text index.
	ErrUnsupported = errors.New("predicate not supported on column")
)

// Source is the segment view predicates run against. *segment.MutableSegment
// implements it.
type Source interface {
	NumDocs() int
	DataSource(column string) (segment.DataSource, error)
}

// Stats describes the work done by Evaluate.
type Stats struct {
	// NumDocs is the document count the evaluation was bounded by.
	NumDocs int `json:"numDocs"`
	// NumDocsMatched is the cardinality of the result.
	NumDocsMatched int64 `json:"numDocsMatched"`
	// NumEntriesScannedInFilter counts values compared one by one.
	NumEntriesScannedInFilter int64 `json:"numEntriesScannedInFilter"`
	// ChunksPruned counts range index chunks skipped by their min/max.
	ChunksPruned int `json:"chunksPruned"`
	// IndexesUsed lists the structures consulted, as "kind:column".
	IndexesUsed []string `json:"indexesUsed,omitempty"`
}

// Index kinds reported in Stats.IndexesUsed.
const (
	IndexInverted   = "inverted"
	IndexRange      = "range"
	IndexText       = "text"
	IndexDictionary = "dictionary"
	IndexNullVector = "null_vector"
	IndexScan       = "scan"
)

// Evaluate returns the documents of src matching p.
//
// The document count is read once up front, so the result only covers
// documents that were visible when evaluation started, even while rows are
// being indexed concurrently.
func Evaluate(src Source, p Predicate) (*roaring.Bitmap, Stats, error) {
	if err := check(p); err != nil {
		return nil, Stats{}, err
	}
	e := &evaluator{src: src, n: src.NumDocs()}
	e.stats.NumDocs = e.n

	bm, err := e.eval(p)
	if err != nil {
		return nil, Stats{}, err
	}
	e.stats.NumDocsMatched = int64(bm.GetCardinality())
	return bm, e.stats, nil
}

func check(p Predicate) error {
	if err := p.validate(); err != nil {
		return err
	}
	for _, c := range p.Children {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

type evaluator struct {
	src   Source
	n     int
	stats Stats
}

func (e *evaluator) used(kind, column string) {
	tag := kind + ":" + column
	if !slices.Contains(e.stats.IndexesUsed, tag) {
		e.stats.IndexesUsed = append(e.stats.IndexesUsed, tag)
	}
}

func (e *evaluator) all() *roaring.Bitmap {
	bm := roaring.New()
	bm.AddRange(0, uint64(e.n))
	return bm
}

// clip drops documents published after evaluation started.
func (e *evaluator) clip(bm *roaring.Bitmap) *roaring.Bitmap {
	bm.RemoveRange(uint64(e.n), uint64(math.MaxUint32)+1)
	return bm
}

func (e *evaluator) eval(p Predicate) (*roaring.Bitmap, error) {
	switch p.Kind {
	case KindAnd:
		var out *roaring.Bitmap
		for _, c := range p.Children {
			bm, err := e.eval(c)
			if err != nil {
				return nil, err
			}
			if out == nil {
				out = bm
			} else {
				out.And(bm)
			}
			if out.IsEmpty() {
				break
			}
		}
		return out, nil
	case KindOr:
		out := roaring.New()
		for _, c := range p.Children {
			bm, err := e.eval(c)
			if err != nil {
				return nil, err
			}
			out.Or(bm)
		}
		return out, nil
	}

	ds, err := e.src.DataSource(p.Column)
	if err != nil {
		return nil, err
	}

	switch p.Kind {
	case KindEq, KindIn:
		return e.equal(ds, p.Values)
	case KindNotEq, KindNotIn:
		eq, err := e.equal(ds, p.Values)
		if err != nil {
			return nil, err
		}
		nulls, err := e.nulls(ds)
		if err != nil {
			return nil, err
		}
		out := e.all()
		out.AndNot(eq)
		out.AndNot(nulls)
		return out, nil
	case KindRange:
		return e.rangeMatch(ds, p)
	case KindIsNull:
		return e.nulls(ds)
	case KindIsNotNull:
		nulls, err := e.nulls(ds)
		if err != nil {
			return nil, err
		}
		out := e.all()
		out.AndNot(nulls)
		return out, nil
	case KindTextMatch:
		ti := ds.TextIndex()
		if ti == nil {
			return nil, fmt.Errorf("%w: %s has no text index", ErrUnsupported, p.Column)
		}
		e.used(IndexText, p.Column)
		bm, err := ti.Match(p.Query)
		if err != nil {
			return nil, err
		}
		return e.clip(bm), nil
	}
	return nil, fmt.Errorf("%w: unknown kind %s", ErrInvalidPredicate, p.Kind)
}

func (e *evaluator) nulls(ds segment.DataSource) (*roaring.Bitmap, error) {
	nv := ds.NullValueVector()
	if nv == nil {
		return roaring.New(), nil
	}
	e.used(IndexNullVector, ds.Column())
	bm, err := nv.NullBitmap()
	if err != nil {
		return nil, err
	}
	return e.clip(bm), nil
}

func (e *evaluator) equal(ds segment.DataSource, vals []row.Value) (*roaring.Bitmap, error) {
	if dict := ds.Dictionary(); dict != nil {
		e.used(IndexDictionary, ds.Column())
		ids := make([]int32, 0, len(vals))
		for _, v := range vals {
			id, ok, err := dict.IndexOf(v)
			if err != nil {
				return nil, err
			}
			if ok && !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		return e.docsForIDs(ds, ids)
	}

	return e.scan(ds, func(v row.Value) bool {
		return slices.ContainsFunc(vals, func(o row.Value) bool { return equalValues(v, o) })
	})
}

func equalValues(a, b row.Value) bool {
	if a.Kind.IsNumeric() && b.Kind.IsNumeric() {
		return a.Compare(b) == 0
	}
	return a.Equal(b)
}

func (e *evaluator) rangeMatch(ds segment.DataSource, p Predicate) (*roaring.Bitmap, error) {
	if ri := ds.RangeIndex(); ri != nil {
		e.used(IndexRange, ds.Column())
		res, err := ri.Matching(p.Lo, p.Hi, p.IncLo, p.IncHi)
		if err != nil {
			return nil, err
		}
		e.stats.NumEntriesScannedInFilter += int64(res.EntriesScanned)
		e.stats.ChunksPruned += res.ChunksPruned
		return e.clip(res.Docs), nil
	}
	if dict := ds.Dictionary(); dict != nil {
		e.used(IndexDictionary, ds.Column())
		ids, err := dict.IDsInRange(p.Lo, p.Hi, p.IncLo, p.IncHi)
		if err != nil {
			return nil, err
		}
		return e.docsForIDs(ds, ids)
	}
	return e.scan(ds, func(v row.Value) bool { return inRange(v, p) })
}

func inRange(v row.Value, p Predicate) bool {
	if p.Lo != nil {
		c := v.Compare(*p.Lo)
		if c < 0 || (c == 0 && !p.IncLo) {
			return false
		}
	}
	if p.Hi != nil {
		c := v.Compare(*p.Hi)
		if c > 0 || (c == 0 && !p.IncHi) {
			return false
		}
	}
	return true
}

// docsForIDs returns the documents holding any of ids. Null entries hold no
// dictionary id, so they never match.
func (e *evaluator) docsForIDs(ds segment.DataSource, ids []int32) (*roaring.Bitmap, error) {
	if len(ids) == 0 {
		return roaring.New(), nil
	}
	if inv := ds.InvertedIndex(); inv != nil {
		e.used(IndexInverted, ds.Column())
		bm, err := inv.Union(ids)
		if err != nil {
			return nil, err
		}
		return e.clip(bm), nil
	}

	e.used(IndexScan, ds.Column())
	want := make(map[int32]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	fwd := ds.ForwardIndex()
	out := roaring.New()
	var buf []int32
	for doc := range e.n {
		if fwd.SingleValue() {
			id, err := fwd.DictID(doc)
			if err != nil {
				return nil, err
			}
			e.stats.NumEntriesScannedInFilter++
			if _, ok := want[id]; ok {
				out.Add(uint32(doc))
			}
			continue
		}
		var err error
		buf, err = fwd.DictIDs(doc, buf)
		if err != nil {
			return nil, err
		}
		e.stats.NumEntriesScannedInFilter += int64(len(buf))
		for _, id := range buf {
			if _, ok := want[id]; ok {
				out.Add(uint32(doc))
				break
			}
		}
	}
	return out, nil
}

// scan compares every non-null raw value.
func (e *evaluator) scan(ds segment.DataSource, match func(row.Value) bool) (*roaring.Bitmap, error) {
	e.used(IndexScan, ds.Column())
	nulls, err := e.nulls(ds)
	if err != nil {
		return nil, err
	}
	fwd := ds.ForwardIndex()
	out := roaring.New()
	for doc := range e.n {
		if nulls.Contains(uint32(doc)) {
			continue
		}
		v, err := fwd.Value(doc)
		if err != nil {
			return nil, err
		}
		if elems, ok := v.AsArray(); ok && !fwd.SingleValue() {
			e.stats.NumEntriesScannedInFilter += int64(len(elems))
			if slices.ContainsFunc(elems, match) {
				out.Add(uint32(doc))
			}
			continue
		}
		e.stats.NumEntriesScannedInFilter++
		if match(v) {
			out.Add(uint32(doc))
		}
	}
	return out, nil
}
