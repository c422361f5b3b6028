package segment

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// DataSource is the read-only view of one column. It holds references to
// the live column structures, so every read observes the latest published
// document without re-acquiring the view.
//
// Optional readers return nil when the column does not carry the
// corresponding structure.
type DataSource interface {
	Column() string
	Spec() *schema.FieldSpec
	Metadata() (ColumnMetadata, error)

	Dictionary() Dictionary
	ForwardIndex() ForwardIndexReader
	NullValueVector() NullValueVectorReader
	InvertedIndex() InvertedIndexReader
	RangeIndex() RangeIndexReader
	TextIndex() TextIndexReader
}

// Dictionary maps surrogate ids to the distinct values of a column. Ids are
// assigned in first-seen order starting at 0.
type Dictionary interface {
	Len() (int, error)
	Get(id int32) (row.Value, error)
	// IndexOf returns the id of v, or false when v never occurred.
	IndexOf(v row.Value) (int32, bool, error)
	MinMax() (lo, hi row.Value, ok bool, err error)
	// IDsInRange returns the ids whose values lie within the bounds. A nil
	// bound is unbounded.
	IDsInRange(lo, hi *row.Value, incLo, incHi bool) ([]int32, error)
	// SortedIDs returns every id ordered by value.
	SortedIDs() ([]int32, error)
}

// NullDictID is the dictionary id stored for null entries of nullable
// dictionary-encoded columns. Multi-value null entries hold no ids.
const NullDictID int32 = -1

// ForwardIndexReader reads the per-document entries of a column.
type ForwardIndexReader interface {
	SingleValue() bool
	DictionaryEncoded() bool
	// DictID returns the dictionary id of a single-value entry, or
	// NullDictID for a null entry.
	DictID(docID int) (int32, error)
	// DictIDs appends the dictionary ids of a multi-value entry to buf[:0].
	DictIDs(docID int, buf []int32) ([]int32, error)
	NumValues(docID int) (int, error)
	// Value returns the stored entry. For null documents this is the
	// column's default value.
	Value(docID int) (row.Value, error)
}

// NullValueVectorReader reports which documents hold a null entry.
type NullValueVectorReader interface {
	IsNull(docID int) (bool, error)
	NullBitmap() (*roaring.Bitmap, error)
	Count() (int, error)
}

// InvertedIndexReader maps dictionary ids to documents.
type InvertedIndexReader interface {
	DocIDs(dictID int32) (*roaring.Bitmap, error)
	Union(dictIDs []int32) (*roaring.Bitmap, error)
}

// RangeResult is the outcome of a range index lookup.
type RangeResult struct {
	Docs *roaring.Bitmap
	// EntriesScanned counts values compared individually.
	EntriesScanned int
	// ChunksPruned counts chunks skipped by their min/max.
	ChunksPruned int
}

// RangeIndexReader answers range predicates on single-value columns.
type RangeIndexReader interface {
	Matching(lo, hi *row.Value, incLo, incHi bool) (RangeResult, error)
}

// TextIndexReader answers term queries on text columns. Every term of the
// query must occur in the document.
type TextIndexReader interface {
	Match(query string) (*roaring.Bitmap, error)
}

type dataSource struct {
	seg *MutableSegment
	col column
}

// snapshot returns the visible document count, or ErrSegmentDestroyed.
func (ds *dataSource) snapshot() (int, error) {
	if ds.seg.State() == StateDestroyed {
		return 0, ErrSegmentDestroyed
	}
	return ds.seg.NumDocs(), nil
}

// checkDoc validates docID against the visible document count.
func (ds *dataSource) checkDoc(docID int) error {
	n, err := ds.snapshot()
	if err != nil {
		return err
	}
	if docID < 0 || docID >= n {
		return fmt.Errorf("%w: %d (num docs %d)", ErrDocIDOutOfRange, docID, n)
	}
	return nil
}

// done re-checks the state after reading shared structures.
func (ds *dataSource) done() error {
	if ds.seg.State() == StateDestroyed {
		return ErrSegmentDestroyed
	}
	return nil
}

func (ds *dataSource) Column() string          { return ds.col.name() }
func (ds *dataSource) Spec() *schema.FieldSpec { return ds.col.spec() }

func (ds *dataSource) Metadata() (ColumnMetadata, error) {
	if _, err := ds.snapshot(); err != nil {
		return ColumnMetadata{}, err
	}
	md := ds.col.metadata()
	return md, ds.done()
}

func (ds *dataSource) Dictionary() Dictionary {
	if !ds.col.hasDictionary() {
		return nil
	}
	return dictReader{ds}
}

func (ds *dataSource) ForwardIndex() ForwardIndexReader { return forwardReader{ds} }

func (ds *dataSource) NullValueVector() NullValueVectorReader {
	if !ds.col.hasNullVector() {
		return nil
	}
	return nullReader{ds}
}

func (ds *dataSource) InvertedIndex() InvertedIndexReader {
	if !ds.col.hasInverted() {
		return nil
	}
	return invertedReader{ds}
}

func (ds *dataSource) RangeIndex() RangeIndexReader {
	if !ds.col.hasRange() {
		return nil
	}
	return rangeReader{ds}
}

func (ds *dataSource) TextIndex() TextIndexReader {
	if !ds.col.hasText() {
		return nil
	}
	return textReader{ds}
}

type dictReader struct{ ds *dataSource }

func (r dictReader) Len() (int, error) {
	if _, err := r.ds.snapshot(); err != nil {
		return 0, err
	}
	n := r.ds.col.dictLen()
	return n, r.ds.done()
}

func (r dictReader) Get(id int32) (row.Value, error) {
	if _, err := r.ds.snapshot(); err != nil {
		return row.Null(), err
	}
	v, ok := r.ds.col.dictValue(id)
	if err := r.ds.done(); err != nil {
		return row.Null(), err
	}
	if !ok {
		return row.Null(), fmt.Errorf("%w: dictionary id %d", ErrDocIDOutOfRange, id)
	}
	return v, nil
}

func (r dictReader) IndexOf(v row.Value) (int32, bool, error) {
	if _, err := r.ds.snapshot(); err != nil {
		return 0, false, err
	}
	id, ok := r.ds.col.dictIndexOf(v)
	return id, ok, r.ds.done()
}

func (r dictReader) MinMax() (row.Value, row.Value, bool, error) {
	if _, err := r.ds.snapshot(); err != nil {
		return row.Null(), row.Null(), false, err
	}
	lo, hi, ok := r.ds.col.dictMinMax()
	return lo, hi, ok, r.ds.done()
}

func (r dictReader) IDsInRange(lo, hi *row.Value, incLo, incHi bool) ([]int32, error) {
	if _, err := r.ds.snapshot(); err != nil {
		return nil, err
	}
	ids, err := r.ds.col.dictIDsInRange(lo, hi, incLo, incHi)
	if err != nil {
		return nil, &ColumnError{Column: r.ds.col.name(), Op: "dictionary range", Err: err}
	}
	return ids, r.ds.done()
}

func (r dictReader) SortedIDs() ([]int32, error) {
	if _, err := r.ds.snapshot(); err != nil {
		return nil, err
	}
	ids := r.ds.col.dictSortedIDs()
	return ids, r.ds.done()
}

type forwardReader struct{ ds *dataSource }

func (r forwardReader) SingleValue() bool       { return r.ds.col.spec().IsSingleValue() }
func (r forwardReader) DictionaryEncoded() bool { return r.ds.col.hasDictionary() }

func (r forwardReader) DictID(docID int) (int32, error) {
	if !r.ds.col.hasDictionary() {
		return 0, ErrNotDictionaryEncoded
	}
	if !r.SingleValue() {
		return 0, ErrNotMultiValue
	}
	if err := r.ds.checkDoc(docID); err != nil {
		return 0, err
	}
	id := r.ds.col.dictID(docID)
	return id, r.ds.done()
}

func (r forwardReader) DictIDs(docID int, buf []int32) ([]int32, error) {
	if !r.ds.col.hasDictionary() {
		return nil, ErrNotDictionaryEncoded
	}
	if r.SingleValue() {
		return nil, ErrNotMultiValue
	}
	if err := r.ds.checkDoc(docID); err != nil {
		return nil, err
	}
	ids := r.ds.col.dictIDs(docID, buf)
	return ids, r.ds.done()
}

func (r forwardReader) NumValues(docID int) (int, error) {
	if err := r.ds.checkDoc(docID); err != nil {
		return 0, err
	}
	n := r.ds.col.numValues(docID)
	return n, r.ds.done()
}

func (r forwardReader) Value(docID int) (row.Value, error) {
	if err := r.ds.checkDoc(docID); err != nil {
		return row.Null(), err
	}
	v := r.ds.col.value(docID)
	if err := r.ds.done(); err != nil {
		return row.Null(), err
	}
	return v, nil
}

type nullReader struct{ ds *dataSource }

func (r nullReader) IsNull(docID int) (bool, error) {
	if err := r.ds.checkDoc(docID); err != nil {
		return false, err
	}
	null := r.ds.col.isNull(docID)
	return null, r.ds.done()
}

func (r nullReader) NullBitmap() (*roaring.Bitmap, error) {
	n, err := r.ds.snapshot()
	if err != nil {
		return nil, err
	}
	bm := r.ds.col.nullBitmap(n)
	return bm, r.ds.done()
}

func (r nullReader) Count() (int, error) {
	bm, err := r.NullBitmap()
	if err != nil {
		return 0, err
	}
	return int(bm.GetCardinality()), nil
}

type invertedReader struct{ ds *dataSource }

func (r invertedReader) DocIDs(dictID int32) (*roaring.Bitmap, error) {
	n, err := r.ds.snapshot()
	if err != nil {
		return nil, err
	}
	bm := r.ds.col.invertedDocIDs(dictID, n)
	return bm, r.ds.done()
}

func (r invertedReader) Union(dictIDs []int32) (*roaring.Bitmap, error) {
	n, err := r.ds.snapshot()
	if err != nil {
		return nil, err
	}
	bm := r.ds.col.invertedUnion(dictIDs, n)
	return bm, r.ds.done()
}

type rangeReader struct{ ds *dataSource }

func (r rangeReader) Matching(lo, hi *row.Value, incLo, incHi bool) (RangeResult, error) {
	n, err := r.ds.snapshot()
	if err != nil {
		return RangeResult{}, err
	}
	res, err := r.ds.col.rangeMatch(lo, hi, incLo, incHi, n)
	if err != nil {
		return RangeResult{}, &ColumnError{Column: r.ds.col.name(), Op: "range", Err: err}
	}
	if err := r.ds.done(); err != nil {
		return RangeResult{}, err
	}
	return RangeResult{Docs: res.Docs, EntriesScanned: res.EntriesScanned, ChunksPruned: res.ChunksPruned}, nil
}

type textReader struct{ ds *dataSource }

func (r textReader) Match(query string) (*roaring.Bitmap, error) {
	n, err := r.ds.snapshot()
	if err != nil {
		return nil, err
	}
	bm := r.ds.col.textMatch(query, n)
	return bm, r.ds.done()
}
