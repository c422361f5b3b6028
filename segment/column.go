package segment

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/rtseg/internal/chunked"
	"github.com/hupe1980/rtseg/internal/dictionary"
	"github.com/hupe1980/rtseg/internal/forward"
	"github.com/hupe1980/rtseg/internal/inverted"
	"github.com/hupe1980/rtseg/internal/nullvector"
	"github.com/hupe1980/rtseg/internal/rangeindex"
	"github.com/hupe1980/rtseg/internal/stats"
	"github.com/hupe1980/rtseg/internal/textindex"
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

// column is the type-erased view of a column's structures used by the
// segment and its readers.
type column interface {
	name() string
	spec() *schema.FieldSpec

	// Ingestion, called by the single writer in phase order. stage
	// validates; resolve assigns dictionary ids and reserves dictionary
	// capacity; reserve allocates the other structures. None of them
	// changes what readers see. commit writes and cannot fail.
	stage(v row.Value, null bool) error
	resolve() error
	reserve(docID int) error
	commit(docID int)

	isNull(docID int) bool
	value(docID int) row.Value
	defaultValue() row.Value

	hasDictionary() bool
	dictLen() int
	dictValue(id int32) (row.Value, bool)
	dictIndexOf(v row.Value) (int32, bool)
	dictMinMax() (row.Value, row.Value, bool)
	dictIDsInRange(lo, hi *row.Value, incLo, incHi bool) ([]int32, error)
	dictSortedIDs() []int32
	dictID(docID int) int32
	dictIDs(docID int, buf []int32) []int32
	numValues(docID int) int

	hasNullVector() bool
	nullBitmap(limit int) *roaring.Bitmap
	nullCount() int

	hasInverted() bool
	invertedDocIDs(id int32, limit int) *roaring.Bitmap
	invertedUnion(ids []int32, limit int) *roaring.Bitmap

	hasRange() bool
	rangeMatch(lo, hi *row.Value, incLo, incHi bool, limit int) (rangeindex.Result, error)

	hasText() bool
	textMatch(query string, limit int) *roaring.Bitmap

	metadata() ColumnMetadata
	bytes() int64
	free()
}

type columnConfig struct {
	spec        *schema.FieldSpec
	def         row.Value
	dictionary  bool
	nullable    bool
	inverted    bool
	rangeIdx    bool
	text        bool
	chunkSize   int
	postingSize int
	maxDict     int
	alloc       chunked.Allocator
	logger      *slog.Logger
}

func newColumn(cfg columnConfig) column {
	switch cfg.spec.DataType.StoredType() {
	case schema.DataTypeInt:
		return newTypedColumn(cfg, intKeys)
	case schema.DataTypeLong:
		return newTypedColumn(cfg, longKeys)
	case schema.DataTypeFloat:
		return newTypedColumn(cfg, floatKeys)
	case schema.DataTypeDouble:
		return newTypedColumn(cfg, doubleKeys)
	case schema.DataTypeBigDecimal:
		return newTypedColumn(cfg, decimalKeys)
	case schema.DataTypeBytes:
		return newTypedColumn(cfg, bytesKeys)
	default:
		return newTypedColumn(cfg, stringKeys)
	}
}

// typedColumn holds every structure of one column keyed by K.
type typedColumn[K comparable] struct {
	cfg   columnConfig
	codec keyCodec[K]

	dict  *dictionary.Dictionary[K]
	sv    *forward.DictSV
	mv    *forward.DictMV
	raw   *forward.Raw[K]
	nulls *nullvector.Vector
	inv   *inverted.Index
	rng   *rangeindex.Index[K]
	text  *textindex.Index
	st    *stats.Column

	// Staged entry of the document being indexed.
	pNull   bool
	pVal    row.Value
	pVals   []row.Value
	pKey    K
	pKeys   []K
	pID     int32
	pIDs    []int32
	pTokens []string
}

func newTypedColumn[K comparable](cfg columnConfig, codec keyCodec[K]) *typedColumn[K] {
	c := &typedColumn[K]{cfg: cfg, codec: codec}

	if !cfg.dictionary && cfg.spec.MultiValue {
		cfg.logger.Warn("multi-value columns require a dictionary, ignoring no-dictionary setting",
			"column", cfg.spec.Name)
		cfg.dictionary = true
		c.cfg.dictionary = true
	}

	if cfg.dictionary {
		c.dict = dictionary.New(dictionary.Options[K]{
			ChunkSize: cfg.chunkSize,
			MaxSize:   cfg.maxDict,
			Allocator: cfg.alloc,
			Compare:   codec.compare,
			Size:      codec.size,
		})
		if cfg.spec.MultiValue {
			c.mv = forward.NewDictMV(cfg.chunkSize, cfg.alloc)
		} else {
			c.sv = forward.NewDictSV(cfg.chunkSize, cfg.alloc)
		}
	} else {
		c.raw = forward.NewRaw[K](cfg.chunkSize, cfg.alloc)
	}

	if cfg.nullable {
		c.nulls = nullvector.New(cfg.chunkSize, cfg.alloc)
	}
	if cfg.inverted && c.dict != nil {
		c.inv = inverted.New(cfg.chunkSize, cfg.postingSize, cfg.alloc)
	}
	if cfg.rangeIdx && !cfg.spec.MultiValue {
		c.rng = rangeindex.New(chunked.ChunkBits(cfg.chunkSize), codec.compare, c.svKey, cfg.alloc)
	}
	if cfg.text && codec.kind == row.KindString && !cfg.spec.MultiValue {
		c.text = textindex.New(cfg.postingSize, cfg.alloc)
	}
	c.st = stats.New(c.dict == nil)
	return c
}

func (c *typedColumn[K]) name() string            { return c.cfg.spec.Name }
func (c *typedColumn[K]) spec() *schema.FieldSpec { return c.cfg.spec }
func (c *typedColumn[K]) defaultValue() row.Value { return c.cfg.def }

func (c *typedColumn[K]) stage(v row.Value, null bool) error {
	c.pNull = null
	c.pVals = c.pVals[:0]
	c.pKeys = c.pKeys[:0]
	c.pTokens = c.pTokens[:0]

	if !null && c.cfg.spec.MultiValue {
		if v.Kind != row.KindArray {
			return fmt.Errorf("%w: %s value for multi-value column", ErrTypeMismatch, v.Kind)
		}
		if len(v.A) == 0 {
			c.pNull = true
		}
	}
	if !null && !c.cfg.spec.MultiValue && v.Kind == row.KindArray {
		return fmt.Errorf("%w: array value for single-value column", ErrTypeMismatch)
	}
	if c.pNull {
		v = c.cfg.def
	}

	if c.cfg.spec.MultiValue {
		if err := c.stageMulti(v); err != nil {
			return err
		}
		if len(c.pVals) == 0 {
			// Only null elements: the entry is null.
			c.pNull = true
			if err := c.stageMulti(c.cfg.def); err != nil {
				return err
			}
		}
		c.pVal = row.Array(c.pVals)
		return nil
	}

	n, err := c.codec.normalize(v, c.cfg.spec.DataType)
	if err != nil {
		return err
	}
	c.pVal = n
	c.pKey = c.codec.toKey(n)
	return nil
}

func (c *typedColumn[K]) stageMulti(v row.Value) error {
	c.pVals = c.pVals[:0]
	c.pKeys = c.pKeys[:0]
	for _, e := range v.A {
		if e.IsNull() {
			continue
		}
		n, err := c.codec.normalize(e, c.cfg.spec.DataType)
		if err != nil {
			return err
		}
		c.pVals = append(c.pVals, n)
		c.pKeys = append(c.pKeys, c.codec.toKey(n))
	}
	return nil
}

func (c *typedColumn[K]) resolve() error {
	if c.dict == nil {
		return nil
	}
	if c.nullMarked() {
		// Null entries keep the placeholder out of the dictionary.
		c.pID = NullDictID
		c.pIDs = c.pIDs[:0]
		return nil
	}
	if c.mv != nil {
		ids, err := c.dict.Prepare(c.pKeys, c.pIDs[:0])
		c.pIDs = ids
		return err
	}
	c.pKeys = append(c.pKeys[:0], c.pKey)
	ids, err := c.dict.Prepare(c.pKeys, c.pIDs[:0])
	c.pIDs = ids
	if err != nil {
		return err
	}
	c.pID = ids[0]
	return nil
}

func (c *typedColumn[K]) reserve(docID int) error {
	n := docID + 1
	switch {
	case c.sv != nil:
		if err := c.sv.Grow(n); err != nil {
			return err
		}
	case c.mv != nil:
		if err := c.mv.Grow(n, len(c.pIDs)); err != nil {
			return err
		}
	default:
		if err := c.raw.Grow(n); err != nil {
			return err
		}
	}
	if c.nulls != nil {
		if err := c.nulls.Grow(n); err != nil {
			return err
		}
	}
	if c.inv != nil && !c.nullMarked() {
		if c.mv != nil {
			for _, id := range c.pIDs {
				if err := c.inv.Reserve(id); err != nil {
					return err
				}
			}
		} else if err := c.inv.Reserve(c.pID); err != nil {
			return err
		}
	}
	if c.rng != nil {
		if err := c.rng.Grow(n); err != nil {
			return err
		}
	}
	if c.text != nil && !c.nullMarked() {
		s, _ := c.pVal.AsString()
		tokens, err := c.text.Prepare(s)
		if err != nil {
			return err
		}
		c.pTokens = append(c.pTokens, tokens...)
	}
	return nil
}

func (c *typedColumn[K]) commit(docID int) {
	if c.dict != nil && !c.nullMarked() {
		// Ids and capacity were prepared in resolve.
		for _, k := range c.pKeys {
			_, _, _ = c.dict.Index(k)
		}
	}

	switch {
	case c.sv != nil:
		c.sv.Set(docID, c.pID)
	case c.mv != nil:
		c.mv.Set(docID, c.pIDs)
	default:
		c.raw.Set(docID, c.pKey)
	}

	if c.nullMarked() {
		// Grown in reserve; cannot fail.
		_ = c.nulls.Set(docID)
	}

	if c.inv != nil && !c.nullMarked() {
		if c.mv != nil {
			for _, id := range c.pIDs {
				_ = c.inv.Add(id, uint32(docID))
			}
		} else {
			_ = c.inv.Add(c.pID, uint32(docID))
		}
	}
	if c.rng != nil && !c.nullMarked() {
		c.rng.Add(docID, c.pKey)
	}
	if c.text != nil && !c.nullMarked() {
		_ = c.text.Add(uint32(docID), c.pTokens)
	}

	switch {
	case c.nullMarked():
		c.st.ObserveNull()
	case c.mv != nil:
		c.st.ObserveMulti(c.pVals)
	default:
		c.st.Observe(c.pVal)
	}
}

// nullMarked reports whether the staged entry is recorded as null. Columns
// without a null vector store the default as a regular value.
func (c *typedColumn[K]) nullMarked() bool { return c.pNull && c.nulls != nil }

func (c *typedColumn[K]) isNull(docID int) bool {
	return c.nulls != nil && c.nulls.IsNull(docID)
}

// svKey returns the key stored for docID of a single-value column.
func (c *typedColumn[K]) svKey(docID int) K {
	if c.raw != nil {
		return c.raw.Value(docID)
	}
	k, _ := c.dict.Get(c.sv.DictID(docID))
	return k
}

func (c *typedColumn[K]) value(docID int) row.Value {
	if c.isNull(docID) {
		return c.cfg.def
	}
	if c.mv != nil {
		ids := c.mv.DictIDs(docID, nil)
		vals := make([]row.Value, len(ids))
		for i, id := range ids {
			k, _ := c.dict.Get(id)
			vals[i] = c.codec.fromKey(k)
		}
		return row.Array(vals)
	}
	return c.codec.fromKey(c.svKey(docID))
}

func (c *typedColumn[K]) hasDictionary() bool { return c.dict != nil }

func (c *typedColumn[K]) dictLen() int {
	if c.dict == nil {
		return 0
	}
	return c.dict.Len()
}

func (c *typedColumn[K]) dictValue(id int32) (row.Value, bool) {
	k, ok := c.dict.Get(id)
	if !ok {
		return row.Null(), false
	}
	return c.codec.fromKey(k), true
}

func (c *typedColumn[K]) dictIndexOf(v row.Value) (int32, bool) {
	k, _, err := c.codec.bound(&v, c.cfg.spec.DataType, true, false)
	if err != nil {
		return 0, false
	}
	// Integer columns never hold a fractional value.
	if c.codec.integer && (v.Kind == row.KindFloat || v.Kind == row.KindDouble) && v.F64 != float64(int64(v.F64)) {
		return 0, false
	}
	return c.dict.IndexOf(*k)
}

func (c *typedColumn[K]) dictMinMax() (row.Value, row.Value, bool) {
	lo, ok := c.dict.Min()
	if !ok {
		return row.Null(), row.Null(), false
	}
	hi, _ := c.dict.Max()
	return c.codec.fromKey(lo), c.codec.fromKey(hi), true
}

func (c *typedColumn[K]) dictIDsInRange(lo, hi *row.Value, incLo, incHi bool) ([]int32, error) {
	lk, incLo, err := c.codec.bound(lo, c.cfg.spec.DataType, incLo, false)
	if err != nil {
		return nil, err
	}
	hk, incHi, err := c.codec.bound(hi, c.cfg.spec.DataType, incHi, true)
	if err != nil {
		return nil, err
	}
	return c.dict.IDsInRange(lk, hk, incLo, incHi), nil
}

func (c *typedColumn[K]) dictSortedIDs() []int32 { return c.dict.SortedIDs() }

func (c *typedColumn[K]) dictID(docID int) int32 { return c.sv.DictID(docID) }

func (c *typedColumn[K]) dictIDs(docID int, buf []int32) []int32 {
	return c.mv.DictIDs(docID, buf[:0])
}

func (c *typedColumn[K]) numValues(docID int) int {
	if c.mv == nil {
		return 1
	}
	return c.mv.NumValues(docID)
}

func (c *typedColumn[K]) hasNullVector() bool { return c.nulls != nil }

func (c *typedColumn[K]) nullBitmap(limit int) *roaring.Bitmap {
	if c.nulls == nil {
		return roaring.New()
	}
	return c.nulls.Bitmap(limit)
}

func (c *typedColumn[K]) nullCount() int {
	if c.nulls == nil {
		return 0
	}
	return c.nulls.Cardinality()
}

func (c *typedColumn[K]) hasInverted() bool { return c.inv != nil }

func (c *typedColumn[K]) invertedDocIDs(id int32, limit int) *roaring.Bitmap {
	return c.inv.DocIDs(id, uint32(limit))
}

func (c *typedColumn[K]) invertedUnion(ids []int32, limit int) *roaring.Bitmap {
	return c.inv.Union(ids, uint32(limit))
}

func (c *typedColumn[K]) hasRange() bool { return c.rng != nil }

func (c *typedColumn[K]) rangeMatch(lo, hi *row.Value, incLo, incHi bool, limit int) (rangeindex.Result, error) {
	lk, incLo, err := c.codec.bound(lo, c.cfg.spec.DataType, incLo, false)
	if err != nil {
		return rangeindex.Result{}, err
	}
	hk, incHi, err := c.codec.bound(hi, c.cfg.spec.DataType, incHi, true)
	if err != nil {
		return rangeindex.Result{}, err
	}
	res := c.rng.Matching(lk, hk, incLo, incHi, limit)
	if c.nulls != nil && c.nulls.Cardinality() > 0 {
		res.Docs.AndNot(c.nulls.Bitmap(limit))
	}
	return res, nil
}

func (c *typedColumn[K]) hasText() bool { return c.text != nil }

func (c *typedColumn[K]) textMatch(query string, limit int) *roaring.Bitmap {
	return c.text.Match(query, uint32(limit))
}

func (c *typedColumn[K]) metadata() ColumnMetadata {
	md := ColumnMetadata{
		Name:           c.cfg.spec.Name,
		DataType:       c.cfg.spec.DataType,
		FieldType:      c.cfg.spec.FieldType,
		SingleValue:    !c.cfg.spec.MultiValue,
		HasDictionary:  c.dict != nil,
		Nullable:       c.nulls != nil,
		MinValue:       row.Null(),
		MaxValue:       row.Null(),
		TotalEntries:   c.st.TotalEntries(),
		MaxMultiValues: c.st.MaxMultiValues(),
		NullCount:      c.nullCount(),
		MemoryBytes:    c.bytes(),
		Indexes:        []string{IndexForward},
	}
	if c.dict != nil {
		md.Cardinality = c.dict.Len()
		md.Indexes = append(md.Indexes, IndexDictionary)
	} else if n, ok := c.st.EstimatedCardinality(); ok {
		md.Cardinality = n
		md.CardinalityEstimated = true
	}
	if v, ok := c.st.Min(); ok {
		md.MinValue = v
	}
	if v, ok := c.st.Max(); ok {
		md.MaxValue = v
	}
	if c.nulls != nil {
		md.Indexes = append(md.Indexes, IndexNullValue)
	}
	if c.inv != nil {
		md.Indexes = append(md.Indexes, IndexInverted)
	}
	if c.rng != nil {
		md.Indexes = append(md.Indexes, IndexRange)
	}
	if c.text != nil {
		md.Indexes = append(md.Indexes, IndexText)
	}
	slices.Sort(md.Indexes)
	return md
}

func (c *typedColumn[K]) bytes() int64 {
	var n int64
	if c.dict != nil {
		n += c.dict.Bytes()
	}
	if c.sv != nil {
		n += c.sv.Bytes()
	}
	if c.mv != nil {
		n += c.mv.Bytes()
	}
	if c.raw != nil {
		n += c.raw.Bytes()
	}
	if c.nulls != nil {
		n += c.nulls.Bytes()
	}
	if c.inv != nil {
		n += c.inv.Bytes()
	}
	if c.rng != nil {
		n += c.rng.Bytes()
	}
	if c.text != nil {
		n += c.text.Bytes()
	}
	return n
}

func (c *typedColumn[K]) free() {
	if c.dict != nil {
		c.dict.Free()
	}
	if c.sv != nil {
		c.sv.Free()
	}
	if c.mv != nil {
		c.mv.Free()
	}
	if c.raw != nil {
		c.raw.Free()
	}
	if c.nulls != nil {
		c.nulls.Free()
	}
	if c.inv != nil {
		c.inv.Free()
	}
	if c.rng != nil {
		c.rng.Free()
	}
	if c.text != nil {
		c.text.Free()
	}
}
