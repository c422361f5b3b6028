package segment

import (
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rtseg/resource"
	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
	"github.com/hupe1980/rtseg/testutil"
)

func eventsSchema(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := schema.New("events",
		schema.FieldSpec{Name: "user", DataType: schema.DataTypeString},
		schema.FieldSpec{Name: "tags", DataType: schema.DataTypeString, MultiValue: true},
		schema.FieldSpec{Name: "clicks", DataType: schema.DataTypeLong, FieldType: schema.FieldTypeMetric},
		schema.FieldSpec{Name: "score", DataType: schema.DataTypeInt, NotNull: true, DefaultNullValue: 0},
		schema.FieldSpec{Name: "price", DataType: schema.DataTypeDouble, FieldType: schema.FieldTypeMetric},
		schema.FieldSpec{Name: "amount", DataType: schema.DataTypeBigDecimal, FieldType: schema.FieldTypeMetric},
		schema.FieldSpec{Name: "payload", DataType: schema.DataTypeBytes},
		schema.FieldSpec{Name: "ts", DataType: schema.DataTypeTimestamp, FieldType: schema.FieldTypeDateTime},
	)
	require.NoError(t, err)
	return s
}

func eventsTable() *schema.TableConfig {
	return &schema.TableConfig{
		Name: "events",
		Indexing: schema.IndexingConfig{
			NoDictionaryColumns:  []string{"price"},
			InvertedIndexColumns: []string{"user", "tags"},
			RangeIndexColumns:    []string{"clicks", "price"},
			TextIndexColumns:     []string{"user"},
		},
	}
}

// expected returns the row the segment should reconstruct for in.
func expected(s *schema.Schema, in *row.Row) *row.Row {
	out := row.New()
	for i := range s.Fields {
		f := &s.Fields[i]
		if v, ok := in.Value(f.Name); ok && !v.IsNull() {
			out.PutValue(f.Name, v)
			continue
		}
		def, _ := s.DefaultNullValue(f.Name)
		if f.NotNull {
			out.PutValue(f.Name, def)
		} else {
			out.PutDefaultNullValue(f.Name, def)
		}
	}
	return out
}

func intSchema(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := schema.New("t", schema.FieldSpec{Name: "v", DataType: schema.DataTypeInt})
	require.NoError(t, err)
	return s
}

func TestIndex_NullThenRepeatedValue(t *testing.T) {
	seg, err := New(intSchema(t))
	require.NoError(t, err)

	r := row.New()
	r.PutDefaultNullValue("v", row.Null())
	require.NoError(t, seg.Index(r))

	r.Clear()
	r.PutValue("v", row.Int(5))
	require.NoError(t, seg.Index(r))
	require.NoError(t, seg.Index(r))

	assert.Equal(t, 3, seg.NumDocs())

	ds, err := seg.DataSource("v")
	require.NoError(t, err)

	nulls := ds.NullValueVector()
	require.NotNil(t, nulls)
	for d, want := range []bool{true, false, false} {
		got, err := nulls.IsNull(d)
		require.NoError(t, err)
		assert.Equal(t, want, got, "doc %d", d)
	}
	_, err = nulls.IsNull(3)
	assert.ErrorIs(t, err, ErrDocIDOutOfRange)

	dict := ds.Dictionary()
	require.NotNil(t, dict)
	n, err := dict.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fwd := ds.ForwardIndex()
	id1, err := fwd.DictID(1)
	require.NoError(t, err)
	id2, err := fwd.DictID(2)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id0, err := fwd.DictID(0)
	require.NoError(t, err)
	assert.Equal(t, NullDictID, id0)

	for _, d := range []int{1, 2} {
		rec, err := seg.Record(d, nil)
		require.NoError(t, err)
		v, ok := rec.Value("v")
		require.True(t, ok)
		assert.True(t, v.Equal(row.Int(5)))
		assert.False(t, rec.IsNull("v"))
	}

	rec, err := seg.Record(0, nil)
	require.NoError(t, err)
	assert.True(t, rec.IsNull("v"))
}

func TestIndex_MissingNotNullColumnUsesDefault(t *testing.T) {
	s := eventsSchema(t)
	seg, err := New(s)
	require.NoError(t, err)

	r := row.New()
	r.PutValue("user", row.String("alice"))
	require.NoError(t, seg.Index(r))

	rec, err := seg.Record(0, nil)
	require.NoError(t, err)

	v, ok := rec.Value("score")
	require.True(t, ok)
	assert.True(t, v.Equal(row.Int(0)))
	assert.False(t, rec.IsNull("score"))
	assert.True(t, rec.IsNull("clicks"))

	ds, err := seg.DataSource("score")
	require.NoError(t, err)
	assert.Nil(t, ds.NullValueVector())
}

func TestRecord_RoundTrip(t *testing.T) {
	s := eventsSchema(t)
	seg, err := New(s, WithChunkSize(64), WithPostingChunkSize(4), WithTableConfig(eventsTable()))
	require.NoError(t, err)

	gen := testutil.NewRowGenerator(testutil.NewRNG(4711), s,
		testutil.WithNullRate(0.15), testutil.WithCardinality(40))
	rows := gen.Rows(300)
	for _, r := range rows {
		require.NoError(t, seg.Index(r))
	}
	require.Equal(t, len(rows), seg.NumDocs())

	reuse := row.New()
	for d, r := range rows {
		got, err := seg.Record(d, reuse)
		require.NoError(t, err)
		if diff := testutil.RowDiff(expected(s, r), got); diff != "" {
			t.Fatalf("doc %d mismatch (-want +got):\n%s", d, diff)
		}
	}
}

func TestRecord_StableAcrossGrowth(t *testing.T) {
	s := eventsSchema(t)
	seg, err := New(s, WithChunkSize(16), WithTableConfig(eventsTable()))
	require.NoError(t, err)

	gen := testutil.NewRowGenerator(testutil.NewRNG(7), s, testutil.WithNullRate(0.2))
	for _, r := range gen.Rows(20) {
		require.NoError(t, seg.Index(r))
	}

	before := make([]*row.Row, seg.NumDocs())
	for d := range before {
		before[d], err = seg.Record(d, nil)
		require.NoError(t, err)
	}

	// Force several more chunk allocations in every structure.
	for _, r := range gen.Rows(200) {
		require.NoError(t, seg.Index(r))
	}

	for d, want := range before {
		got, err := seg.Record(d, nil)
		require.NoError(t, err)
		assert.Empty(t, testutil.RowDiff(want, got), "doc %d", d)
	}
}

func TestRecord_Errors(t *testing.T) {
	seg, err := New(intSchema(t))
	require.NoError(t, err)

	_, err = seg.Record(0, nil)
	assert.ErrorIs(t, err, ErrDocIDOutOfRange)

	require.NoError(t, seg.Index(row.FromMap(map[string]row.Value{"v": row.Int(1)})))

	_, err = seg.Record(-1, nil)
	assert.ErrorIs(t, err, ErrDocIDOutOfRange)
	_, err = seg.Record(1, nil)
	assert.ErrorIs(t, err, ErrDocIDOutOfRange)

	reuse := row.New()
	reuse.PutValue("stale", row.String("x"))
	got, err := seg.Record(0, reuse)
	require.NoError(t, err)
	assert.Same(t, reuse, got)
	assert.False(t, got.Has("stale"))
}

func TestIndex_DictionaryIDsFollowFirstSeenOrder(t *testing.T) {
	s := eventsSchema(t)
	seg, err := New(s)
	require.NoError(t, err)

	users := []string{"carol", "alice", "carol", "bob", "alice"}
	for _, u := range users {
		require.NoError(t, seg.Index(row.FromMap(map[string]row.Value{"user": row.String(u)})))
	}

	ds, err := seg.DataSource("user")
	require.NoError(t, err)
	fwd := ds.ForwardIndex()

	var ids []int32
	for d := range users {
		id, err := fwd.DictID(d)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []int32{0, 1, 0, 2, 1}, ids)

	dict := ds.Dictionary()
	for id, want := range []string{"carol", "alice", "bob"} {
		v, err := dict.Get(int32(id))
		require.NoError(t, err)
		assert.True(t, v.Equal(row.String(want)))
	}
}

func TestIndex_TypeMismatchKeepsSegmentWritable(t *testing.T) {
	s := eventsSchema(t)
	seg, err := New(s)
	require.NoError(t, err)

	bad := row.FromMap(map[string]row.Value{
		"user":   row.String("alice"),
		"clicks": row.String("not a number"),
	})
	err = seg.Index(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var ce *ColumnError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "clicks", ce.Column)

	assert.Equal(t, 0, seg.NumDocs())
	assert.True(t, seg.Writable())

	// Staging rejected the row before any dictionary insert.
	ds, err := seg.DataSource("user")
	require.NoError(t, err)
	n, err := ds.Dictionary().Len()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, seg.Index(row.FromMap(map[string]row.Value{"clicks": row.Long(3)})))
	assert.Equal(t, 1, seg.NumDocs())

	err = seg.Index(row.FromMap(map[string]row.Value{"tags": row.String("single")}))
	assert.ErrorIs(t, err, ErrTypeMismatch)
	err = seg.Index(row.FromMap(map[string]row.Value{"user": row.Array([]row.Value{row.String("a")})}))
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.True(t, seg.Writable())
}

func TestIndex_NumericCoercion(t *testing.T) {
	s := eventsSchema(t)
	seg, err := New(s)
	require.NoError(t, err)

	require.NoError(t, seg.Index(row.FromMap(map[string]row.Value{
		"clicks": row.Int(7),
		"score":  row.Long(3),
		"price":  row.Long(2),
		"amount": row.Double(1.5),
	})))

	rec, err := seg.Record(0, nil)
	require.NoError(t, err)

	v, _ := rec.Value("clicks")
	assert.True(t, v.Equal(row.Long(7)))
	v, _ = rec.Value("score")
	assert.True(t, v.Equal(row.Int(3)))
	v, _ = rec.Value("price")
	assert.True(t, v.Equal(row.Double(2)))
	v, _ = rec.Value("amount")
	assert.True(t, v.Equal(row.BigDecimal(decimal.RequireFromString("1.5"))))

	err = seg.Index(row.FromMap(map[string]row.Value{"score": row.Long(1 << 40)}))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestIndex_DictionarySaturated(t *testing.T) {
	seg, err := New(intSchema(t), WithMaxDictionarySize(2))
	require.NoError(t, err)

	for _, v := range []int32{1, 2, 1} {
		require.NoError(t, seg.Index(row.FromMap(map[string]row.Value{"v": row.Int(v)})))
	}

	err = seg.Index(row.FromMap(map[string]row.Value{"v": row.Int(3)}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDictionarySaturated)
	assert.Equal(t, 3, seg.NumDocs())
	assert.False(t, seg.Writable())

	// Sticky even for values already in the dictionary.
	err = seg.Index(row.FromMap(map[string]row.Value{"v": row.Int(1)}))
	assert.ErrorIs(t, err, ErrSegmentNotWritable)
	assert.ErrorIs(t, err, ErrDictionarySaturated)

	// Reads keep working.
	rec, err := seg.Record(2, nil)
	require.NoError(t, err)
	v, _ := rec.Value("v")
	assert.True(t, v.Equal(row.Int(1)))
}

func TestIndex_SaturationLeavesEarlierColumnsUntouched(t *testing.T) {
	s, err := schema.New("pair",
		schema.FieldSpec{Name: "a", DataType: schema.DataTypeInt},
		schema.FieldSpec{Name: "b", DataType: schema.DataTypeInt},
	)
	require.NoError(t, err)
	seg, err := New(s, WithMaxDictionarySize(2))
	require.NoError(t, err)

	pair := func(a, b int32) row.Row {
		return row.FromMap(map[string]row.Value{"a": row.Int(a), "b": row.Int(b)})
	}
	require.NoError(t, seg.Index(pair(1, 1)))
	require.NoError(t, seg.Index(pair(1, 2)))

	// a has room for -7, b is full.
	err = seg.Index(pair(-7, 3))
	require.ErrorIs(t, err, ErrDictionarySaturated)
	assert.Equal(t, 2, seg.NumDocs())

	ds, err := seg.DataSource("a")
	require.NoError(t, err)
	n, err := ds.Dictionary().Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lo, hi, ok, err := ds.Dictionary().MinMax()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, lo.Equal(row.Int(1)))
	assert.True(t, hi.Equal(row.Int(1)))

	md, err := ds.Metadata()
	require.NoError(t, err)
	assert.Equal(t, 1, md.Cardinality)
}

func TestIndex_AllocationFailed(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1024})
	seg, err := New(intSchema(t), WithChunkSize(64), WithResourceController(rc))
	require.NoError(t, err)

	var indexed int
	for i := range 10_000 {
		err = seg.Index(row.FromMap(map[string]row.Value{"v": row.Int(int32(i))}))
		if err != nil {
			break
		}
		indexed++
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllocationFailed)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, indexed, seg.NumDocs())
	assert.False(t, seg.Writable())
	assert.LessOrEqual(t, rc.MemoryUsage(), int64(1024))
	assert.Positive(t, rc.DeniedReservations())

	err = seg.Index(row.FromMap(map[string]row.Value{"v": row.Int(1)}))
	assert.ErrorIs(t, err, ErrSegmentNotWritable)

	for d := range indexed {
		rec, err := seg.Record(d, nil)
		require.NoError(t, err)
		v, _ := rec.Value("v")
		require.True(t, v.Equal(row.Int(int32(d))), "doc %d", d)
	}

	require.NoError(t, seg.Destroy())
	assert.Zero(t, rc.MemoryUsage())
}

func TestDestroy(t *testing.T) {
	s := eventsSchema(t)
	seg, err := New(s, WithTableConfig(eventsTable()))
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, seg.State())

	gen := testutil.NewRowGenerator(testutil.NewRNG(3), s)
	for _, r := range gen.Rows(10) {
		require.NoError(t, seg.Index(r))
	}
	assert.Equal(t, StateConsuming, seg.State())
	assert.Positive(t, seg.MemoryUsage())

	ds, err := seg.DataSource("user")
	require.NoError(t, err)

	require.NoError(t, seg.Destroy())
	assert.Equal(t, StateDestroyed, seg.State())
	assert.Zero(t, seg.MemoryUsage())

	assert.ErrorIs(t, seg.Destroy(), ErrSegmentDestroyed)
	assert.ErrorIs(t, seg.Index(gen.Next()), ErrSegmentDestroyed)

	_, err = seg.Record(0, nil)
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
	_, err = seg.DataSource("user")
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
	_, err = seg.Metadata()
	assert.ErrorIs(t, err, ErrSegmentDestroyed)

	// Views obtained before Destroy fail too.
	_, err = ds.ForwardIndex().Value(0)
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
	_, err = ds.Dictionary().Get(0)
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
	_, err = ds.Dictionary().Len()
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
	_, err = ds.InvertedIndex().DocIDs(0)
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
	_, err = ds.TextIndex().Match("value")
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
	_, err = ds.NullValueVector().IsNull(0)
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
	_, err = ds.Metadata()
	assert.ErrorIs(t, err, ErrSegmentDestroyed)
}

func TestDataSource_UnknownColumn(t *testing.T) {
	seg, err := New(intSchema(t))
	require.NoError(t, err)

	_, err = seg.DataSource("missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestNew_InvalidConfig(t *testing.T) {
	s := eventsSchema(t)

	_, err := New(nil)
	assert.ErrorIs(t, err, schema.ErrInvalidSchema)

	_, err = New(s, WithTableConfig(&schema.TableConfig{
		Indexing: schema.IndexingConfig{RangeIndexColumns: []string{"nope"}},
	}))
	assert.ErrorIs(t, err, schema.ErrInvalidSchema)
}

func TestNullHandlingDisabled(t *testing.T) {
	off := false
	seg, err := New(intSchema(t), WithTableConfig(&schema.TableConfig{
		Indexing: schema.IndexingConfig{NullHandlingEnabled: &off},
	}))
	require.NoError(t, err)

	require.NoError(t, seg.Index(row.New()))

	ds, err := seg.DataSource("v")
	require.NoError(t, err)
	assert.Nil(t, ds.NullValueVector())

	// Without a null vector the placeholder is a regular value.
	rec, err := seg.Record(0, nil)
	require.NoError(t, err)
	assert.False(t, rec.IsNull("v"))
	n, err := ds.Dictionary().Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetadata(t *testing.T) {
	s := eventsSchema(t)
	seg, err := New(s, WithName("events_0"), WithTableConfig(eventsTable()))
	require.NoError(t, err)

	rows := []map[string]row.Value{
		{"user": row.String("alice"), "clicks": row.Long(5), "price": row.Double(1.5),
			"tags": row.Array([]row.Value{row.String("a"), row.String("b"), row.String("a")})},
		{"user": row.String("bob"), "clicks": row.Long(-2), "price": row.Double(1.5)},
		{"user": row.String("alice"), "price": row.Double(9)},
	}
	for _, m := range rows {
		require.NoError(t, seg.Index(row.FromMap(m)))
	}

	md, err := seg.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "events_0", md.Name)
	assert.Equal(t, "events", md.Table)
	assert.Equal(t, 3, md.NumDocs)
	assert.Equal(t, StateConsuming, md.State)
	assert.False(t, md.LastIndexedAt.IsZero())
	assert.Equal(t, seg.MemoryUsage(), md.MemoryBytes)
	assert.Len(t, md.Columns, len(s.Fields))

	user := md.Columns["user"]
	assert.Equal(t, 2, user.Cardinality)
	assert.True(t, user.MinValue.Equal(row.String("alice")))
	assert.True(t, user.MaxValue.Equal(row.String("bob")))
	assert.Equal(t, []string{IndexDictionary, IndexForward, IndexInverted, IndexNullValue, IndexText}, user.Indexes)

	clicks := md.Columns["clicks"]
	assert.Equal(t, 2, clicks.Cardinality)
	assert.Equal(t, 1, clicks.NullCount)
	assert.True(t, clicks.MinValue.Equal(row.Long(-2)))
	assert.True(t, clicks.MaxValue.Equal(row.Long(5)))

	price := md.Columns["price"]
	assert.False(t, price.HasDictionary)
	assert.True(t, price.CardinalityEstimated)
	assert.Equal(t, 2, price.Cardinality)

	tags := md.Columns["tags"]
	assert.False(t, tags.SingleValue)
	assert.Equal(t, 3, tags.MaxMultiValues)
	assert.Equal(t, 2, tags.NullCount)
	assert.Equal(t, 2, tags.Cardinality)
}

type countingMetrics struct {
	index, indexErr, read atomic.Int64
}

func (m *countingMetrics) RecordIndex(_ time.Duration, err error) {
	m.index.Add(1)
	if err != nil {
		m.indexErr.Add(1)
	}
}

func (m *countingMetrics) RecordRead(time.Duration, error) { m.read.Add(1) }

func TestMetrics(t *testing.T) {
	m := &countingMetrics{}
	seg, err := New(intSchema(t), WithMetrics(m))
	require.NoError(t, err)

	require.NoError(t, seg.Index(row.FromMap(map[string]row.Value{"v": row.Int(1)})))
	require.Error(t, seg.Index(row.FromMap(map[string]row.Value{"v": row.String("x")})))
	_, _ = seg.Record(0, nil)

	assert.Equal(t, int64(2), m.index.Load())
	assert.Equal(t, int64(1), m.indexErr.Load())
	assert.Equal(t, int64(1), m.read.Load())
}

func TestConcurrentReaders(t *testing.T) {
	s, err := schema.New("c",
		schema.FieldSpec{Name: "id", DataType: schema.DataTypeLong},
		schema.FieldSpec{Name: "name", DataType: schema.DataTypeString},
		schema.FieldSpec{Name: "tags", DataType: schema.DataTypeString, MultiValue: true},
	)
	require.NoError(t, err)

	seg, err := New(s, WithChunkSize(64), WithPostingChunkSize(2), WithTableConfig(&schema.TableConfig{
		Indexing: schema.IndexingConfig{
			InvertedIndexColumns: []string{"name"},
			RangeIndexColumns:    []string{"id"},
		},
	}))
	require.NoError(t, err)

	const numDocs = 5000
	name := func(i int) string { return fmt.Sprintf("n%02d", i%50) }

	var done atomic.Bool
	var g errgroup.Group

	g.Go(func() error {
		defer done.Store(true)
		r := row.New()
		for i := range numDocs {
			r.Clear()
			r.PutValue("id", row.Long(int64(i)))
			if i%7 != 0 {
				r.PutValue("name", row.String(name(i)))
			}
			r.PutValue("tags", row.Array([]row.Value{row.String(name(i)), row.String("all")}))
			if err := seg.Index(r); err != nil {
				return err
			}
		}
		return nil
	})

	for w := range 4 {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(w)))
			reuse := row.New()
			ds, err := seg.DataSource("name")
			if err != nil {
				return err
			}
			for !done.Load() {
				n := seg.NumDocs()
				if n == 0 {
					continue
				}
				d := rng.Intn(n)
				rec, err := seg.Record(d, reuse)
				if err != nil {
					return err
				}
				id, _ := rec.Value("id")
				if id.I64 != int64(d) {
					return fmt.Errorf("doc %d: id %d", d, id.I64)
				}
				if d%7 == 0 {
					if !rec.IsNull("name") {
						return fmt.Errorf("doc %d: name not null", d)
					}
				} else if v, _ := rec.Value("name"); !v.Equal(row.String(name(d))) {
					return fmt.Errorf("doc %d: name %s", d, v)
				}

				docs, err := ds.InvertedIndex().DocIDs(0)
				if err != nil {
					return err
				}
				if last, ok := lastOf(docs.ToArray()); ok && int(last) >= seg.NumDocs() {
					return fmt.Errorf("inverted index exposed unpublished doc %d", last)
				}
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, numDocs, seg.NumDocs())
}

func lastOf(a []uint32) (uint32, bool) {
	if len(a) == 0 {
		return 0, false
	}
	return a[len(a)-1], true
}
