package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
	"github.com/hupe1980/rtseg/segment"
)

func tags(vals ...string) row.Value {
	a := make([]row.Value, len(vals))
	for i, v := range vals {
		a[i] = row.String(v)
	}
	return row.Array(a)
}

func newSegment(t *testing.T) *segment.MutableSegment {
	t.Helper()
	s := schema.MustNew("clicks",
		schema.FieldSpec{Name: "user", DataType: schema.DataTypeString},
		schema.FieldSpec{Name: "tags", DataType: schema.DataTypeString, MultiValue: true},
		schema.FieldSpec{Name: "clicks", DataType: schema.DataTypeLong, FieldType: schema.FieldTypeMetric},
		schema.FieldSpec{Name: "score", DataType: schema.DataTypeInt, NotNull: true, DefaultNullValue: 0},
		schema.FieldSpec{Name: "price", DataType: schema.DataTypeDouble, FieldType: schema.FieldTypeMetric},
		schema.FieldSpec{Name: "weight", DataType: schema.DataTypeDouble},
	)
	seg, err := segment.New(s,
		segment.WithChunkSize(2),
		segment.WithTableConfig(&schema.TableConfig{
			Name: "clicks",
			Indexing: schema.IndexingConfig{
				NoDictionaryColumns:  []string{"price", "weight"},
				InvertedIndexColumns: []string{"user", "tags"},
				RangeIndexColumns:    []string{"clicks", "price"},
				TextIndexColumns:     []string{"user"},
			},
		}),
	)
	require.NoError(t, err)

	rows := []map[string]row.Value{
		{"user": row.String("alice"), "tags": tags("x", "y"), "clicks": row.Long(10), "score": row.Int(1), "price": row.Double(1.5), "weight": row.Double(0.5)},
		{"user": row.String("bob"), "tags": tags("y"), "clicks": row.Long(20), "score": row.Int(2), "price": row.Double(2.5)},
		{"price": row.Double(3.5), "weight": row.Double(1.5)},
		{"user": row.String("carol"), "tags": tags("z"), "clicks": row.Long(40), "score": row.Int(4), "weight": row.Double(2.5)},
		{"user": row.String("alice"), "tags": tags("x"), "clicks": row.Long(10), "score": row.Int(1), "price": row.Double(5.5), "weight": row.Double(3.5)},
	}
	for _, m := range rows {
		r := row.FromMap(m)
		if _, ok := m["score"]; !ok {
			r.PutValue("score", row.Int(0))
		}
		require.NoError(t, seg.Index(r))
	}
	return seg
}

func ptr(v row.Value) *row.Value { return &v }

func TestEvaluate(t *testing.T) {
	seg := newSegment(t)

	tests := []struct {
		name  string
		pred  Predicate
		want  []uint32
		index string
	}{
		{"eq inverted", Eq("user", row.String("alice")), []uint32{0, 4}, "inverted:user"},
		{"not eq skips nulls", NotEq("user", row.String("alice")), []uint32{1, 3}, "null_vector:user"},
		{"in", In("user", row.String("bob"), row.String("carol"), row.String("dave")), []uint32{1, 3}, "inverted:user"},
		{"not in", NotIn("user", row.String("bob")), []uint32{0, 3, 4}, ""},
		{"eq multi-value", Eq("tags", row.String("y")), []uint32{0, 1}, "inverted:tags"},
		{"not eq multi-value", NotEq("tags", row.String("y")), []uint32{3, 4}, ""},
		{"eq dictionary scan", Eq("clicks", row.Long(10)), []uint32{0, 4}, "scan:clicks"},
		{"eq coerces numbers", Eq("clicks", row.Int(20)), []uint32{1}, ""},
		{"eq unknown value", Eq("clicks", row.Long(99)), nil, ""},
		{"range index", Between("clicks", row.Long(10), row.Long(20)), []uint32{0, 1, 4}, "range:clicks"},
		{"range open", GreaterThan("clicks", row.Long(15)), []uint32{1, 3}, "range:clicks"},
		{"range dictionary", Between("score", row.Int(1), row.Int(2)), []uint32{0, 1, 4}, "dictionary:score"},
		{"range raw index", GreaterThan("price", row.Double(2)), []uint32{1, 2, 4}, "range:price"},
		{"range raw scan", LessThan("weight", row.Double(2)), []uint32{0, 2}, "scan:weight"},
		{"eq raw scan", Eq("weight", row.Double(1.5)), []uint32{2}, "scan:weight"},
		{"is null", IsNull("clicks"), []uint32{2}, "null_vector:clicks"},
		{"is not null", IsNotNull("price"), []uint32{0, 1, 2, 4}, ""},
		{"not null column", IsNull("score"), nil, ""},
		{"text", TextMatch("user", "ALICE"), []uint32{0, 4}, "text:user"},
		{"and", And(Eq("user", row.String("alice")), GreaterThan("price", row.Double(2))), []uint32{4}, ""},
		{"or", Or(IsNull("clicks"), Eq("user", row.String("bob"))), []uint32{1, 2}, ""},
		{"range exclusive bounds", Range("clicks", ptr(row.Long(10)), ptr(row.Long(40)), false, false), []uint32{1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bm, stats, err := Evaluate(seg, tt.pred)
			require.NoError(t, err)
			if tt.want == nil {
				assert.True(t, bm.IsEmpty(), "got %v", bm.ToArray())
			} else {
				assert.Equal(t, tt.want, bm.ToArray())
			}
			assert.Equal(t, 5, stats.NumDocs)
			assert.Equal(t, int64(len(tt.want)), stats.NumDocsMatched)
			if tt.index != "" {
				assert.Contains(t, stats.IndexesUsed, tt.index)
			}
		})
	}
}

func TestEvaluate_EntriesScanned(t *testing.T) {
	seg := newSegment(t)

	_, stats, err := Evaluate(seg, Eq("clicks", row.Long(10)))
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.NumEntriesScannedInFilter)

	_, stats, err = Evaluate(seg, Eq("user", row.String("alice")))
	require.NoError(t, err)
	assert.Zero(t, stats.NumEntriesScannedInFilter)

	// Null weights are skipped before comparison.
	_, stats, err = Evaluate(seg, Eq("weight", row.Double(0.5)))
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.NumEntriesScannedInFilter)
}

type pinned struct {
	*segment.MutableSegment
	n int
}

func (p pinned) NumDocs() int { return p.n }

func TestEvaluate_BoundedByNumDocsSnapshot(t *testing.T) {
	seg := newSegment(t)
	src := pinned{MutableSegment: seg, n: 2}

	for _, p := range []Predicate{
		Eq("user", row.String("alice")),
		IsNotNull("user"),
		GreaterThan("price", row.Double(0)),
		TextMatch("user", "alice"),
		NotIn("tags", row.String("z")),
	} {
		bm, _, err := Evaluate(src, p)
		require.NoError(t, err, p.String())
		for _, doc := range bm.ToArray() {
			assert.Less(t, doc, uint32(2), p.String())
		}
	}
}

func TestEvaluate_Errors(t *testing.T) {
	seg := newSegment(t)

	_, _, err := Evaluate(seg, Eq("missing", row.Long(1)))
	assert.ErrorIs(t, err, segment.ErrColumnNotFound)

	_, _, err = Evaluate(seg, TextMatch("tags", "x"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, _, err = Evaluate(seg, Eq("user", row.Null()))
	assert.ErrorIs(t, err, ErrInvalidPredicate)

	_, _, err = Evaluate(seg, In("user"))
	assert.ErrorIs(t, err, ErrInvalidPredicate)

	_, _, err = Evaluate(seg, And())
	assert.ErrorIs(t, err, ErrInvalidPredicate)

	_, _, err = Evaluate(seg, Or(Eq("", row.Long(1))))
	assert.ErrorIs(t, err, ErrInvalidPredicate)

	require.NoError(t, seg.Destroy())
	_, _, err = Evaluate(seg, Eq("user", row.String("alice")))
	assert.ErrorIs(t, err, segment.ErrSegmentDestroyed)
}

func TestPredicate_String(t *testing.T) {
	assert.Equal(t, "user IS NULL", IsNull("user").String())
	assert.Equal(t, `TEXT_MATCH(user, "a b")`, TextMatch("user", "a b").String())
	assert.Equal(t, "(user IS NULL) OR (tags IS NOT NULL)", Or(IsNull("user"), IsNotNull("tags")).String())
	assert.Equal(t, "RANGE", KindRange.String())
}
