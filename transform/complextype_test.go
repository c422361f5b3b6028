package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rtseg/row"
	"github.com/hupe1980/rtseg/schema"
)

func TestComplexType_FlattenAndUnnest(t *testing.T) {
	ct := NewComplexType(&schema.ComplexTypeConfig{UnnestFields: []string{"items"}})
	in := row.FromMap(map[string]row.Value{
		"order": row.String("o1"),
		"meta": row.Map(map[string]row.Value{
			"src": row.String("web"),
			"geo": row.Map(map[string]row.Value{"cc": row.String("de")}),
		}),
		"items": row.Array([]row.Value{
			row.Map(map[string]row.Value{"sku": row.String("x"), "qty": row.Long(1)}),
			row.Map(map[string]row.Value{"sku": row.String("y"), "qty": row.Long(2)}),
		}),
	})

	rows := ct.Expand(in)
	require.Len(t, rows, 2)
	for i, sku := range []string{"x", "y"} {
		r := rows[i]
		assert.Equal(t, []string{"items.qty", "items.sku", "meta.geo.cc", "meta.src", "order"}, r.Columns())
		v, _ := r.Value("items.sku")
		assert.True(t, v.Equal(row.String(sku)))
		v, _ = r.Value("items.qty")
		assert.True(t, v.Equal(row.Long(int64(i+1))))
		v, _ = r.Value("meta.geo.cc")
		assert.True(t, v.Equal(row.String("de")))
	}
	// The last element reuses the input row.
	assert.Same(t, in, rows[1])
}

func TestComplexType_ScalarElementsAndEmptyArrays(t *testing.T) {
	ct := NewComplexType(&schema.ComplexTypeConfig{UnnestFields: []string{"tags", "none"}, Delimiter: "_"})
	rows := ct.Expand(row.FromMap(map[string]row.Value{
		"tags": row.Array([]row.Value{row.String("a"), row.String("b"), row.String("c")}),
		"none": row.Array(nil),
	}))
	require.Len(t, rows, 3)
	for i, want := range []string{"a", "b", "c"} {
		v, _ := rows[i].Value("tags")
		assert.True(t, v.Equal(row.String(want)))
		assert.False(t, rows[i].Has("none"))
	}
}

func TestComplexType_EncodesNestedArrays(t *testing.T) {
	ct := NewComplexType(&schema.ComplexTypeConfig{})
	rows := ct.Expand(row.FromMap(map[string]row.Value{
		"attrs": row.Array([]row.Value{row.Map(map[string]row.Value{"a": row.Long(1)})}),
		"plain": row.Array([]row.Value{row.Long(1), row.Long(2)}),
	}))
	require.Len(t, rows, 1)

	v, _ := rows[0].Value("attrs")
	assert.True(t, v.Equal(row.String(`[{"a":1}]`)))
	v, _ = rows[0].Value("plain")
	assert.Equal(t, row.KindArray, v.Kind)
}

func TestPipeline_UnnestProducesRows(t *testing.T) {
	s := schema.MustNew("orders",
		schema.FieldSpec{Name: "order", DataType: schema.DataTypeString},
		schema.FieldSpec{Name: "items.sku", DataType: schema.DataTypeString},
		schema.FieldSpec{Name: "items.qty", DataType: schema.DataTypeInt, FieldType: schema.FieldTypeMetric},
	)
	p, err := New(s, &schema.TableConfig{Ingestion: schema.IngestionConfig{
		ComplexType:      &schema.ComplexTypeConfig{UnnestFields: []string{"items"}},
		FilterExpression: `$env["items.qty"] == 0`,
	}})
	require.NoError(t, err)

	res := p.Process(row.FromMap(map[string]row.Value{
		"order": row.String("o1"),
		"items": row.Array([]row.Value{
			row.Map(map[string]row.Value{"sku": row.String("x"), "qty": row.Long(3)}),
			row.Map(map[string]row.Value{"sku": row.String("y"), "qty": row.Long(0)}),
			row.Map(map[string]row.Value{"sku": row.String("z"), "qty": row.String("bad")}),
		}),
	}))

	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 1, res.Skipped)
	v, _ := res.Rows[0].Value("items.qty")
	assert.True(t, v.Equal(row.Int(3)))
}
