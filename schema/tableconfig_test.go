package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := Parse([]byte(eventsSchema))
	require.NoError(t, err)
	return s
}

func TestTableConfig_Parse(t *testing.T) {
	c, err := ParseTableConfig([]byte(`{
	  "tableName": "events",
	  "tableIndexConfig": {
	    "noDictionaryColumns": ["clicks"],
	    "invertedIndexColumns": ["user", "tags"],
	    "rangeIndexColumns": ["clicks"],
	    "textIndexColumns": ["user"],
	    "nullHandlingEnabled": false
	  },
	  "ingestionConfig": {
	    "transformConfigs": [{"columnName": "score", "transformFunction": "clicks * 2"}],
	    "filterFunction": "clicks < 0",
	    "complexTypeConfig": {"fieldsToUnnest": ["items"], "delimiter": "_"},
	    "errorPolicy": "lenient"
	  }
	}`))
	require.NoError(t, err)
	require.NoError(t, c.Validate(testSchema(t)))

	assert.False(t, c.Indexing.NullHandling())
	assert.False(t, c.Indexing.HasDictionary("clicks"))
	assert.True(t, c.Indexing.HasDictionary("user"))
	assert.True(t, c.Indexing.HasInvertedIndex("tags"))
	assert.True(t, c.Indexing.HasTextIndex("user"))
	assert.True(t, c.Ingestion.ErrorPolicy.Lenient())
	assert.Equal(t, "_", c.Ingestion.ComplexType.EffectiveDelimiter())
}

func TestTableConfig_Defaults(t *testing.T) {
	var c TableConfig
	require.NoError(t, c.Validate(testSchema(t)))
	assert.True(t, c.Indexing.NullHandling())
	assert.False(t, c.Ingestion.ErrorPolicy.Lenient())
	assert.Equal(t, ".", c.Ingestion.ComplexType.EffectiveDelimiter())
}

func TestTableConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  TableConfig
	}{
		{"unknown column", TableConfig{Indexing: IndexingConfig{InvertedIndexColumns: []string{"nope"}}}},
		{"inverted without dictionary", TableConfig{Indexing: IndexingConfig{
			NoDictionaryColumns:  []string{"user"},
			InvertedIndexColumns: []string{"user"},
		}}},
		{"range on mv", TableConfig{Indexing: IndexingConfig{RangeIndexColumns: []string{"tags"}}}},
		{"text on long", TableConfig{Indexing: IndexingConfig{TextIndexColumns: []string{"clicks"}}}},
		{"bad policy", TableConfig{Ingestion: IngestionConfig{ErrorPolicy: "ignore"}}},
		{"transform without expression", TableConfig{Ingestion: IngestionConfig{
			Transforms: []TransformConfig{{Column: "score"}},
		}}},
	}

	s := testSchema(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(s), ErrInvalidSchema)
		})
	}
}

func TestTableConfig_UnknownField(t *testing.T) {
	_, err := ParseTableConfig([]byte(`{"tableName":"x","bogus":1}`))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}
