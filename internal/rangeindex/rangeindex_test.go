package rangeindex

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, values []int64) *Index[int64] {
	t.Helper()
	x := New[int64](2, cmp.Compare[int64], func(d int) int64 { return values[d] }, nil)
	for d, v := range values {
		require.NoError(t, x.Grow(d+1))
		x.Add(d, v)
	}
	return x
}

func ptr[T any](v T) *T { return &v }

func TestIndex_Matching(t *testing.T) {
	// chunks of 4: [1 2 3 4] [10 11 12 13] [5 50 6 7] [100]
	values := []int64{1, 2, 3, 4, 10, 11, 12, 13, 5, 50, 6, 7, 100}
	x := build(t, values)
	assert.Equal(t, 4, x.NumZones())

	res := x.Matching(ptr[int64](10), ptr[int64](13), true, true, len(values))
	assert.Equal(t, []uint32{4, 5, 6, 7}, res.Docs.ToArray())
	// Chunk 1 lies inside the bounds; only chunk 2 (5..50) is scanned.
	assert.Equal(t, 4, res.EntriesScanned)
	assert.Equal(t, 2, res.ChunksPruned)

	res = x.Matching(ptr[int64](5), ptr[int64](7), true, true, len(values))
	assert.Equal(t, []uint32{8, 10, 11}, res.Docs.ToArray())
	assert.Equal(t, 4, res.EntriesScanned)

	res = x.Matching(ptr[int64](4), nil, false, false, len(values))
	assert.Equal(t, []uint32{4, 5, 6, 7, 8, 9, 10, 11, 12}, res.Docs.ToArray())

	res = x.Matching(nil, ptr[int64](2), false, false, len(values))
	assert.Equal(t, []uint32{0}, res.Docs.ToArray())
}

func TestIndex_LimitHidesUnpublishedDocs(t *testing.T) {
	values := []int64{1, 2, 3, 4, 5, 6}
	x := build(t, values)

	res := x.Matching(nil, nil, false, false, 5)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, res.Docs.ToArray())
}
