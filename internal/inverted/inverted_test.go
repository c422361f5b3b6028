package inverted

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rtseg/internal/chunked"
)

func TestIndex_AddDocIDs(t *testing.T) {
	x := New(4, 4, nil)
	// doc -> dict id: 0:0 1:1 2:0 3:2 4:0
	for doc, id := range []int32{0, 1, 0, 2, 0} {
		require.NoError(t, x.Add(id, uint32(doc)))
	}

	assert.Equal(t, 3, x.NumIDs())
	assert.Equal(t, []uint32{0, 2, 4}, x.DocIDs(0, 5).ToArray())
	assert.Equal(t, []uint32{0, 2}, x.DocIDs(0, 4).ToArray())
	assert.Equal(t, []uint32{3}, x.DocIDs(2, 5).ToArray())
	assert.True(t, x.DocIDs(7, 5).IsEmpty())
	assert.Equal(t, []uint32{1, 3}, x.Union([]int32{1, 2}, 5).ToArray())
	assert.Positive(t, x.Bytes())
}

func TestIndex_MultiValueDuplicates(t *testing.T) {
	x := New(4, 4, nil)
	require.NoError(t, x.Add(0, 0))
	require.NoError(t, x.Add(0, 0))
	require.NoError(t, x.Add(1, 0))
	assert.Equal(t, uint64(1), x.DocIDs(0, 1).GetCardinality())
}

type denyAll struct{}

func (denyAll) Reserve(int64) error { return errors.New("denied") }
func (denyAll) Release(int64)       {}

func TestIndex_AllocationFailure(t *testing.T) {
	x := New(4, 4, denyAll{})
	require.ErrorIs(t, x.Add(0, 0), chunked.ErrAllocationFailed)
}
