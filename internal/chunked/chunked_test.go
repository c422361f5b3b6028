package chunked

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type budget struct {
	limit, used int64
}

var errBudget = errors.New("over budget")

func (b *budget) Reserve(n int64) error {
	if b.used+n > b.limit {
		return errBudget
	}
	b.used += n
	return nil
}

func (b *budget) Release(n int64) { b.used -= n }

func TestArray_AppendGet(t *testing.T) {
	a := New[int64](4, nil)
	assert.Equal(t, 4, a.ChunkSize())

	for i := range 10 {
		idx, err := a.Append(int64(i * 10))
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	assert.Equal(t, 10, a.Len())
	assert.Equal(t, 3, a.NumChunks())
	for i := range 10 {
		v, ok := a.Get(i)
		require.True(t, ok)
		assert.Equal(t, int64(i*10), v)
	}

	_, ok := a.Get(10)
	assert.False(t, ok)
	_, ok = a.Get(-1)
	assert.False(t, ok)
}

func TestArray_ChunkSizeRoundsUp(t *testing.T) {
	assert.Equal(t, 8, New[int](5, nil).ChunkSize())
	assert.Equal(t, DefaultChunkSize, New[int](0, nil).ChunkSize())
	assert.Equal(t, 1, New[int](1, nil).ChunkSize())
}

func TestArray_GrowthDoesNotMoveChunks(t *testing.T) {
	a := New[int](2, nil)
	_, _ = a.Append(1)
	first := a.Ptr(0)

	for i := range 100 {
		_, err := a.Append(i)
		require.NoError(t, err)
	}

	assert.Same(t, first, a.Ptr(0))
	assert.Equal(t, 1, *first)
}

func TestArray_AllocationFailure(t *testing.T) {
	b := &budget{limit: 2 * 4 * 8} // two chunks of four int64
	a := New[int64](4, b)

	for i := range 8 {
		_, err := a.Append(int64(i))
		require.NoError(t, err)
	}

	_, err := a.Append(8)
	require.ErrorIs(t, err, ErrAllocationFailed)
	require.ErrorIs(t, err, errBudget)
	assert.Equal(t, 8, a.Len())
	assert.Equal(t, 2, a.NumChunks())
	assert.Equal(t, int64(64), a.Bytes())

	a.Free()
	assert.Equal(t, int64(0), b.used)
	assert.Equal(t, 0, a.Len())
	_, ok := a.Get(0)
	assert.False(t, ok)
}

func TestArray_SetAndPublish(t *testing.T) {
	a := New[string](4, nil)
	require.NoError(t, a.Grow(3))
	a.Set(0, "a")
	a.Set(1, "b")
	_, ok := a.Get(0)
	assert.False(t, ok, "unpublished elements are invisible")

	a.SetLen(2)
	v, ok := a.Get(1)
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, []string{"a", "b"}, a.Chunk(0))
	assert.Nil(t, a.Chunk(1))
}

func TestArray_ConcurrentReaders(t *testing.T) {
	a := New[int](8, nil)
	const n = 10000

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				l := a.Len()
				for i := range l {
					v, ok := a.Get(i)
					if !ok || v != i {
						t.Errorf("index %d: got %d (%v)", i, v, ok)
						return
					}
				}
				if l == n {
					return
				}
			}
		}()
	}

	for i := range n {
		_, err := a.Append(i)
		require.NoError(t, err)
	}
	wg.Wait()
}
