package nullvector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_SetIsNull(t *testing.T) {
	v := New(128, nil)

	for _, d := range []int{0, 3, 63, 64, 500} {
		require.NoError(t, v.Set(d))
	}
	require.NoError(t, v.Set(3)) // idempotent

	for d := range 600 {
		want := d == 0 || d == 3 || d == 63 || d == 64 || d == 500
		assert.Equal(t, want, v.IsNull(d), "doc %d", d)
	}
	assert.Equal(t, 5, v.Cardinality())
	assert.False(t, v.IsNull(1<<20))
	assert.False(t, v.IsNull(-1))
}

func TestVector_Bitmap(t *testing.T) {
	v := New(64, nil)
	for _, d := range []int{1, 2, 70, 130} {
		require.NoError(t, v.Set(d))
	}

	assert.Equal(t, []uint32{1, 2, 70}, v.Bitmap(130).ToArray())
	assert.Equal(t, []uint32{1, 2, 70, 130}, v.Bitmap(1000).ToArray())
	assert.True(t, v.Bitmap(0).IsEmpty())
}

func TestVector_EvenDocsNull(t *testing.T) {
	v := New(1024, nil)
	for d := 0; d < 10000; d += 2 {
		require.NoError(t, v.Set(d))
	}
	for d := range 10000 {
		assert.Equal(t, d%2 == 0, v.IsNull(d))
	}
	assert.Equal(t, 5000, v.Cardinality())
	assert.Equal(t, uint64(5000), v.Bitmap(10000).GetCardinality())
}

func TestVector_ConcurrentReaders(t *testing.T) {
	v := New(64, nil)
	const n = 5000

	var published sync.Map
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range n {
				if _, ok := published.Load(d); ok && d%3 == 0 {
					assert.True(t, v.IsNull(d))
				}
			}
		}()
	}

	for d := range n {
		if d%3 == 0 {
			require.NoError(t, v.Set(d))
		}
		published.Store(d, struct{}{})
	}
	wg.Wait()
}

func TestVector_Free(t *testing.T) {
	v := New(64, nil)
	require.NoError(t, v.Set(10))
	assert.Positive(t, v.Bytes())

	v.Free()
	assert.False(t, v.IsNull(10))
	assert.Equal(t, 0, v.Cardinality())
	assert.Equal(t, int64(0), v.Bytes())
}
