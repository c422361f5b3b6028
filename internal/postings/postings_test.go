package postings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_AddSnapshot(t *testing.T) {
	l := NewList(4, nil)
	for _, d := range []uint32{0, 2, 2, 5, 9, 10, 11} {
		require.NoError(t, l.Add(d))
	}

	assert.Equal(t, 6, l.Len())
	assert.Equal(t, []uint32{0, 2, 5, 9, 10, 11}, l.Snapshot(100).ToArray())
	assert.Equal(t, []uint32{0, 2, 5}, l.Snapshot(9).ToArray())
	assert.True(t, l.Snapshot(0).IsEmpty())
}

func TestList_ConcurrentSnapshots(t *testing.T) {
	l := NewList(8, nil)
	const n = 3000

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				rb := l.Snapshot(n)
				c := int(rb.GetCardinality())
				if c > 0 {
					// Ascending appends: the snapshot is always a prefix.
					assert.Equal(t, uint32(c-1), rb.Maximum())
				}
			}
		}()
	}

	for d := range uint32(n) {
		require.NoError(t, l.Add(d))
	}
	wg.Wait()
}
