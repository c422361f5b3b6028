package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rtfs "github.com/hupe1980/rtseg/internal/fs"
)

func stores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  NewLocalStore(filepath.Join(t.TempDir(), "blobs")),
	}
}

func TestBlobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	data := []byte("hello world, this is an export blob")

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.Create(ctx, "seg-1/rows.jsonl")
			require.NoError(t, err)
			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)

			// Not visible before Close.
			_, err = store.Open(ctx, "seg-1/rows.jsonl")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, w.Sync())
			require.NoError(t, w.Close())

			blob, err := store.Open(ctx, "seg-1/rows.jsonl")
			require.NoError(t, err)
			defer blob.Close()
			assert.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err = blob.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, "world", string(buf))

			rc, err := blob.ReadRange(ctx, 13, 4)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "this", string(got))

			require.NoError(t, store.Put(ctx, "seg-1/metadata.json", []byte("{}")))
			require.NoError(t, store.Put(ctx, "seg-2/metadata.json", []byte("{}")))

			names, err := store.List(ctx, "seg-1/")
			require.NoError(t, err)
			assert.Equal(t, []string{"seg-1/metadata.json", "seg-1/rows.jsonl"}, names)

			all, err := ReadAll(ctx, store, "seg-1/rows.jsonl")
			require.NoError(t, err)
			assert.Equal(t, data, all)

			require.NoError(t, store.Delete(ctx, "seg-1/rows.jsonl"))
			require.NoError(t, store.Delete(ctx, "seg-1/rows.jsonl"))
			_, err = store.Open(ctx, "seg-1/rows.jsonl")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBlob_ReadPastEnd(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "b", []byte("0123456789")))
			blob, err := store.Open(ctx, "b")
			require.NoError(t, err)
			defer blob.Close()

			buf := make([]byte, 5)
			n, err := blob.ReadAt(ctx, buf, 8)
			assert.ErrorIs(t, err, io.EOF)
			assert.Equal(t, 2, n)

			_, err = blob.ReadAt(ctx, buf, 20)
			assert.ErrorIs(t, err, io.EOF)

			rc, err := blob.ReadRange(ctx, 8, 5)
			require.NoError(t, err)
			got, _ := io.ReadAll(rc)
			assert.Equal(t, "89", string(got))
		})
	}
}

func TestLocalStore_EmptyAndMissingRoot(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Put(ctx, "empty", nil))
	blob, err := store.Open(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, blob.Size())
	require.NoError(t, blob.Close())

	// Temporary files are not listed.
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), ".tmp-x-1"), []byte("x"), 0o600))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"empty"}, names)
}

func TestMemoryStore_PutCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "x", data))
	data[0] = 'z'

	got, err := ReadAll(ctx, store, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, int64(3), store.Size())
}

func TestLocalStore_FaultsLeaveNoBlob(t *testing.T) {
	ctx := context.Background()

	for _, op := range []rtfs.Op{rtfs.OpWrite, rtfs.OpSync, rtfs.OpClose, rtfs.OpRename} {
		t.Run(op.String(), func(t *testing.T) {
			ffs := rtfs.NewFaultyFS(nil)
			ffs.Inject(rtfs.Fault{Op: op, Match: "rows.jsonl"})
			store := NewLocalStore(t.TempDir(), WithFileSystem(ffs))

			err := store.Put(ctx, "seg-1/rows.jsonl", []byte("payload"))
			require.ErrorIs(t, err, rtfs.ErrInjected)
			assert.Equal(t, int64(1), ffs.Injected())

			_, err = store.Open(ctx, "seg-1/rows.jsonl")
			assert.ErrorIs(t, err, ErrNotFound)

			entries, err := os.ReadDir(filepath.Join(store.Root(), "seg-1"))
			require.NoError(t, err)
			assert.Empty(t, entries, "temporary file left behind")

			// Unmatched blobs are unaffected.
			require.NoError(t, store.Put(ctx, "seg-1/metadata.json", []byte("{}")))
		})
	}
}

func TestLocalStore_DeleteFault(t *testing.T) {
	ctx := context.Background()
	ffs := rtfs.NewFaultyFS(nil)
	store := NewLocalStore(t.TempDir(), WithFileSystem(ffs))
	require.NoError(t, store.Put(ctx, "b", []byte("x")))

	ffs.Inject(rtfs.Fault{Op: rtfs.OpRemove})
	require.ErrorIs(t, store.Delete(ctx, "b"), rtfs.ErrInjected)

	ffs.Reset()
	require.NoError(t, store.Delete(ctx, "b"))
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
