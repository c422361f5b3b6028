package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, Default.MkdirAll(dir, 0o755))

	f, err := Default.CreateTemp(dir, ".tmp-blob-*")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "blob")
	require.NoError(t, Default.Rename(f.Name(), dst))

	r, err := Default.Open(dst)
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = r.ReadAt(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "llo", string(buf))
	require.NoError(t, r.Close())

	var files []string
	require.NoError(t, Default.WalkDir(filepath.Dir(dir), func(p string, d iofs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, filepath.Base(p))
		}
		return err
	}))
	assert.Equal(t, []string{"blob"}, files)

	require.NoError(t, Default.Remove(dst))
	_, err = Default.Open(dst)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFaultyFS_Write(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.Inject(Fault{Op: OpWrite, Match: "rows", After: 5})

	f, err := ffs.CreateTemp(t.TempDir(), ".tmp-rows-*")
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = f.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), ffs.Injected())

	// Other files are unaffected.
	g, err := ffs.CreateTemp(t.TempDir(), ".tmp-meta-*")
	require.NoError(t, err)
	_, err = g.Write(make([]byte, 64))
	require.NoError(t, err)
	require.NoError(t, g.Close())
}

func TestFaultyFS_Ops(t *testing.T) {
	boom := errors.New("disk on fire")
	dir := t.TempDir()
	ffs := NewFaultyFS(Default)
	ffs.Inject(Fault{Op: OpSync, Err: boom})
	ffs.Inject(Fault{Op: OpRename, Match: "final"})
	ffs.Inject(Fault{Op: OpCreate, Match: "denied"})

	f, err := ffs.CreateTemp(dir, ".tmp-*")
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), boom)
	require.NoError(t, f.Close())

	assert.ErrorIs(t, ffs.Rename(f.Name(), filepath.Join(dir, "final")), ErrInjected)
	require.NoError(t, ffs.Rename(f.Name(), filepath.Join(dir, "other")))

	_, err = ffs.CreateTemp(dir, "denied-*")
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, int64(3), ffs.Injected())

	ffs.Reset()
	f, err = ffs.CreateTemp(dir, ".tmp-*")
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
	require.NoError(t, ffs.Remove(f.Name()))
}

func TestFaultyFS_Close(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.Inject(Fault{Op: OpClose})

	f, err := ffs.CreateTemp(t.TempDir(), ".tmp-*")
	require.NoError(t, err)
	assert.ErrorIs(t, f.Close(), ErrInjected)
	assert.Equal(t, OpClose.String(), "close")
}
