package blobstore

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hupe1980/rtseg/internal/fs"
)

// LocalStore stores blobs as files below a root directory. Blob names use
// forward slashes and map to nested directories.
type LocalStore struct {
	root string
	fsys fs.FileSystem
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileSystem replaces the operating system file system. Tests use it to
// inject faults.
func WithFileSystem(fsys fs.FileSystem) LocalOption {
	return func(s *LocalStore) { s.fsys = fsys }
}

// NewLocalStore creates a store rooted at root. The directory is created on
// first write.
func NewLocalStore(root string, optFns ...LocalOption) *LocalStore {
	s := &LocalStore{root: root, fsys: fs.Default}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Root returns the root directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open implements BlobStore. Operating system files are memory mapped where
// the platform supports it.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	f, err := s.fsys.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := int(fi.Size())
	if size == 0 {
		return &bytesBlob{}, nil
	}
	if osf, ok := f.(*os.File); ok {
		data, unmap, err := mapFile(osf, size)
		if err != nil {
			return nil, err
		}
		return &bytesBlob{data: data, close: unmap}, nil
	}
	data := make([]byte, size)
	if _, err := f.ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &bytesBlob{data: data}, nil
}

// Create implements BlobStore. Data goes to a temporary file that is renamed
// into place on Close.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	dst := s.path(name)
	if err := s.fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, err
	}
	f, err := s.fsys.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return nil, err
	}
	return &localWriter{fsys: s.fsys, f: f, dst: dst}, nil
}

// Put implements BlobStore.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.(*localWriter).abort()
		return err
	}
	return w.Close()
}

// Delete implements BlobStore.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fsys.Remove(s.path(name))
	if errors.Is(err, iofs.ErrNotExist) {
		return nil
	}
	return err
}

// List implements BlobStore.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.fsys.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) && p == s.root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

type localWriter struct {
	fsys fs.FileSystem
	f    fs.File
	dst  string
}

func (w *localWriter) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *localWriter) Sync() error { return w.f.Sync() }

func (w *localWriter) Close() error {
	if err := w.f.Sync(); err != nil {
		_ = w.abort()
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = w.fsys.Remove(w.f.Name())
		return err
	}
	if err := w.fsys.Rename(w.f.Name(), w.dst); err != nil {
		_ = w.fsys.Remove(w.f.Name())
		return err
	}
	return nil
}

func (w *localWriter) abort() error {
	_ = w.f.Close()
	return w.fsys.Remove(w.f.Name())
}
