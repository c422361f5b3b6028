package fs

import (
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
)

// File is an open file.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	Name() string
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem is the subset of file system operations used by the local blob
// store.
type FileSystem interface {
	Open(name string) (File, error)
	// CreateTemp creates a new file in dir whose name starts with the
	// pattern prefix, as os.CreateTemp.
	CreateTemp(dir, pattern string) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	MkdirAll(path string, perm os.FileMode) error
	WalkDir(root string, fn iofs.WalkDirFunc) error
}

// OS implements FileSystem with the os package.
type OS struct{}

func (OS) Open(name string) (File, error) { return os.Open(name) }

func (OS) CreateTemp(dir, pattern string) (File, error) { return os.CreateTemp(dir, pattern) }

func (OS) Remove(name string) error             { return os.Remove(name) }
func (OS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (OS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (OS) WalkDir(root string, fn iofs.WalkDirFunc) error { return filepath.WalkDir(root, fn) }

// Default is the operating system file system.
var Default FileSystem = OS{}
