package fs

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrInjected is the error returned by injected faults without their own.
var ErrInjected = errors.New("injected fault")

// Op is a faultable operation.
type Op uint8

const (
	OpCreate Op = iota
	OpWrite
	OpSync
	OpClose
	OpRename
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpSync:
		return "sync"
	case OpClose:
		return "close"
	case OpRename:
		return "rename"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Fault makes an operation fail.
type Fault struct {
	Op Op
	// Match selects paths containing it. Empty matches every path. Rename
	// faults match the target path; write, sync and close faults match the
	// name of the temporary file, which starts with the target base name.
	Match string
	// After is the number of bytes a file accepts before OpWrite fails.
	After int64
	// Err is returned by the operation. Defaults to ErrInjected.
	Err error
}

func (f Fault) err(name string) error {
	err := f.Err
	if err == nil {
		err = ErrInjected
	}
	return fmt.Errorf("%s %s: %w", f.Op, name, err)
}

// FaultyFS wraps a FileSystem and fails matching operations. Reads are
// never faulted.
type FaultyFS struct {
	FileSystem

	mu       sync.Mutex
	faults   []Fault
	injected atomic.Int64
}

// NewFaultyFS wraps base, or Default when base is nil.
func NewFaultyFS(base FileSystem) *FaultyFS {
	if base == nil {
		base = Default
	}
	return &FaultyFS{FileSystem: base}
}

// Inject adds a fault. The first matching fault wins.
func (f *FaultyFS) Inject(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, fault)
}

// Reset removes every fault.
func (f *FaultyFS) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

// Injected returns the number of operations failed so far.
func (f *FaultyFS) Injected() int64 { return f.injected.Load() }

func (f *FaultyFS) lookup(op Op, name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fault := range f.faults {
		if fault.Op == op && strings.Contains(name, fault.Match) {
			return fault, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) fail(op Op, name string) error {
	fault, ok := f.lookup(op, name)
	if !ok {
		return nil
	}
	f.injected.Add(1)
	return fault.err(name)
}

func (f *FaultyFS) CreateTemp(dir, pattern string) (File, error) {
	if err := f.fail(OpCreate, dir+"/"+pattern); err != nil {
		return nil, err
	}
	file, err := f.FileSystem.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f}, nil
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if err := f.fail(OpRename, newpath); err != nil {
		return err
	}
	return f.FileSystem.Rename(oldpath, newpath)
}

func (f *FaultyFS) Remove(name string) error {
	if err := f.fail(OpRemove, name); err != nil {
		return err
	}
	return f.FileSystem.Remove(name)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if fault, ok := ff.fs.lookup(OpWrite, ff.Name()); ok && ff.written+int64(len(p)) > fault.After {
		ff.fs.injected.Add(1)
		return 0, fault.err(ff.Name())
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if err := ff.fs.fail(OpSync, ff.Name()); err != nil {
		return err
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	err := ff.File.Close()
	if ferr := ff.fs.fail(OpClose, ff.Name()); ferr != nil {
		return ferr
	}
	return err
}
