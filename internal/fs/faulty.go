package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

// Fault defines the failure behavior for files matching a rule.
type Fault struct {
	FailOpen       bool  // OpenFile fails
	FailAfterBytes int64 // Writes fail after this many bytes to the file. -1 disables.
	FailReadAt     bool  // every ReadAt fails
	ShortReadAt    bool  // ReadAt returns half the requested bytes and no error
	CorruptReadAt  bool  // ReadAt flips the first byte it returns
	FailOnSync     bool
	FailOnClose    bool
	Err            error // defaults to ErrInjected
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem, injecting faults per file-name pattern and
// counting open files.
type FaultyFS struct {
	FS FileSystem

	mu       sync.Mutex
	rules    map[string]Fault
	open     int
	maxOpen  int
	opens    int
	written  int64
	limit    int64
	noFaults Fault
}

// NewFaultyFS creates a new FaultyFS wrapping fs (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:       fs,
		rules:    make(map[string]Fault),
		limit:    -1,
		noFaults: Fault{FailAfterBytes: -1},
	}
}

// AddRule injects fault into every file whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearRules removes all rules.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.rules)
}

// SetWriteLimit fails writes once the total across all files would exceed limit.
func (f *FaultyFS) SetWriteLimit(limit int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
}

// Written returns the total bytes written through this FS.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// OpenFiles returns the number of files currently open.
func (f *FaultyFS) OpenFiles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// MaxOpenFiles returns the high-water mark of simultaneously open files.
func (f *FaultyFS) MaxOpenFiles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxOpen
}

// Opens returns the total number of successful opens.
func (f *FaultyFS) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *FaultyFS) faultFor(name string) Fault {
	fault := f.noFaults
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	return fault
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f.mu.Lock()
	fault := f.faultFor(name)
	f.mu.Unlock()

	if fault.FailOpen {
		return nil, &os.PathError{Op: "open", Path: name, Err: fault.err()}
	}

	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.open++
	f.opens++
	f.maxOpen = max(f.maxOpen, f.open)
	f.mu.Unlock()

	return &faultyFile{File: file, fs: f, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error             { return f.FS.Remove(name) }
func (f *FaultyFS) Rename(oldpath, newpath string) error { return f.FS.Rename(oldpath, newpath) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	fault   Fault
	written int64
	closed  bool
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case ff.fault.FailReadAt:
		return 0, ff.fault.err()
	case ff.fault.ShortReadAt && len(p) > 1:
		return ff.File.ReadAt(p[:len(p)/2], off)
	}
	n, err := ff.File.ReadAt(p, off)
	if ff.fault.CorruptReadAt && n > 0 {
		p[0] ^= 0xff
	}
	return n, err
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailAfterBytes >= 0 && ff.written+int64(len(p)) > ff.fault.FailAfterBytes {
		return 0, ff.fault.err()
	}

	ff.fs.mu.Lock()
	exceeded := ff.fs.limit >= 0 && ff.fs.written+int64(len(p)) > ff.fs.limit
	if !exceeded {
		ff.fs.written += int64(len(p))
	}
	ff.fs.mu.Unlock()
	if exceeded {
		return 0, ff.fault.err()
	}

	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if !ff.closed {
		ff.closed = true
		ff.fs.mu.Lock()
		ff.fs.open--
		ff.fs.mu.Unlock()
	}

	err := ff.File.Close()
	if ff.fault.FailOnClose {
		return ff.fault.err()
	}
	return err
}
