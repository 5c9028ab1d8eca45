package fsys

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior for files whose name contains a
// rule's pattern.
type Fault struct {
	FailOnOpen     bool
	FailOnRead     bool
	FailWrites     bool
	FailAfterBytes int64 // bytes accepted before a write fault triggers
	FailOnClose    bool
	Err            error
}

// FaultyFS is a FileSystem wrapper that can inject errors and records which
// paths were opened.
type FaultyFS struct {
	FS FileSystem

	mu      sync.Mutex
	rules   map[string]Fault
	mkdir   error
	opened  []string
	written map[string]int64
}

// NewFaultyFS creates a FaultyFS wrapping fs (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:      fs,
		rules:   make(map[string]Fault),
		written: make(map[string]int64),
	}
}

// AddRule adds a fault injection rule for a file name pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// FailMkdir makes every MkdirAll call return err.
func (f *FaultyFS) FailMkdir(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdir = err
}

// Opened returns the names passed to OpenFile, in call order.
func (f *FaultyFS) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

// Written returns the bytes successfully written to name so far.
func (f *FaultyFS) Written(name string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[name]
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var fault Fault
	found := false
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
			found = true
		}
	}
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	return fault, found
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f.mu.Lock()
	f.opened = append(f.opened, name)
	f.mu.Unlock()

	fault, found := f.match(name)
	if found && fault.FailOnOpen {
		return nil, &os.PathError{Op: "open", Path: name, Err: fault.Err}
	}

	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f, name: name, fault: fault}, nil
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	f.mu.Lock()
	err := f.mkdir
	f.mu.Unlock()
	if err != nil {
		return &os.PathError{Op: "mkdir", Path: path, Err: err}
	}
	return f.FS.MkdirAll(path, perm)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	name    string
	fault   Fault
	written int64
}

func (ff *faultyFile) Read(p []byte) (int, error) {
	if ff.fault.FailOnRead {
		return 0, ff.fault.Err
	}
	return ff.File.Read(p)
}

func (ff *faultyFile) Write(p []byte) (n int, err error) {
	if ff.fault.FailWrites && ff.written+int64(len(p)) > ff.fault.FailAfterBytes {
		// Write what fits, then fail, to leave a truncated file behind.
		allowed := ff.fault.FailAfterBytes - ff.written
		if allowed > 0 {
			n, _ = ff.File.Write(p[:allowed])
			ff.record(n)
		}
		return n, ff.fault.Err
	}

	n, err = ff.File.Write(p)
	ff.record(n)
	return n, err
}

func (ff *faultyFile) record(n int) {
	if n <= 0 {
		return
	}
	ff.written += int64(n)
	ff.fs.mu.Lock()
	ff.fs.written[ff.name] += int64(n)
	ff.fs.mu.Unlock()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		ff.File.Close()
		return ff.fault.Err
	}
	return ff.File.Close()
}
