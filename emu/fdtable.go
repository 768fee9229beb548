// Package emu provides functional RISC-V emulation.
package emu

import (
	"os"
	"sync"
)

// FDTable maps guest file descriptors to host files for syscall
// emulation. Descriptors 0 through 2 belong to the standard streams,
// which the syscall handler serves itself; the table allocates from 3
// upward and never reuses a number within a run.
type FDTable struct {
	mu     sync.Mutex
	files  map[uint64]*os.File
	nextFD uint64
}

// NewFDTable creates an empty table.
func NewFDTable() *FDTable {
	return &FDTable{
		files:  make(map[uint64]*os.File),
		nextFD: 3,
	}
}

// Open opens a host file and allocates a guest descriptor for it.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint64, error) {
	f, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fd := t.nextFD
	t.nextFD++
	t.files[fd] = f
	return fd, nil
}

// Close releases a descriptor and closes the host file behind it.
// Closing a descriptor the table does not hold reports os.ErrInvalid.
func (t *FDTable) Close(fd uint64) error {
	t.mu.Lock()
	f, ok := t.files[fd]
	delete(t.files, fd)
	t.mu.Unlock()

	if !ok {
		return os.ErrInvalid
	}
	return f.Close()
}

// Read reads from an open descriptor into buf.
func (t *FDTable) Read(fd uint64, buf []byte) (int, error) {
	f, ok := t.lookup(fd)
	if !ok {
		return 0, os.ErrInvalid
	}
	return f.Read(buf)
}

// Write writes buf to an open descriptor.
func (t *FDTable) Write(fd uint64, buf []byte) (int, error) {
	f, ok := t.lookup(fd)
	if !ok {
		return 0, os.ErrInvalid
	}
	return f.Write(buf)
}

// IsOpen reports whether the table holds the descriptor.
func (t *FDTable) IsOpen(fd uint64) bool {
	_, ok := t.lookup(fd)
	return ok
}

func (t *FDTable) lookup(fd uint64) (*os.File, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.files[fd]
	return f, ok
}
