//go:build unix

// Package mmap maps a whole file read-write and shared, so stores to the
// mapping reach the file without explicit writes.
//
// The mapping is only coherent while no other process modifies the file.
package mmap

import (
	"errors"
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

var (
	ErrOutOfRange = errors.New("window out of range")
	ErrEmpty      = errors.New("cannot map an empty file")
	ErrClosed     = errors.New("mapping closed")
)

// File is a file mapped in its entirety.
type File struct {
	f    *os.File
	data []byte
}

// Create creates a new file of the given size and maps it.
// It fails if path already exists.
func Create(path string, size int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G304: path comes from the caller.
	if err != nil {
		return nil, err
	}
	m, err := create(f, size)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return m, nil
}

func create(f *os.File, size int64) (*File, error) {
	if err := f.Truncate(size); err != nil {
		return nil, err
	}
	data, err := mapFile(f, size)
	if err != nil {
		return nil, err
	}
	return &File{f: f, data: data}, nil
}

// Open maps an existing file at its current length.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0) //nolint:gosec // G304: path comes from the caller.
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	data, err := mapFile(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{f: f, data: data}, nil
}

func mapFile(f *os.File, size int64) ([]byte, error) {
	if size <= 0 || size > math.MaxInt {
		return nil, fmt.Errorf("%w: cannot map %d bytes", ErrOutOfRange, size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}
	return data, nil
}

// Name returns the path the file was opened with.
func (m *File) Name() string { return m.f.Name() }

// Size returns the mapped length.
func (m *File) Size() int64 { return int64(len(m.data)) }

// Bytes returns the whole mapping. The slice is invalidated by Grow and Close.
func (m *File) Bytes() []byte { return m.data }

// Window returns n bytes of the mapping starting at off.
func (m *File) Window(off int64, n int) ([]byte, error) {
	if m.data == nil {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off > int64(len(m.data)) || int64(n) > int64(len(m.data))-off {
		return nil, fmt.Errorf("%w: [%d, %d+%d) in %d bytes", ErrOutOfRange, off, off, n, len(m.data))
	}
	return m.data[off : off+int64(n) : off+int64(n)], nil
}

// Grow extends the file to size bytes and remaps it. The mapping may move,
// so every slice previously returned by Bytes or Window must be dropped.
//
// If the new mapping cannot be established the file is truncated back to
// its old length and the old mapping stays in place.
func (m *File) Grow(size int64) error {
	if m.data == nil {
		return ErrClosed
	}
	old := int64(len(m.data))
	if size <= old {
		return nil
	}
	if err := m.f.Truncate(size); err != nil {
		return fmt.Errorf("extend %s to %d bytes: %w", m.f.Name(), size, err)
	}
	data, err := mapFile(m.f, size)
	if err != nil {
		if terr := m.f.Truncate(old); terr != nil {
			return errors.Join(err, fmt.Errorf("restore %s to %d bytes: %w", m.f.Name(), old, terr))
		}
		return err
	}
	prev := m.data
	m.data = data
	if err := unix.Munmap(prev); err != nil {
		return fmt.Errorf("munmap %s: %w", m.f.Name(), err)
	}
	return nil
}

// Flush writes dirty pages of the mapping to the file and syncs it.
func (m *File) Flush() error {
	if m.data == nil {
		return ErrClosed
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", m.f.Name(), err)
	}
	return m.f.Sync()
}

// Close unmaps and closes the file without flushing.
// Pages already written to the mapping still reach the file eventually
// through the kernel page cache.
func (m *File) Close() error {
	if m.data == nil {
		return ErrClosed
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return errors.Join(err, m.f.Close())
}
