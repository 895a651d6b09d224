// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mmap owns a sparse backing file and a read-write memory mapping
// of fixed capacity over it, plus a flush primitive restricted to an
// arbitrary byte-range prefix (used by callers to flush only a header).
package mmap

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// pageSize is used to round the header flush range up to a page boundary,
// since msync operates on whole pages.
var pageSize = os.Getpagesize()

// Mapping is a read-write mmap of a fixed-size, sparsely allocated file.
type Mapping struct {
	f        *os.File
	data     []byte
	capacity int64
	closed   atomic.Bool
}

// Create creates a new file at path, sparsely truncated to capacity bytes,
// and maps it read-write. It fails if path already exists.
func Create(path string, capacity int64) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	if err := f.Truncate(capacity); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("f.Truncate(%d): %w", capacity, err)
	}
	return newMapping(f, capacity)
}

// Open maps an existing file read-write. The file must already be at least
// capacity bytes long.
func Open(path string, capacity int64) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	if stat.Size() < capacity {
		_ = f.Close()
		return nil, fmt.Errorf("%s is %d bytes, smaller than requested capacity %d", path, stat.Size(), capacity)
	}
	return newMapping(f, capacity)
}

func newMapping(f *os.File, capacity int64) (*Mapping, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("unix.Mmap: %w", err)
	}
	// content-addressed lookups have no sequential locality
	if err := unix.Madvise(data, syscall.MADV_RANDOM); err != nil {
		_ = unix.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("madvise: %w", err)
	}
	return &Mapping{
		f:        f,
		data:     data,
		capacity: capacity,
	}, nil
}

// Data returns the full mapped window, from the start of the header to the
// end of the capacity.
func (m *Mapping) Data() []byte {
	return m.data
}

// Capacity returns the total size of the mapping in bytes.
func (m *Mapping) Capacity() int64 {
	return m.capacity
}

// FlushHeader forces the first n bytes of the mapping to durable storage.
// n is rounded up to a full page, since msync requires page-aligned ranges.
func (m *Mapping) FlushHeader(n int) error {
	end := ((n + pageSize - 1) / pageSize) * pageSize
	if end > len(m.data) {
		end = len(m.data)
	}
	if err := unix.Msync(m.data[:end], unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}

// Close unmaps the file and closes the underlying file handle. Close is
// idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return m.f.Close()
}
