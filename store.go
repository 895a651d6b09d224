// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package ckv is an embedded, append-only key/value store for fixed-size
// keys and opaque byte-string values up to 4 GiB, written once and rarely
// overwritten, never deleted. All data lives in a single memory-mapped
// file: a small header followed by a write log. Lookups go through an
// in-memory index rebuilt by a single scan of the log at open time.
//
// A Store has one writer and any number of concurrent readers. Write and
// Read share no store-level lock; they meet only at the index's per-shard
// locks, which each holds briefly. Write is synchronized against other
// writes with an internal mutex, since the format only supports one writer
// at a time. Read never acquires a lock of its own and returns a slice that
// points directly into the mapping: it is valid, and immutable, for the
// lifetime of the Store.
package ckv

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"ckv/internal/index"
	"ckv/internal/logformat"
	"ckv/internal/mmap"
	"ckv/internal/unsafestring"
	"ckv/internal/zero"
)

// Store is a single open ckv database.
type Store struct {
	mapping   *mmap.Mapping
	watermark *atomic.Uint32
	keySize   int
	idx       *index.Index
	logger    *slog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
}

// Create creates a new, empty store at path, sized to capacity bytes, for
// keys of exactly keySize bytes. It fails if path already exists.
func Create(path string, capacity int64, keySize int, opts ...Option) (*Store, error) {
	if keySize <= 0 {
		return nil, fmt.Errorf("%w: key size must be positive, got %d", ErrInvalidArgument, keySize)
	}
	if capacity <= int64(logformat.HeaderSize) {
		return nil, fmt.Errorf("%w: capacity %d too small for a %d-byte header", ErrInvalidArgument, capacity, logformat.HeaderSize)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m, err := mmap.Create(path, capacity)
	if err != nil {
		return nil, fmt.Errorf("mmap.Create(%s): %w", path, err)
	}

	data := m.Data()
	header := data[:logformat.HeaderSize]
	zero.Bytes(header[logformat.ReservedOffset:])
	logformat.NewHeader(keySize).Marshal(header)
	if err := m.FlushHeader(logformat.HeaderSize); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("flush new header: %w", err)
	}

	o.logger.Debug("created ckv store", "path", path, "capacity", capacity, "keySize", keySize)

	return &Store{
		mapping:   m,
		watermark: logformat.AtomicWatermark(data),
		keySize:   keySize,
		idx:       index.New(),
		logger:    o.logger,
	}, nil
}

// Open opens an existing store at path for keys of exactly keySize bytes,
// running the recovery scan described in package docs before returning.
// capacity is the size of the mapping and must not exceed the size of the
// existing file, which is the capacity the store was created with. Open
// does not grow the file: a capacity larger than the file makes Open fail.
func Open(path string, capacity int64, keySize int, opts ...Option) (*Store, error) {
	if keySize <= 0 {
		return nil, fmt.Errorf("%w: key size must be positive, got %d", ErrInvalidArgument, keySize)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m, err := mmap.Open(path, capacity)
	if err != nil {
		return nil, fmt.Errorf("mmap.Open(%s): %w", path, err)
	}

	data := m.Data()
	hdr, err := logformat.Unmarshal(data[:logformat.HeaderSize], keySize)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("logformat.Unmarshal: %w", err)
	}

	idx := index.New()
	if err := runRecovery(data, hdr, keySize, idx, o.logger); err != nil {
		_ = m.Close()
		return nil, err
	}

	o.logger.Info("opened ckv store", "path", path, "capacity", capacity, "keySize", keySize, "entries", idx.Len())

	return &Store{
		mapping:   m,
		watermark: logformat.AtomicWatermark(data),
		keySize:   keySize,
		idx:       idx,
		logger:    o.logger,
	}, nil
}

// Write appends (key, value) to the log and makes it durably readable.
// key must be exactly the store's configured key size; value may be any
// length up to 2^32-1 bytes. Writing a key that already exists replaces
// its entry in the index; the old record's bytes remain in the log,
// unreachable but not reclaimed.
//
// At most one Write may be in flight on a Store at a time; Write
// internally serializes concurrent callers, but does not serialize against
// concurrent Read or ReadString calls, which take no store-level lock.
func (s *Store) Write(key, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(key) != s.keySize {
		return fmt.Errorf("%w: key is %d bytes, want %d", ErrInvalidArgument, len(key), s.keySize)
	}
	if uint64(len(value)) > logformat.MaxValueLen {
		return fmt.Errorf("%w: value is %d bytes, max is %d", ErrInvalidArgument, len(value), logformat.MaxValueLen)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	data := s.mapping.Data()
	logBase := int64(logformat.HeaderSize)
	capacity := s.mapping.Capacity()

	w := s.watermark.Load()
	size := logformat.RecordSize(s.keySize, uint32(len(value)))
	if logBase+int64(w)+int64(size) > capacity {
		s.logger.Warn("capacity exhausted", "watermark", w, "recordSize", size, "capacity", capacity)
		return ErrCapacityExhausted
	}

	recordStart := logBase + int64(w)
	logformat.WriteLength(data[recordStart:], uint32(len(value)))
	keyStart := recordStart + logformat.LengthPrefixSize
	copy(data[keyStart:keyStart+int64(s.keySize)], key)
	valueStart := keyStart + int64(s.keySize)
	copy(data[valueStart:valueStart+int64(len(value))], value)

	newWatermark := w + size
	s.watermark.Store(newWatermark) // release: publishes the payload writes above
	if err := s.mapping.FlushHeader(logformat.HeaderSize); err != nil {
		return fmt.Errorf("flush header: %w", err)
	}

	s.idx.Insert(key, uint32(valueStart))
	s.logger.Debug("wrote record", "watermark", newWatermark, "valueLen", len(value))

	return nil
}

// Read returns the value stored for key, and whether key was found. The
// returned slice points directly into the store's mapping; it is valid for
// the lifetime of the Store and must not be modified.
func (s *Store) Read(key []byte) ([]byte, bool) {
	off, ok := s.idx.Lookup(key)
	if !ok {
		return nil, false
	}
	return s.readAt(off)
}

// ReadString is Read for a string key, avoiding an allocation to convert it
// to a []byte for the lookup.
func (s *Store) ReadString(key string) ([]byte, bool) {
	return s.Read(unsafestring.ToBytes(key))
}

func (s *Store) readAt(valueOffset uint32) ([]byte, bool) {
	data := s.mapping.Data()
	lengthOff := int64(valueOffset) - int64(s.keySize) - logformat.LengthPrefixSize
	if lengthOff < int64(logformat.HeaderSize) || int64(valueOffset) > int64(len(data)) {
		return nil, false
	}
	l := logformat.ReadLength(data[lengthOff:])
	end := int64(valueOffset) + int64(l)
	if end > int64(len(data)) {
		return nil, false
	}
	return data[valueOffset:end], true
}

// KeySize returns the fixed key size this store was created or opened with.
func (s *Store) KeySize() int {
	return s.keySize
}

// Len returns the number of live keys currently in the index.
func (s *Store) Len() int {
	return s.idx.Len()
}

// Close unmaps the store's backing file. Close is idempotent; after Close,
// Write returns ErrClosed and slices previously returned by Read are no
// longer valid to dereference.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.mapping.Close()
}
