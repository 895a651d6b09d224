// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package index implements the in-memory key → value-offset map used by a
// store: a sharded hash table with per-shard locks, one of the concurrency
// strategies a store's design notes call out as acceptable for a single
// writer racing against unbounded concurrent readers. Lookups take only a
// shard's read lock; the sole writer takes a shard's write lock to insert
// or replace an entry.
package index

import (
	"sync"

	"github.com/dgryski/go-farm"
)

// numShards is the number of independently-locked shards. It must be a
// power of two so shard selection can mask instead of mod.
const numShards = 256

type shard struct {
	mu sync.RWMutex
	m  map[string]uint32
}

// Index is a concurrent map from a fixed-size key to the byte offset, in
// the owning store's mapping, at which that key's value begins.
type Index struct {
	shards [numShards]shard
}

// New returns an empty Index.
func New() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i].m = make(map[string]uint32)
	}
	return idx
}

func (idx *Index) shardFor(key []byte) *shard {
	h := farm.Hash64(key)
	return &idx.shards[h&(numShards-1)]
}

// Lookup returns the value offset for key, and whether key is present.
// Safe to call concurrently with Lookup and with Insert.
func (idx *Index) Lookup(key []byte) (uint32, bool) {
	s := idx.shardFor(key)
	s.mu.RLock()
	off, ok := s.m[string(key)]
	s.mu.RUnlock()
	return off, ok
}

// Insert records that key's value now begins at off, replacing any prior
// entry for key. Insert must not be called concurrently with itself — the
// store enforces this by serializing all writers.
func (idx *Index) Insert(key []byte, off uint32) {
	s := idx.shardFor(key)
	s.mu.Lock()
	s.m[string(key)] = off
	s.mu.Unlock()
}

// Len returns the number of entries currently in the index. Intended for
// diagnostics and tests; the result may be stale by the time it's read if
// a writer is concurrently active.
func (idx *Index) Len() int {
	n := 0
	for i := range idx.shards {
		idx.shards[i].mu.RLock()
		n += len(idx.shards[i].m)
		idx.shards[i].mu.RUnlock()
	}
	return n
}
