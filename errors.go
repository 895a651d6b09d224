// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ckv

import "errors"

var (
	// ErrCapacityExhausted is returned by Write when the record would not
	// fit within the store's configured capacity. The store is left
	// exactly as it was before the call: the committed watermark does not
	// move and no index entry is inserted.
	ErrCapacityExhausted = errors.New("ckv: capacity exhausted")

	// ErrCorruption is returned by Open when the recovery scan finds a
	// record whose length prefix would advance the scan cursor past the
	// file's committed watermark. Under the store's own invariants this
	// cannot happen to a file ckv itself produced; it indicates the file
	// was truncated, corrupted, or not produced by this store.
	ErrCorruption = errors.New("ckv: corrupt log: record extends past committed watermark")

	// ErrInvalidArgument is returned when a caller-supplied key or value
	// violates the store's configured constraints (wrong key length, or a
	// value longer than the 4-byte length prefix can represent).
	ErrInvalidArgument = errors.New("ckv: invalid argument")

	// ErrClosed is returned by Write when called on a store that has
	// already been closed. Close itself is idempotent and returns nil.
	ErrClosed = errors.New("ckv: store is closed")
)
