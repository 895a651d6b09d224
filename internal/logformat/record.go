// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package logformat

import "encoding/binary"

// LengthPrefixSize is the size, in bytes, of a record's value-length prefix.
const LengthPrefixSize = 4

// MaxValueLen is the largest value length the 4-byte length prefix can
// represent: 2^32-1.
const MaxValueLen = (1 << 32) - 1

// RecordSize returns the total on-disk size of a record with the given key
// and value lengths: the length prefix plus the key plus the value.
func RecordSize(keySize int, valueLen uint32) uint32 {
	return LengthPrefixSize + uint32(keySize) + valueLen
}

// ValueOffset returns the offset, within the log region, at which a
// record's value bytes begin, given the record's own offset and the store's
// key size.
func ValueOffset(recordOffset uint32, keySize int) uint32 {
	return recordOffset + LengthPrefixSize + uint32(keySize)
}

// KeyOffset returns the offset, within the log region, at which a record's
// key bytes begin.
func KeyOffset(recordOffset uint32) uint32 {
	return recordOffset + LengthPrefixSize
}

// NextRecordOffset returns the offset of the record immediately following
// the one at recordOffset, given the key size and the just-read value
// length.
func NextRecordOffset(recordOffset uint32, keySize int, valueLen uint32) uint32 {
	return recordOffset + RecordSize(keySize, valueLen)
}

// ReadLength reads the 4-byte host-byte-order length prefix at the start of b.
func ReadLength(b []byte) uint32 {
	_ = b[LengthPrefixSize-1] // bounds check elimination
	return binary.NativeEndian.Uint32(b[:LengthPrefixSize])
}

// WriteLength writes l as a 4-byte host-byte-order length prefix at the
// start of b.
func WriteLength(b []byte, l uint32) {
	_ = b[LengthPrefixSize-1] // bounds check elimination
	binary.NativeEndian.PutUint32(b[:LengthPrefixSize], l)
}
