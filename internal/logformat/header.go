// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package logformat defines the on-disk header and record layout shared by
// the writer, reader and recovery scan, and the pure offset arithmetic that
// stitches them together. It holds no state of its own beyond the bytes it
// is handed.
package logformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

const (
	// HeaderSize is the fixed size, in bytes, of the region at the start
	// of the file that precedes the log region.
	HeaderSize = 64

	// magic identifies a ckv data file. "CKV1" read as a little-endian
	// uint32 literal; stored and checked with NativeEndian, so the magic
	// bytes on disk vary by host but the check is always self-consistent.
	magic = 0x31564b43

	formatVersion = 1

	magicOff      = 0
	versionOff    = 4
	keySizeOff    = 8
	watermarkOff  = 12
	reservedOff   = 16
	reservedBytes = HeaderSize - reservedOff
)

var (
	// ErrBadMagic means the file does not look like a ckv data file.
	ErrBadMagic = errors.New("bad magic: not a ckv data file, or corrupted")
	// ErrBadVersion means the file was written by an incompatible format version.
	ErrBadVersion = errors.New("unsupported data file format version")
	// ErrKeySizeMismatch means the store was opened with a key size that
	// disagrees with the one the file was created with.
	ErrKeySizeMismatch = errors.New("key size does not match the size the file was created with")
)

// Header is the fixed-size prefix of a ckv data file. Its only mutable
// field after creation is the committed insertion offset (the watermark),
// which is updated through AtomicWatermark so that it can be stored with
// release semantics and loaded with acquire semantics directly against the
// backing mapping.
type Header struct {
	Magic         uint32
	Version       uint32
	KeySize       uint16
	_             uint16 // reserved, must be zero
	Watermark     uint32
}

// NewHeader returns a freshly-initialized header for a newly created file
// with the given key size.
func NewHeader(keySize int) Header {
	return Header{
		Magic:   magic,
		Version: formatVersion,
		KeySize: uint16(keySize),
	}
}

// Marshal writes h into the first HeaderSize bytes of buf. It does not
// touch the reserved trailer ([ReservedOffset:HeaderSize)) — callers
// creating a new file are responsible for zeroing that range themselves
// before the first Marshal.
func (h Header) Marshal(buf []byte) {
	_ = buf[HeaderSize-1] // bounds check elimination
	binary.NativeEndian.PutUint32(buf[magicOff:], h.Magic)
	binary.NativeEndian.PutUint32(buf[versionOff:], h.Version)
	binary.NativeEndian.PutUint16(buf[keySizeOff:], h.KeySize)
	binary.NativeEndian.PutUint16(buf[keySizeOff+2:], 0)
	binary.NativeEndian.PutUint32(buf[watermarkOff:], h.Watermark)
}

// ReservedOffset is the start of the header's reserved-for-future-use
// trailer, which must be all zero on creation.
const ReservedOffset = reservedOff

// Unmarshal reads a header out of the first HeaderSize bytes of buf and
// validates it against the expected key size.
func Unmarshal(buf []byte, expectedKeySize int) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: %d < %d", len(buf), HeaderSize)
	}
	var h Header
	h.Magic = binary.NativeEndian.Uint32(buf[magicOff:])
	if h.Magic != magic {
		return Header{}, ErrBadMagic
	}
	h.Version = binary.NativeEndian.Uint32(buf[versionOff:])
	if h.Version != formatVersion {
		return Header{}, fmt.Errorf("%w: found version %d, want %d", ErrBadVersion, h.Version, formatVersion)
	}
	h.KeySize = binary.NativeEndian.Uint16(buf[keySizeOff:])
	if int(h.KeySize) != expectedKeySize {
		return Header{}, fmt.Errorf("%w: file has key size %d, opened with %d", ErrKeySizeMismatch, h.KeySize, expectedKeySize)
	}
	h.Watermark = binary.NativeEndian.Uint32(buf[watermarkOff:])
	return h, nil
}

// AtomicWatermark returns an atomic view of the watermark field as it lives
// inside mapping, the same four bytes Marshal/Unmarshal read and write.
// Writers Store into it with release ordering after the record payload has
// landed in the mapping; any reader of the raw mapping bytes (recovery,
// diagnostics) can Load with acquire ordering to observe a consistent
// prefix. mapping must be at least HeaderSize bytes and watermarkOff must
// be 4-byte aligned within it, which holds because mmap returns page
// (hence far more than 4-byte) aligned memory and watermarkOff is a
// compile-time constant multiple of 4.
func AtomicWatermark(mapping []byte) *atomic.Uint32 {
	_ = mapping[watermarkOff+3] // bounds check elimination
	ptr := unsafe.Pointer(&mapping[watermarkOff])
	return (*atomic.Uint32)(ptr)
}
