// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package logformat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader(16)
	h.Watermark = 1234

	buf := make([]byte, HeaderSize)
	h.Marshal(buf)

	got, err := Unmarshal(buf, 16)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeaderMarshalLeavesReservedAlone(t *testing.T) {
	buf := make([]byte, HeaderSize)
	for i := ReservedOffset; i < HeaderSize; i++ {
		buf[i] = 0xff
	}
	NewHeader(4).Marshal(buf)
	for i := ReservedOffset; i < HeaderSize; i++ {
		require.EqualValues(t, 0xff, buf[i], "Marshal should not touch the reserved trailer")
	}
}

func TestUnmarshalBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	_, err := Unmarshal(buf, 16)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestUnmarshalBadVersion(t *testing.T) {
	buf := make([]byte, HeaderSize)
	h := NewHeader(16)
	h.Marshal(buf)
	h.Version = 99
	h.Marshal(buf)
	_, err := Unmarshal(buf, 16)
	require.ErrorIs(t, err, ErrBadVersion)
}

func TestUnmarshalKeySizeMismatch(t *testing.T) {
	buf := make([]byte, HeaderSize)
	NewHeader(16).Marshal(buf)
	_, err := Unmarshal(buf, 32)
	require.ErrorIs(t, err, ErrKeySizeMismatch)
}

func TestAtomicWatermarkSharesStorage(t *testing.T) {
	buf := make([]byte, HeaderSize)
	NewHeader(8).Marshal(buf)

	w := AtomicWatermark(buf)
	w.Store(42)

	got, err := Unmarshal(buf, 8)
	require.NoError(t, err)
	require.EqualValues(t, 42, got.Watermark)
}
