// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ckv

import (
	"fmt"
	"log/slog"

	"ckv/internal/index"
	"ckv/internal/logformat"
)

// runRecovery walks the log region of data from its start up to hdr's
// committed watermark, inserting a key → value-offset entry into idx for
// every record it finds. It runs once, single-threaded, before a Store is
// returned from Open, per the store's recovery algorithm: readers and
// writers never observe a partially-recovered index.
func runRecovery(data []byte, hdr logformat.Header, keySize int, idx *index.Index, logger *slog.Logger) error {
	logBase := uint32(logformat.HeaderSize)
	watermark := hdr.Watermark

	var c uint32
	var n int
	for c < watermark {
		recordOffset := logBase + c
		if int64(recordOffset)+logformat.LengthPrefixSize > int64(len(data)) {
			return fmt.Errorf("%w: length prefix at %d beyond mapping", ErrCorruption, recordOffset)
		}
		l := logformat.ReadLength(data[recordOffset:])
		next := logformat.NextRecordOffset(c, keySize, l)
		if next > watermark {
			return fmt.Errorf("%w: record at log offset %d (length %d) would end at %d, past watermark %d", ErrCorruption, c, l, next, watermark)
		}

		keyOff := logBase + logformat.KeyOffset(c)
		valOff := logBase + logformat.ValueOffset(c, keySize)
		key := data[keyOff : keyOff+uint32(keySize)]
		idx.Insert(key, valOff)

		c = next
		n++
	}
	if c != watermark {
		return fmt.Errorf("%w: scan ended at %d, watermark is %d", ErrCorruption, c, watermark)
	}

	logger.Debug("recovery scan complete", "records", n, "watermark", watermark)
	return nil
}
