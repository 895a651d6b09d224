// Copyright 2024 The ckv Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package ckv

import (
	"io"
	"log/slog"
)

// Option configures a Store at Create or Open time.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

func defaultOptions() options {
	return options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithLogger sets the logger a Store uses for recovery progress, write
// diagnostics, and capacity-exhaustion warnings. If not provided, a Store
// logs nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
