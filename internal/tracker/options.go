// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"log/slog"
	"time"

	"k8s.io/utils/clock"
)

type Opts struct {
	logger        *slog.Logger
	clock         clock.WithTicker
	interval      time.Duration
	writeInterval time.Duration
	output        string
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:        slog.Default(),
		clock:         clock.RealClock{},
		interval:      1 * time.Second,
		writeInterval: 1 * time.Hour,
	}
}

// OptionFn is a function that sets one or more options in Opts
type OptionFn func(*Opts)

// WithLogger sets the logger for the Tracker
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithClock sets the clock for the Tracker
func WithClock(c clock.WithTicker) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// WithInterval sets the target time between two reads
func WithInterval(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.interval = d
	}
}

// WithWriteInterval sets the time between two periodic writes while
// tracking. Zero or negative disables periodic writes.
func WithWriteInterval(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.writeInterval = d
	}
}

// WithOutput sets the output log path, overriding the reader-derived
// default.
func WithOutput(path string) OptionFn {
	return func(o *Opts) {
		o.output = path
	}
}
