// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sustainable-computing-io/wattmon/internal/device"
	"github.com/sustainable-computing-io/wattmon/internal/service"
)

// TrackerArray samples several readers under a single pacing loop and
// lifecycle. Each reader keeps its own buffer and its own output log.
type TrackerArray struct {
	loop
	trackers []*Tracker
}

var _ service.Runner = (*TrackerArray)(nil)
var _ service.Shutdowner = (*TrackerArray)(nil)

// NewTrackerArray constructs one sub-tracker per reader. outputs must
// be empty, leaving every tracker on its default path, or have exactly
// one entry per reader.
func NewTrackerArray(readers []device.Reader, outputs []string, applyOpts ...OptionFn) (*TrackerArray, error) {
	if len(outputs) != 0 && len(outputs) != len(readers) {
		return nil, fmt.Errorf("number of outputs (%d) must match number of readers (%d) or be zero",
			len(outputs), len(readers))
	}

	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	trackers := make([]*Tracker, 0, len(readers))
	for i, reader := range readers {
		trackerOpts := append([]OptionFn{}, applyOpts...)
		if len(outputs) != 0 {
			trackerOpts = append(trackerOpts, WithOutput(outputs[i]))
		}
		trackers = append(trackers, NewTracker(reader, trackerOpts...))
	}

	return &TrackerArray{
		loop: loop{
			logger:        opts.logger.With("service", "tracker"),
			clock:         opts.clock,
			interval:      opts.interval,
			writeInterval: opts.writeInterval,
		},
		trackers: trackers,
	}, nil
}

func (a *TrackerArray) Name() string {
	return "tracker"
}

// Trackers returns the sub-trackers, one per reader.
func (a *TrackerArray) Trackers() []*Tracker {
	return a.trackers
}

// Read samples every reader once. The returned duration is the sum of
// the sub-tracker read times, so pacing accounts for the whole pass.
func (a *TrackerArray) Read() time.Duration {
	var elapsed time.Duration
	for _, t := range a.trackers {
		elapsed += t.Read()
	}
	return elapsed
}

// WriteHeader appends the column header to every tracker's output.
func (a *TrackerArray) WriteHeader() error {
	var errs []error
	for _, t := range a.trackers {
		errs = append(errs, t.WriteHeader())
	}
	return errors.Join(errs...)
}

// Write flushes every tracker's buffer to its output.
func (a *TrackerArray) Write() error {
	var errs []error
	for _, t := range a.trackers {
		errs = append(errs, t.Write())
	}
	return errors.Join(errs...)
}

// Start launches the shared paced loop in the background.
func (a *TrackerArray) Start() {
	if !a.loop.start(a) {
		a.logger.Warn("tracker is already running; stop it first")
	}
}

// Stop cancels the background loop and waits for it to finish.
func (a *TrackerArray) Stop() {
	if !a.loop.stop() {
		a.logger.Warn("tracker is not running; nothing to stop")
	}
}

// Run tracks until ctx is done: headers first, then the shared paced
// loop with periodic writes. Every tracker is flushed and written on
// every exit path; cancellation returns nil.
func (a *TrackerArray) Run(ctx context.Context) error {
	a.logger.Info("Tracker array is running...",
		"readers", len(a.trackers), "interval", a.interval, "write-interval", a.writeInterval)

	if err := a.WriteHeader(); err != nil {
		return err
	}

	err := a.run(ctx, a, true)
	if werr := a.Write(); werr != nil && err == nil {
		err = werr
	}
	a.logger.Info("Tracker array has terminated.")
	return err
}

// Shutdown stops the background loop if one is running and writes out
// whatever is still buffered.
func (a *TrackerArray) Shutdown() error {
	a.loop.stop()
	return a.Write()
}
