// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracker implements the sampling core: a paced loop that
// polls a device reader, buffers timestamped samples and flushes them
// to an append-only log, deriving power from energy deltas when the
// reader only exposes cumulative energy.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sustainable-computing-io/wattmon/internal/device"
	"github.com/sustainable-computing-io/wattmon/internal/exporter/logfile"
	"github.com/sustainable-computing-io/wattmon/internal/service"
)

// Tracker samples one reader. Start/Stop run the paced loop in the
// background without touching the output file; Run drives the full
// lifecycle: header, paced loop with periodic writes, final write on
// every exit path.
type Tracker struct {
	loop
	reader device.Reader
	out    *logfile.Writer

	mu        sync.Mutex
	times     []int64
	readTimes []int64
	data      [][]float64

	// newest sample, kept across flushes
	latestTime   int64
	latestValues []float64

	totalReads     atomic.Int64
	totalReadNanos atomic.Int64
	lastReadNanos  atomic.Int64
}

var _ service.Runner = (*Tracker)(nil)
var _ service.Shutdowner = (*Tracker)(nil)

// NewTracker constructs a Tracker over the reader. The default output
// path is <reader name>_series.log in the working directory.
func NewTracker(reader device.Reader, applyOpts ...OptionFn) *Tracker {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	output := opts.output
	if output == "" {
		output = reader.Name() + "_series.log"
	}

	return &Tracker{
		loop: loop{
			logger:        opts.logger.With("service", "tracker", "reader", reader.Name()),
			clock:         opts.clock,
			interval:      opts.interval,
			writeInterval: opts.writeInterval,
		},
		reader: reader,
		out:    logfile.NewWriter(output),
	}
}

func (t *Tracker) Name() string {
	return "tracker-" + t.reader.Name()
}

// Reader returns the device this tracker samples.
func (t *Tracker) Reader() device.Reader {
	return t.reader
}

// Output returns the log path this tracker writes to.
func (t *Tracker) Output() string {
	return t.out.Path()
}

// Read polls the reader once and appends the sample to the buffer. The
// stored timestamp is the midpoint of the read window; the stored
// reading time is the read duration in nanoseconds. The returned
// duration additionally covers the buffer append, which is what the
// pacing loop subtracts from the interval.
func (t *Tracker) Read() time.Duration {
	t0 := t.clock.Now()
	data := t.reader.Read()
	t1 := t.clock.Now()

	elapsed := t1.Sub(t0)
	timestamp := t0.UnixNano() + elapsed.Nanoseconds()/2
	t.logger.Debug("read completed", "duration", elapsed)

	t.mu.Lock()
	t.times = append(t.times, timestamp)
	t.readTimes = append(t.readTimes, elapsed.Nanoseconds())
	t.data = append(t.data, data)
	t.latestTime = timestamp
	t.latestValues = data
	t.mu.Unlock()

	t.totalReads.Add(1)
	t.totalReadNanos.Add(elapsed.Nanoseconds())
	t.lastReadNanos.Store(elapsed.Nanoseconds())

	return t.clock.Since(t0)
}

// FlushData removes and returns everything buffered so far: midpoint
// timestamps, per-read durations in nanoseconds, and the data matrix.
// When the reader exposes energy but not power, derived power columns
// (W) are appended to every row, computed outside the buffer lock.
func (t *Tracker) FlushData() ([]int64, []int64, [][]float64) {
	t.mu.Lock()
	times := t.times
	readTimes := t.readTimes
	data := t.data
	t.times = nil
	t.readTimes = nil
	t.data = nil
	t.mu.Unlock()

	if device.EnergyWithoutPower(t.reader) {
		start, end, _ := device.QuantityColumns(t.reader, device.Energy)
		energy := make([][]float64, len(data))
		for i, row := range data {
			energy[i] = row[start:end]
		}
		power := device.PowerSeries(t.reader, times, energy)
		for i := range data {
			data[i] = append(data[i], power[i]...)
		}
	}

	return times, readTimes, data
}

// Columns returns the data column labels, quantity major: one
// tag[unit] per reader tag and quantity, then one tag[W] per tag when
// power is derived from energy.
func (t *Tracker) Columns() []string {
	tags := t.reader.Tags()
	quantities := t.reader.Quantities()

	units := make([]device.Unit, 0, len(quantities)+1)
	for _, q := range quantities {
		units = append(units, t.reader.Unit(q))
	}
	if device.EnergyWithoutPower(t.reader) {
		units = append(units, device.Watt)
	}

	columns := make([]string, 0, len(units)*len(tags))
	for _, unit := range units {
		for _, tag := range tags {
			columns = append(columns, fmt.Sprintf("%s[%s]", tag, unit))
		}
	}
	return columns
}

// WriteHeader appends the column header to the output log.
func (t *Tracker) WriteHeader() error {
	return t.out.WriteHeader(t.Columns())
}

// Write flushes the buffer and appends the samples to the output log.
func (t *Tracker) Write() error {
	times, readTimes, data := t.FlushData()
	t.logger.Debug("writing samples", "count", len(times), "output", t.out.Path())
	return t.out.WriteData(times, readTimes, data)
}

// Start launches the paced read loop in the background. Samples
// accumulate in the buffer until flushed or written by the caller.
func (t *Tracker) Start() {
	if !t.loop.start(t) {
		t.logger.Warn("tracker is already running; stop it first")
	}
}

// Stop cancels the background loop and waits for it to finish.
func (t *Tracker) Stop() {
	if !t.loop.stop() {
		t.logger.Warn("tracker is not running; nothing to stop")
	}
}

// Run tracks until ctx is done: header first, then the paced loop with
// periodic writes. The buffer is flushed and written on every exit
// path; cancellation returns nil.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("Tracker is running...",
		"output", t.out.Path(), "interval", t.interval, "write-interval", t.writeInterval)

	if err := t.WriteHeader(); err != nil {
		return err
	}

	err := t.run(ctx, t, true)
	if werr := t.Write(); werr != nil && err == nil {
		err = werr
	}
	t.logger.Info("Tracker has terminated.")
	return err
}

// Shutdown stops the background loop if one is running and writes out
// whatever is still buffered.
func (t *Tracker) Shutdown() error {
	t.loop.stop()
	return t.Write()
}

// TotalReads returns the number of samples taken since construction.
func (t *Tracker) TotalReads() int64 {
	return t.totalReads.Load()
}

// LastReadDuration returns the duration of the most recent read.
func (t *Tracker) LastReadDuration() time.Duration {
	return time.Duration(t.lastReadNanos.Load())
}

// TotalReadTime returns the cumulative time spent reading the device,
// the sampling overhead this tracker has imposed so far.
func (t *Tracker) TotalReadTime() time.Duration {
	return time.Duration(t.totalReadNanos.Load())
}

// BufferedSamples returns the number of samples waiting to be flushed.
func (t *Tracker) BufferedSamples() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.times)
}

// Latest returns a copy of the most recent sample, surviving flushes,
// or ok false when nothing has been read yet.
func (t *Tracker) Latest() (timestamp int64, values []float64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.latestValues == nil {
		return 0, nil, false
	}
	values = make([]float64, len(t.latestValues))
	copy(values, t.latestValues)
	return t.latestTime, values, true
}
