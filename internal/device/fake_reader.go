// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"log/slog"
	"math"
	"math/rand/v2"
)

const (
	// defaultFakeIncrement is the counter step per read, in microjoules.
	defaultFakeIncrement = 100_000.0

	// defaultFakeMaxEnergy mirrors a common max_energy_range_uj value.
	defaultFakeMaxEnergy = 65_532_610_987.0
)

var defaultFakeTags = []string{"fake-0", "fake-1"}

// FakeReader emulates a RAPL-style energy meter: every read advances
// one cumulative microjoule counter per tag by a fixed increment plus
// an optional random component, wrapping at maxEnergy.
type FakeReader struct {
	logger       *slog.Logger
	tags         []string
	increment    float64
	randomFactor float64
	maxEnergy    float64
	counters     []float64
}

var _ Reader = (*FakeReader)(nil)

type FakeOptFn func(*fakeOpts)

type fakeOpts struct {
	logger       *slog.Logger
	increment    float64
	randomFactor float64
	maxEnergy    float64
}

func WithFakeLogger(logger *slog.Logger) FakeOptFn {
	return func(o *fakeOpts) {
		o.logger = logger
	}
}

// WithFakeIncrement sets the counter step per read, in microjoules.
func WithFakeIncrement(increment float64) FakeOptFn {
	return func(o *fakeOpts) {
		o.increment = increment
	}
}

// WithFakeRandomFactor adds up to factor * increment of random extra
// energy per read. Zero keeps the counters fully deterministic.
func WithFakeRandomFactor(factor float64) FakeOptFn {
	return func(o *fakeOpts) {
		o.randomFactor = factor
	}
}

// WithFakeMaxEnergy sets the value the counters wrap at.
func WithFakeMaxEnergy(maxEnergy float64) FakeOptFn {
	return func(o *fakeOpts) {
		o.maxEnergy = maxEnergy
	}
}

// NewFakeReader constructs a fake meter with one counter per tag. An
// empty tag list falls back to the defaults.
func NewFakeReader(tags []string, opts ...FakeOptFn) *FakeReader {
	opt := fakeOpts{
		logger:    slog.Default(),
		increment: defaultFakeIncrement,
		maxEnergy: defaultFakeMaxEnergy,
	}
	for _, apply := range opts {
		apply(&opt)
	}

	if len(tags) == 0 {
		tags = defaultFakeTags
	}

	return &FakeReader{
		logger:       opt.logger.With("service", "fake-reader"),
		tags:         tags,
		increment:    opt.increment,
		randomFactor: opt.randomFactor,
		maxEnergy:    opt.maxEnergy,
		counters:     make([]float64, len(tags)),
	}
}

func (f *FakeReader) Name() string {
	return "fake"
}

func (f *FakeReader) Tags() []string {
	return f.tags
}

func (f *FakeReader) Quantities() []Quantity {
	return []Quantity{Energy}
}

func (f *FakeReader) Unit(q Quantity) Unit {
	if q == Energy {
		return Microjoule
	}
	f.logger.Warn("unsupported quantity requested", "quantity", q, "supported", []Quantity{Energy})
	return NoUnit
}

func (f *FakeReader) Read() []float64 {
	values := make([]float64, len(f.counters))
	for i := range f.counters {
		step := f.increment
		if f.randomFactor > 0 {
			step += f.increment * f.randomFactor * rand.Float64()
		}
		f.counters[i] = math.Mod(f.counters[i]+step, f.maxEnergy)
		values[i] = f.counters[i]
	}
	return values
}

// EnergyDeltas applies the same wraparound correction a real RAPL zone
// gets, using the shared wrap value for every counter.
func (f *FakeReader) EnergyDeltas(series [][]float64) [][]float64 {
	deltas := Deltas(series)
	for _, row := range deltas {
		for j := range row {
			if row[j] < 0 {
				row[j] += f.maxEnergy
			}
		}
	}
	return deltas
}

func (f *FakeReader) Close() error {
	return nil
}
