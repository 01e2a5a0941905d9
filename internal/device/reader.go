// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

// Package device implements the hardware meters wattmon samples from:
// CPU energy counters exposed through the powercap sysfs tree, NVIDIA
// GPUs through NVML, and a fake meter for development and tests.
package device

// Reader polls one family of hardware sensors. A Reader is constructed
// once at startup (opening counter handles or driver sessions), read
// many times by a single goroutine, and closed once.
type Reader interface {
	// Name is a short identifier used in log output and file names.
	Name() string

	// Tags returns one label per monitored device or domain. The order
	// is fixed for the reader's lifetime.
	Tags() []string

	// Quantities returns the quantities each read reports, in the order
	// their column blocks appear in Read results.
	Quantities() []Quantity

	// Unit returns the unit raw values of q are reported in. Behavior
	// for unsupported quantities is per reader: some warn and return
	// NoUnit, others reject the quantity at construction.
	Unit(q Quantity) Unit

	// Read performs exactly one synchronous poll per quantity per tag
	// and returns the raw values, quantity-major then tag-minor, always
	// len(Quantities()) * len(Tags()) entries. A device that fails to
	// read contributes a zero and a logged error, never an abort.
	Read() []float64

	// EnergyDeltas converts rows of cumulative energy counters into
	// consecutive differences, applying whatever wraparound correction
	// the underlying counters need.
	EnergyDeltas(series [][]float64) [][]float64

	// Close releases the handles held on the underlying devices.
	Close() error
}

// EnergyWithoutPower reports whether r exposes energy but not power,
// which means a power series has to be derived from energy deltas.
func EnergyWithoutPower(r Reader) bool {
	energy, power := false, false
	for _, q := range r.Quantities() {
		switch q {
		case Energy:
			energy = true
		case Power:
			power = true
		}
	}
	return energy && !power
}

// Deltas returns the consecutive differences of series rows, without
// any wraparound correction. The result has max(len(series)-1, 0) rows.
func Deltas(series [][]float64) [][]float64 {
	if len(series) < 2 {
		return [][]float64{}
	}

	deltas := make([][]float64, len(series)-1)
	for i := range deltas {
		row := make([]float64, len(series[i+1]))
		for j, v := range series[i+1] {
			row[j] = v - series[i][j]
		}
		deltas[i] = row
	}
	return deltas
}

// PowerSeries derives average power in watts from rows of cumulative
// energy readings. times holds one timestamp in nanoseconds per row of
// energy; when the lengths differ the shorter one wins. The result is
// aligned with its inputs: row i holds the power over the interval
// [i, i+1) and the last row, which has no following reading to pair
// with, is zero-filled.
func PowerSeries(r Reader, times []int64, energy [][]float64) [][]float64 {
	n := min(len(times), len(energy))

	series := make([][]float64, n)
	for i := range series {
		series[i] = make([]float64, len(energy[i]))
	}
	if n < 2 {
		return series
	}

	factor := r.Unit(Energy).ToSI()
	deltas := r.EnergyDeltas(energy[:n])
	for i := range n - 1 {
		dt := float64(times[i+1]-times[i]) * 1e-9
		for j, d := range deltas[i] {
			series[i][j] = d * factor / dt
		}
	}
	return series
}

// QuantityColumns returns the half-open column range [start, end) that
// q occupies in rows returned by r.Read.
func QuantityColumns(r Reader, q Quantity) (int, int, bool) {
	width := len(r.Tags())
	for i, rq := range r.Quantities() {
		if rq == q {
			return i * width, (i + 1) * width, true
		}
	}
	return 0, 0, false
}
