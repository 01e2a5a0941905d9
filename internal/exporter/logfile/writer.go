// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

// Package logfile renders buffered samples into an append-only text
// log: a header line of unit-suffixed column names followed by one row
// per sample.
package logfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// timestampLayout renders local time at microsecond precision. The
// layout is fixed width, so its length doubles as the rendered width.
const timestampLayout = "2006-01-02_15:04:05.000000"

// Writer appends samples to a single log file. The file is opened for
// append and closed again on every call.
type Writer struct {
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the log file location.
func (w *Writer) Path() string {
	return w.path
}

// WriteHeader appends the column header line. The pad after
// "# timestamp" lines the remaining column names up over the data
// rows, which lead with two spaces and a fixed-width timestamp.
func (w *Writer) WriteHeader(columns []string) error {
	var b strings.Builder
	b.WriteString("# timestamp")
	b.WriteString(strings.Repeat(" ", len(timestampLayout)-9))
	b.WriteString(" reading-time[ns]")
	for _, col := range columns {
		b.WriteByte(' ')
		b.WriteString(col)
	}
	b.WriteByte('\n')
	return w.append(b.String())
}

// WriteData appends one row per sample: midpoint timestamp, elapsed
// read time in nanoseconds, then the data values. times, readTimes and
// data must have equal lengths; all rows go out in a single write.
func (w *Writer) WriteData(times []int64, readTimes []int64, data [][]float64) error {
	var b strings.Builder
	for i, ts := range times {
		b.WriteString("  ")
		b.WriteString(time.Unix(0, ts).Format(timestampLayout))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(readTimes[i], 10))
		for _, v := range data[i] {
			b.WriteByte(' ')
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		b.WriteByte('\n')
	}
	return w.append(b.String())
}

func (w *Writer) append(s string) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	_, werr := f.WriteString(s)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("failed to write log file %s: %w", w.path, werr)
	}
	return nil
}
