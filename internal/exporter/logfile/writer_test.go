// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package logfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
}

func TestWriteHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rapl_series.log")
	w := NewWriter(path)
	require.NoError(t, w.WriteHeader([]string{"cpu-0[uJ]", "psys[uJ]", "cpu-0[W]", "psys[W]"}))

	lines := readLines(t, path)
	require.Len(t, lines, 1)

	want := "# timestamp" + strings.Repeat(" ", 17) +
		" reading-time[ns] cpu-0[uJ] psys[uJ] cpu-0[W] psys[W]"
	assert.Equal(t, want, lines[0])
}

func TestWriteData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	w := NewWriter(path)

	ts0 := time.Date(2025, 6, 1, 12, 30, 15, 123456000, time.Local).UnixNano()
	ts1 := ts0 + 500_000_000
	require.NoError(t, w.WriteData(
		[]int64{ts0, ts1},
		[]int64{8211, 7954},
		[][]float64{{1000.5, 2000}, {1100, 2100.25}},
	))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "  2025-06-01_12:30:15.123456 8211 1000.5 2000", lines[0])
	assert.Equal(t, "  2025-06-01_12:30:15.623456 7954 1100 2100.25", lines[1])
}

func TestHeaderAlignsWithDataRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	w := NewWriter(path)

	require.NoError(t, w.WriteHeader([]string{"fake-0[uJ]"}))
	require.NoError(t, w.WriteData(
		[]int64{time.Now().UnixNano()}, []int64{100}, [][]float64{{1}},
	))

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	// the reading-time column starts at the same offset in both lines
	assert.Equal(t,
		strings.Index(lines[0], " reading-time"),
		len("  ")+len(timestampLayout),
	)
	fields := strings.Fields(lines[1])
	assert.Len(t, fields[0], len(timestampLayout))
}

func TestWriteAppendsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	w := NewWriter(path)

	now := time.Now().UnixNano()
	require.NoError(t, w.WriteHeader([]string{"a[J]"}))
	require.NoError(t, w.WriteData([]int64{now}, []int64{1}, [][]float64{{10}}))
	require.NoError(t, w.WriteData([]int64{now + 1000}, []int64{2}, [][]float64{{20}}))

	lines := readLines(t, path)
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "# timestamp"))
}

func TestWriteDataEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	w := NewWriter(path)

	require.NoError(t, w.WriteData(nil, nil, nil))

	// the file exists but holds nothing
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestWriteErrors(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "missing", "out.log"))

	assert.Error(t, w.WriteHeader([]string{"a[J]"}))
	assert.Error(t, w.WriteData([]int64{1}, []int64{1}, [][]float64{{1}}))
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/tmp/x.log", NewWriter("/tmp/x.log").Path())
}
