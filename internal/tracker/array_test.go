// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/sustainable-computing-io/wattmon/internal/device"
)

func TestNewTrackerArray(t *testing.T) {
	readers := []device.Reader{
		jouleStub("a", []float64{1}),
		jouleStub("b", []float64{2}),
	}

	t.Run("outputs must match readers", func(t *testing.T) {
		_, err := NewTrackerArray(readers, []string{"only-one.log"},
			WithLogger(discardLogger()))
		require.Error(t, err)
		assert.ErrorContains(t, err, "match number of readers")
	})

	t.Run("no outputs leaves the defaults", func(t *testing.T) {
		arr, err := NewTrackerArray(readers, nil, WithLogger(discardLogger()))
		require.NoError(t, err)
		require.Len(t, arr.Trackers(), 2)
		assert.Equal(t, "stub_series.log", arr.Trackers()[0].Output())
		assert.Equal(t, "tracker", arr.Name())
	})

	t.Run("one output per reader", func(t *testing.T) {
		arr, err := NewTrackerArray(readers, []string{"first.log", "second.log"},
			WithLogger(discardLogger()))
		require.NoError(t, err)
		assert.Equal(t, "first.log", arr.Trackers()[0].Output())
		assert.Equal(t, "second.log", arr.Trackers()[1].Output())
	})
}

func TestTrackerArrayRead(t *testing.T) {
	fc := testingclock.NewFakeClock(time.Now())
	first := jouleStub("a", nil)
	first.readFn = func() []float64 {
		fc.Step(5 * time.Millisecond)
		return []float64{1}
	}
	second := jouleStub("b", nil)
	second.readFn = func() []float64 {
		fc.Step(5 * time.Millisecond)
		return []float64{2}
	}

	arr, err := NewTrackerArray([]device.Reader{first, second}, nil,
		WithClock(fc), WithLogger(discardLogger()))
	require.NoError(t, err)

	elapsed := arr.Read()
	assert.Equal(t, 10*time.Millisecond, elapsed, "array read time is the sum over readers")

	for _, tr := range arr.Trackers() {
		assert.Equal(t, 1, tr.BufferedSamples())
	}
}

func TestTrackerArrayWrite(t *testing.T) {
	dir := t.TempDir()
	outputs := []string{
		filepath.Join(dir, "first.log"),
		filepath.Join(dir, "second.log"),
	}
	readers := []device.Reader{
		jouleStub("a", []float64{1}),
		jouleStub("b", []float64{2}),
	}
	arr, err := NewTrackerArray(readers, outputs, WithLogger(discardLogger()))
	require.NoError(t, err)

	arr.Read()
	require.NoError(t, arr.WriteHeader())
	require.NoError(t, arr.Write())

	for i, output := range outputs {
		lines := readLines(t, output)
		require.Len(t, lines, 2, "output %d", i)
		assert.True(t, strings.HasPrefix(lines[0], "# timestamp"))
		assert.True(t, strings.HasPrefix(lines[1], "  "))
	}
	assert.Contains(t, readLines(t, outputs[0])[0], "a[J]")
	assert.Contains(t, readLines(t, outputs[1])[0], "b[J]")
}

func TestTrackerArrayStartStop(t *testing.T) {
	readers := []device.Reader{
		jouleStub("a", []float64{1}),
		jouleStub("b", []float64{2}),
	}
	arr, err := NewTrackerArray(readers, nil,
		WithInterval(2*time.Millisecond), WithLogger(discardLogger()))
	require.NoError(t, err)

	arr.Start()
	require.Eventually(t, func() bool {
		return arr.Trackers()[0].TotalReads() >= 2 && arr.Trackers()[1].TotalReads() >= 2
	}, time.Second, time.Millisecond, "both readers sample under the shared loop")

	arr.Stop()
	n := arr.Trackers()[0].TotalReads()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, arr.Trackers()[0].TotalReads())

	// stopping again warns instead of hanging
	arr.Stop()
}

func TestTrackerArrayRun(t *testing.T) {
	dir := t.TempDir()
	outputs := []string{
		filepath.Join(dir, "first.log"),
		filepath.Join(dir, "second.log"),
	}
	readers := []device.Reader{
		device.NewFakeReader([]string{"a"}, device.WithFakeLogger(discardLogger())),
		device.NewFakeReader([]string{"b"}, device.WithFakeLogger(discardLogger())),
	}
	arr, err := NewTrackerArray(readers, outputs,
		WithInterval(10*time.Millisecond), WithLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	require.NoError(t, arr.Run(ctx))

	for _, output := range outputs {
		lines := readLines(t, output)
		require.Greater(t, len(lines), 2, "expected a header and samples in %s", output)
		assert.True(t, strings.HasPrefix(lines[0], "# timestamp"))
	}
}

func TestTrackerArrayShutdown(t *testing.T) {
	dir := t.TempDir()
	outputs := []string{filepath.Join(dir, "only.log")}
	arr, err := NewTrackerArray([]device.Reader{jouleStub("a", []float64{9})}, outputs,
		WithLogger(discardLogger()))
	require.NoError(t, err)

	arr.Read()
	require.NoError(t, arr.Shutdown())

	lines := readLines(t, outputs[0])
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], " 9")
}