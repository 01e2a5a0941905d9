// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sustainable-computing-io/wattmon/internal/tracker"
)

// statsCollector exports the read-loop counters of each tracker, the
// sampling overhead the process imposes on the host.
type statsCollector struct {
	trackers []*tracker.Tracker

	readsDesc      *prom.Desc
	readTimeDesc   *prom.Desc
	lastReadDesc   *prom.Desc
	bufferedDesc   *prom.Desc
	lastSampleDesc *prom.Desc
}

var _ prom.Collector = (*statsCollector)(nil)

func NewTrackerStatsCollector(trackers []*tracker.Tracker) *statsCollector {
	labels := []string{readerLabel}
	return &statsCollector{
		trackers: trackers,
		readsDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "tracker", "reads_total"),
			"Number of samples taken from the device",
			labels, nil,
		),
		readTimeDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "tracker", "read_seconds_total"),
			"Cumulative time spent reading the device",
			labels, nil,
		),
		lastReadDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "tracker", "last_read_duration_seconds"),
			"Duration of the most recent device read",
			labels, nil,
		),
		bufferedDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "tracker", "buffered_samples"),
			"Samples buffered in memory since the last write",
			labels, nil,
		),
		lastSampleDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "tracker", "last_sample_timestamp_seconds"),
			"Timestamp of the most recent sample",
			labels, nil,
		),
	}
}

func (c *statsCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.readsDesc
	ch <- c.readTimeDesc
	ch <- c.lastReadDesc
	ch <- c.bufferedDesc
	ch <- c.lastSampleDesc
}

func (c *statsCollector) Collect(ch chan<- prom.Metric) {
	for _, t := range c.trackers {
		reader := t.Reader().Name()

		ch <- prom.MustNewConstMetric(c.readsDesc, prom.CounterValue, float64(t.TotalReads()), reader)
		ch <- prom.MustNewConstMetric(c.readTimeDesc, prom.CounterValue, t.TotalReadTime().Seconds(), reader)
		ch <- prom.MustNewConstMetric(c.lastReadDesc, prom.GaugeValue, t.LastReadDuration().Seconds(), reader)
		ch <- prom.MustNewConstMetric(c.bufferedDesc, prom.GaugeValue, float64(t.BufferedSamples()), reader)

		if ts, _, ok := t.Latest(); ok {
			ch <- prom.MustNewConstMetric(c.lastSampleDesc, prom.GaugeValue, float64(ts)/1e9, reader)
		}
	}
}
