// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sustainable-computing-io/wattmon/internal/device"
	"github.com/sustainable-computing-io/wattmon/internal/tracker"
)

const (
	readerLabel = "reader"
	tagLabel    = "tag"
)

// ReadingCollector exports the newest sample of each tracker, converted
// from raw device units to SI. Energy counters are cumulative, so they
// surface as Prometheus counters; power and temperature as gauges.
type ReadingCollector struct {
	trackers []*tracker.Tracker

	energyDesc      *prom.Desc
	powerDesc       *prom.Desc
	temperatureDesc *prom.Desc
}

var _ prom.Collector = (*ReadingCollector)(nil)

func NewReadingCollector(trackers []*tracker.Tracker) *ReadingCollector {
	labels := []string{readerLabel, tagLabel}
	return &ReadingCollector{
		trackers: trackers,
		energyDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "", "energy_joules_total"),
			"Cumulative energy consumed by a monitored domain in joules",
			labels, nil,
		),
		powerDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "", "power_watts"),
			"Power drawn by a monitored domain in watts",
			labels, nil,
		),
		temperatureDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "", "temperature_celsius"),
			"Temperature of a monitored domain in degrees Celsius",
			labels, nil,
		),
	}
}

func (c *ReadingCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.energyDesc
	ch <- c.powerDesc
	ch <- c.temperatureDesc
}

func (c *ReadingCollector) Collect(ch chan<- prom.Metric) {
	for _, t := range c.trackers {
		_, values, ok := t.Latest()
		if !ok {
			continue
		}

		reader := t.Reader()
		tags := reader.Tags()
		for _, q := range reader.Quantities() {
			desc, kind := c.descFor(q)
			if desc == nil {
				continue
			}

			start, end, ok := device.QuantityColumns(reader, q)
			if !ok || end > len(values) {
				continue
			}
			factor := reader.Unit(q).ToSI()
			for i, v := range values[start:end] {
				ch <- prom.MustNewConstMetric(desc, kind, v*factor, reader.Name(), tags[i])
			}
		}
	}
}

func (c *ReadingCollector) descFor(q device.Quantity) (*prom.Desc, prom.ValueType) {
	switch q {
	case device.Energy:
		return c.energyDesc, prom.CounterValue
	case device.Power:
		return c.powerDesc, prom.GaugeValue
	case device.Temperature:
		return c.temperatureDesc, prom.GaugeValue
	}
	return nil, prom.UntypedValue
}
