// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package prometheus

import (
	"fmt"
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sustainable-computing-io/wattmon/internal/device/nvidia"
	collector "github.com/sustainable-computing-io/wattmon/internal/exporter/prometheus/collector"
	"github.com/sustainable-computing-io/wattmon/internal/service"
	"github.com/sustainable-computing-io/wattmon/internal/tracker"
)

type Initializer = service.Initializer

type APIRegistry interface {
	Register(endpoint, summary, description string, handler http.Handler) error
}

type Opts struct {
	logger          *slog.Logger
	debugCollectors map[string]bool
	collectors      map[string]prom.Collector
	procfs          string
	sysfs           string
	gpuDevices      []nvidia.GPUDevice
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		debugCollectors: map[string]bool{
			"go": true,
		},
		collectors: map[string]prom.Collector{},
		procfs:     "/proc",
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithDebugCollectors sets the debug collectors
func WithDebugCollectors(c []string) OptionFn {
	return func(o *Opts) {
		o.debugCollectors = make(map[string]bool)
		for _, name := range c {
			o.debugCollectors[name] = true
		}
	}
}

func WithProcFSPath(procfs string) OptionFn {
	return func(o *Opts) {
		o.procfs = procfs
	}
}

// WithSysFSPath enables the RAPL zone collector reading from the given
// sysfs mount.
func WithSysFSPath(sysfs string) OptionFn {
	return func(o *Opts) {
		o.sysfs = sysfs
	}
}

// WithGPUDevices enables the GPU info collector for the given devices.
func WithGPUDevices(devices []nvidia.GPUDevice) OptionFn {
	return func(o *Opts) {
		o.gpuDevices = devices
	}
}

func WithCollectors(c map[string]prom.Collector) OptionFn {
	return func(o *Opts) {
		o.collectors = c
	}
}

// Exporter exports tracker readings to Prometheus
type Exporter struct {
	logger          *slog.Logger
	registry        *prom.Registry
	server          APIRegistry
	debugCollectors map[string]bool
	collectors      map[string]prom.Collector
}

var _ Initializer = (*Exporter)(nil)

// NewExporter creates a new Exporter instance
func NewExporter(s APIRegistry, applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	exporter := &Exporter{
		server:          s,
		logger:          opts.logger.With("service", "prometheus"),
		debugCollectors: opts.debugCollectors,
		collectors:      opts.collectors,
		registry:        prom.NewRegistry(),
	}

	return exporter
}

func collectorForName(name string) (prom.Collector, error) {
	switch name {
	case "go":
		return collectors.NewGoCollector(), nil
	case "process":
		return collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), nil
	default:
		return nil, fmt.Errorf("unknown collector: %s", name)
	}
}

// CreateCollectors builds the collector set for the given trackers.
// The RAPL zone and GPU info collectors are only included when a sysfs
// path or GPU devices are configured.
func CreateCollectors(trackers []*tracker.Tracker, applyOpts ...OptionFn) (map[string]prom.Collector, error) {
	opts := Opts{
		logger: slog.Default(),
		procfs: "/proc",
	}
	for _, apply := range applyOpts {
		apply(&opts)
	}

	collectors := map[string]prom.Collector{
		"build_info":    collector.NewBuildInfoCollector(),
		"reading":       collector.NewReadingCollector(trackers),
		"tracker_stats": collector.NewTrackerStatsCollector(trackers),
	}

	cpuInfoCollector, err := collector.NewCPUInfoCollector(opts.procfs)
	if err != nil {
		return nil, err
	}
	collectors["cpu_info"] = cpuInfoCollector

	overheadCollector, err := collector.NewOverheadCollector(opts.procfs)
	if err != nil {
		return nil, err
	}
	collectors["overhead"] = overheadCollector

	if opts.sysfs != "" {
		zoneCollector, err := collector.NewEnergyZoneCollector(opts.sysfs)
		if err != nil {
			return nil, err
		}
		collectors["rapl_zone"] = zoneCollector
	}

	if len(opts.gpuDevices) > 0 {
		collectors["gpu_info"] = collector.NewGPUInfoCollector(opts.gpuDevices)
	}

	return collectors, nil
}

func (e *Exporter) Init() error {
	e.logger.Info("Initializing Prometheus exporter")
	for c := range e.debugCollectors {
		collector, err := collectorForName(c)
		if err != nil {
			e.logger.Error("Error creating collector", "collector", c, "error", err)
			return err
		}
		e.logger.Info("Enabling debug collector", "collector", c)
		e.registry.MustRegister(collector)
	}

	for name, collector := range e.collectors {
		e.logger.Info("Enabling collector", "collector", name)
		e.registry.MustRegister(collector)
	}

	err := e.server.Register("/metrics", "Metrics", "Prometheus metrics",
		promhttp.HandlerFor(
			e.registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          e.registry,
			},
		))
	return err
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "prometheus"
}
