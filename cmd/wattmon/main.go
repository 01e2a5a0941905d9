// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/utils/ptr"

	"github.com/sustainable-computing-io/wattmon/config"
	"github.com/sustainable-computing-io/wattmon/internal/device"
	"github.com/sustainable-computing-io/wattmon/internal/device/nvidia"
	"github.com/sustainable-computing-io/wattmon/internal/exporter/prometheus"
	"github.com/sustainable-computing-io/wattmon/internal/exporter/stdout"
	"github.com/sustainable-computing-io/wattmon/internal/logger"
	"github.com/sustainable-computing-io/wattmon/internal/server"
	"github.com/sustainable-computing-io/wattmon/internal/service"
	"github.com/sustainable-computing-io/wattmon/internal/tracker"
	"github.com/sustainable-computing-io/wattmon/internal/version"
)

func main() {
	cfg, describe, err := parseArgsAndConfig()
	if err != nil {
		os.Exit(1)
	}
	logger := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	if describe {
		if err := printInventory(os.Stdout, logger, cfg); err != nil {
			logger.Error("Describing readers failed", "error", err)
			os.Exit(1)
		}
		return
	}

	logVersionInfo(logger)
	printConfigInfo(logger, cfg)

	services, err := createServices(logger, cfg)
	if err != nil {
		logger.Error("Error creating services", "error", err)
		os.Exit(1)
	}

	if err := service.Init(logger, services); err != nil {
		logger.Error("Error initializing services", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting Wattmon")
	if err := service.Run(context.Background(), logger, services); err != nil {
		logger.Error("Wattmon terminated with an error", "error", err)
		os.Exit(1)
	}
	logger.Info("Graceful shutdown completed")
}

func logVersionInfo(logger *slog.Logger) {
	v := version.Info()
	logger.Info("Wattmon version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}

func parseArgsAndConfig() (*config.Config, bool, error) {
	const appName = "wattmon"
	app := kingpin.New(appName, "Power and energy telemetry sampler for CPUs and GPUs.")

	configFile := app.Flag("config.file", "Path to YAML configuration file").String()
	describe := app.Flag("describe", "Print the device inventory and exit").Bool()
	updateConfig := config.RegisterFlags(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := logger.New("info", "text", os.Stderr)
	cfg := config.DefaultConfig()
	if *configFile != "" {
		logger.Info("Loading configuration file", "path", *configFile)
		loadedCfg, err := config.FromFile(*configFile)
		if err != nil {
			logger.Error("Error loading config file", "error", err.Error())
			return nil, false, err
		}
		// Replace default config with loaded config
		cfg = loadedCfg
		logger.Info("Completed loading of configuration file", "path", *configFile)
	}

	// Apply command line flags (these override config file settings)
	if err := updateConfig(cfg); err != nil {
		logger.Error("Error applying command line flags", "error", err.Error())
		return nil, false, err
	}

	return cfg, *describe, nil
}

func printConfigInfo(logger *slog.Logger, cfg *config.Config) {
	if !logger.Enabled(context.Background(), slog.LevelInfo) || cfg.Log.Format == "json" {
		return
	}

	// stderr keeps stdout free for the stdout exporter
	fmt.Fprintf(os.Stderr, `
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}

// createReaders builds one device reader per enabled config section and
// the matching series log path for each. The NVML reader is also
// returned on its own so the exporter can label GPU metadata.
func createReaders(logger *slog.Logger, cfg *config.Config) ([]device.Reader, []string, *nvidia.NVMLReader, error) {
	var (
		readers []device.Reader
		outputs []string
	)

	if ptr.Deref(cfg.Dev.FakeReader.Enabled, false) {
		fake := device.NewFakeReader(cfg.Dev.FakeReader.Tags, device.WithFakeLogger(logger))
		readers = append(readers, fake)
		outputs = append(outputs, outputPath(cfg, fake.Name(), ""))
	}

	if ptr.Deref(cfg.Rapl.Enabled, false) {
		rapl, err := device.NewRaplReader(
			device.WithRaplLogger(logger),
			device.WithRaplSysFS(cfg.Host.SysFS),
			device.WithRaplZoneFilter(cfg.Rapl.Zones),
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create rapl reader: %w", err)
		}
		readers = append(readers, rapl)
		outputs = append(outputs, outputPath(cfg, rapl.Name(), cfg.Rapl.Output))
	}

	var gpu *nvidia.NVMLReader
	if ptr.Deref(cfg.Gpu.Enabled, false) {
		quantities, err := parseQuantities(cfg.Gpu.Quantities)
		if err != nil {
			return nil, nil, nil, err
		}
		gpu, err = nvidia.NewNVMLReader(quantities, nvidia.WithLogger(logger))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create nvml reader: %w", err)
		}
		readers = append(readers, gpu)
		outputs = append(outputs, outputPath(cfg, gpu.Name(), cfg.Gpu.Output))
	}

	return readers, outputs, gpu, nil
}

// outputPath resolves a reader's series log: the explicitly configured
// path when set, otherwise <name>_series.log under the output dir.
func outputPath(cfg *config.Config, name, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(cfg.Output.Dir, name+"_series.log")
}

func parseQuantities(names []string) ([]device.Quantity, error) {
	quantities := make([]device.Quantity, 0, len(names))
	for _, name := range names {
		q, err := device.ParseQuantity(name)
		if err != nil {
			return nil, fmt.Errorf("invalid gpu quantity: %w", err)
		}
		quantities = append(quantities, q)
	}
	return quantities, nil
}

func createServices(logger *slog.Logger, cfg *config.Config) ([]service.Service, error) {
	logger.Debug("Creating all services")

	readers, outputs, gpu, err := createReaders(logger, cfg)
	if err != nil {
		return nil, err
	}

	trackers, err := tracker.NewTrackerArray(readers, outputs,
		tracker.WithLogger(logger),
		tracker.WithInterval(cfg.Tracker.Interval),
		tracker.WithWriteInterval(cfg.Tracker.WriteInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker array: %w", err)
	}

	apiServer := server.NewAPIServer(
		server.WithLogger(logger),
		server.WithListenAddress(cfg.Web.ListenAddresses),
		server.WithWebConfig(cfg.Web.Config),
	)

	// livez flags a sampler that has missed three consecutive cycles
	staleness := 3 * cfg.Tracker.Interval

	services := []service.Service{
		trackers,
		apiServer,
		server.NewProbe(apiServer, trackers.Trackers(), staleness),
		service.NewSignalHandler(os.Interrupt, syscall.SIGTERM),
	}

	if ptr.Deref(cfg.Debug.Pprof.Enabled, false) {
		services = append(services, server.NewPprof(apiServer))
	}

	if ptr.Deref(cfg.Exporter.Stdout.Enabled, false) {
		services = append(services, stdout.NewExporter(
			trackers.Trackers(),
			stdout.WithLogger(logger),
		))
	}

	if ptr.Deref(cfg.Exporter.Prometheus.Enabled, false) {
		collectorOpts := []prometheus.OptionFn{
			prometheus.WithLogger(logger),
			prometheus.WithProcFSPath(cfg.Host.ProcFS),
		}
		if ptr.Deref(cfg.Rapl.Enabled, false) {
			collectorOpts = append(collectorOpts, prometheus.WithSysFSPath(cfg.Host.SysFS))
		}
		if gpu != nil {
			collectorOpts = append(collectorOpts, prometheus.WithGPUDevices(gpu.Devices()))
		}
		collectors, err := prometheus.CreateCollectors(trackers.Trackers(), collectorOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create collectors: %w", err)
		}

		services = append(services, prometheus.NewExporter(apiServer,
			prometheus.WithLogger(logger),
			prometheus.WithDebugCollectors(cfg.Exporter.Prometheus.DebugCollectors),
			prometheus.WithCollectors(collectors),
		))
	}

	return services, nil
}
