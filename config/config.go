// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// DefaultPort is the port the API server listens on when none is
// configured.
const DefaultPort = ":28283"

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}
	Host struct {
		SysFS  string `yaml:"sysfs"`
		ProcFS string `yaml:"procfs"`
	}

	// Tracker controls the sampling cadence shared by all readers
	Tracker struct {
		Interval time.Duration `yaml:"interval"` // Interval between samples

		// WriteInterval is the wall-clock period between flushes of the
		// sample buffer to the series logs; 0 disables periodic writes
		// and leaves a single flush at shutdown
		WriteInterval time.Duration `yaml:"writeInterval"`
	}

	// Rapl configures the CPU energy reader
	Rapl struct {
		Enabled *bool    `yaml:"enabled"`
		Zones   []string `yaml:"zones"`  // zone tags to keep; empty keeps all
		Output  string   `yaml:"output"` // series log path; empty derives from the reader name
	}

	// Gpu configures the NVML reader
	Gpu struct {
		Enabled    *bool    `yaml:"enabled"`
		Quantities []string `yaml:"quantities"` // energy, temperature, power; empty takes the reader defaults
		Output     string   `yaml:"output"`
	}

	// Output holds settings shared by all series logs
	Output struct {
		Dir string `yaml:"dir"` // directory for derived log paths
	}

	PrometheusExporter struct {
		Enabled         *bool    `yaml:"enabled"`
		DebugCollectors []string `yaml:"debugCollectors"`
	}

	// StdoutExporter periodically prints the latest readings as a table
	StdoutExporter struct {
		Enabled *bool `yaml:"enabled"`
	}

	Exporter struct {
		Stdout     StdoutExporter     `yaml:"stdout"`
		Prometheus PrometheusExporter `yaml:"prometheus"`
	}

	// Debug configuration
	PprofDebug struct {
		Enabled *bool `yaml:"enabled"`
	}

	Debug struct {
		Pprof PprofDebug `yaml:"pprof"`
	}

	Web struct {
		Config          string   `yaml:"configFile"`
		ListenAddresses []string `yaml:"listenAddresses"`
	}

	// Development mode settings; disabled by default
	Dev struct {
		FakeReader struct {
			Enabled *bool    `yaml:"enabled"`
			Tags    []string `yaml:"tags"`
		} `yaml:"fake-reader"`
	}

	Config struct {
		Log      Log      `yaml:"log"`
		Host     Host     `yaml:"host"`
		Tracker  Tracker  `yaml:"tracker"`
		Rapl     Rapl     `yaml:"rapl"`
		Gpu      Gpu      `yaml:"gpu"`
		Output   Output   `yaml:"output"`
		Exporter Exporter `yaml:"exporter"`
		Web      Web      `yaml:"web"`
		Debug    Debug    `yaml:"debug"`
		Dev      Dev      `yaml:"dev"` // WARN: do not expose dev settings as flags
	}
)

type SkipValidation int

const (
	SkipHostValidation SkipValidation = 1
)

const (
	// Flags
	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"

	HostSysFSFlag  = "host.sysfs"
	HostProcFSFlag = "host.procfs"

	TrackerIntervalFlag      = "tracker.interval"
	TrackerWriteIntervalFlag = "tracker.write-interval"

	RaplEnabledFlag = "rapl.enable"
	RaplZones       = "rapl.zones" // not a flag

	GpuEnabledFlag    = "gpu.enable"
	GpuQuantitiesFlag = "gpu.quantities"

	OutputDirFlag = "output.dir"

	pprofEnabledFlag = "debug.pprof"

	WebConfigFlag        = "web.config-file"
	WebListenAddressFlag = "web.listen-address"

	// Exporters
	ExporterStdoutEnabledFlag     = "exporter.stdout"
	ExporterPrometheusEnabledFlag = "exporter.prometheus"
	// NOTE: not a flag
	ExporterPrometheusDebugCollectors = "exporter.prometheus.debug-collectors"

// WARN:  dev settings shouldn't be exposed as flags as flags are intended for end users
)

// validQuantities are the measurement names the gpu.quantities setting
// accepts; parsing into reader quantities happens at wiring time.
var validQuantities = map[string]bool{
	"energy":      true,
	"power":       true,
	"temperature": true,
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	cfg := &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Host: Host{
			SysFS:  "/sys",
			ProcFS: "/proc",
		},
		Tracker: Tracker{
			Interval:      1 * time.Second,
			WriteInterval: 1 * time.Hour,
		},
		Rapl: Rapl{
			Enabled: ptr.To(true),
			Zones:   []string{},
		},
		Gpu: Gpu{
			Enabled:    ptr.To(false),
			Quantities: []string{},
		},
		Output: Output{
			Dir: ".",
		},
		Exporter: Exporter{
			Stdout: StdoutExporter{
				Enabled: ptr.To(false),
			},
			Prometheus: PrometheusExporter{
				Enabled:         ptr.To(true),
				DebugCollectors: []string{"go"},
			},
		},
		Debug: Debug{
			Pprof: PprofDebug{
				Enabled: ptr.To(false),
			},
		},
		Web: Web{
			ListenAddresses: []string{DefaultPort},
		},
	}

	cfg.Dev.FakeReader.Enabled = ptr.To(false)
	return cfg
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	var errRet error
	defer func() {
		err = file.Close()
		if err != nil && errRet == nil {
			errRet = err
		}
	}()

	cfg, errRet := Load(file)

	return cfg, errRet
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags with kingpin app
// and returns ConfigUpdaterFn that updates the config from parsed flags
// as command line arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		// Clear the map in case this function is called multiple times
		flagsSet = map[string]bool{}

		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum("debug", "info", "warn", "error")
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum("text", "json")
	// host
	hostSysFS := app.Flag(HostSysFSFlag, "Host sysfs path").Default("/sys").ExistingDir()
	hostProcFS := app.Flag(HostProcFSFlag, "Host procfs path").Default("/proc").ExistingDir()

	// tracker
	trackerInterval := app.Flag(TrackerIntervalFlag,
		"Interval between samples").Default("1s").Duration()
	trackerWriteInterval := app.Flag(TrackerWriteIntervalFlag,
		"Interval between flushes of buffered samples to the series logs; 0 to write only at shutdown").Default("1h").Duration()

	// readers
	raplEnabled := app.Flag(RaplEnabledFlag, "Sample CPU energy through RAPL powercap").Default("true").Bool()
	gpuEnabled := app.Flag(GpuEnabledFlag, "Sample NVIDIA GPUs through NVML").Default("false").Bool()
	gpuQuantities := app.Flag(GpuQuantitiesFlag, "GPU quantities to sample (energy, temperature, power)").Strings()

	outputDir := app.Flag(OutputDirFlag, "Directory for series logs with derived names").Default(".").String()

	enablePprof := app.Flag(pprofEnabledFlag, "Enable pprof debug endpoints").Default("false").Bool()
	webConfig := app.Flag(WebConfigFlag, "Web config file path").Default("").String()
	webListenAddresses := app.Flag(WebListenAddressFlag, "Web server listen addresses").Default(DefaultPort).Strings()

	// exporters
	stdoutExporterEnabled := app.Flag(ExporterStdoutEnabledFlag, "Enable stdout exporter").Default("false").Bool()
	prometheusExporterEnabled := app.Flag(ExporterPrometheusEnabledFlag, "Enable Prometheus exporter").Default("true").Bool()

	return func(cfg *Config) error {
		// Logging settings
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}

		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[HostSysFSFlag] {
			cfg.Host.SysFS = *hostSysFS
		}

		if flagsSet[HostProcFSFlag] {
			cfg.Host.ProcFS = *hostProcFS
		}

		// tracker settings
		if flagsSet[TrackerIntervalFlag] {
			cfg.Tracker.Interval = *trackerInterval
		}
		if flagsSet[TrackerWriteIntervalFlag] {
			cfg.Tracker.WriteInterval = *trackerWriteInterval
		}

		if flagsSet[RaplEnabledFlag] {
			cfg.Rapl.Enabled = raplEnabled
		}

		if flagsSet[GpuEnabledFlag] {
			cfg.Gpu.Enabled = gpuEnabled
		}
		if flagsSet[GpuQuantitiesFlag] {
			cfg.Gpu.Quantities = *gpuQuantities
		}

		if flagsSet[OutputDirFlag] {
			cfg.Output.Dir = *outputDir
		}

		if flagsSet[pprofEnabledFlag] {
			cfg.Debug.Pprof.Enabled = enablePprof
		}

		if flagsSet[WebConfigFlag] {
			cfg.Web.Config = *webConfig
		}

		if flagsSet[WebListenAddressFlag] {
			cfg.Web.ListenAddresses = *webListenAddresses
		}

		if flagsSet[ExporterStdoutEnabledFlag] {
			cfg.Exporter.Stdout.Enabled = stdoutExporterEnabled
		}

		if flagsSet[ExporterPrometheusEnabledFlag] {
			cfg.Exporter.Prometheus.Enabled = prometheusExporterEnabled
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

func (c *Config) sanitize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Host.SysFS = strings.TrimSpace(c.Host.SysFS)
	c.Host.ProcFS = strings.TrimSpace(c.Host.ProcFS)
	c.Output.Dir = strings.TrimSpace(c.Output.Dir)
	c.Rapl.Output = strings.TrimSpace(c.Rapl.Output)
	c.Gpu.Output = strings.TrimSpace(c.Gpu.Output)
	c.Web.Config = strings.TrimSpace(c.Web.Config)
	for i := range c.Web.ListenAddresses {
		c.Web.ListenAddresses[i] = strings.TrimSpace(c.Web.ListenAddresses[i])
	}

	for i := range c.Rapl.Zones {
		c.Rapl.Zones[i] = strings.TrimSpace(c.Rapl.Zones[i])
	}

	for i := range c.Gpu.Quantities {
		c.Gpu.Quantities[i] = strings.ToLower(strings.TrimSpace(c.Gpu.Quantities[i]))
	}

	for i := range c.Exporter.Prometheus.DebugCollectors {
		c.Exporter.Prometheus.DebugCollectors[i] = strings.TrimSpace(c.Exporter.Prometheus.DebugCollectors[i])
	}

	for i := range c.Dev.FakeReader.Tags {
		c.Dev.FakeReader.Tags[i] = strings.TrimSpace(c.Dev.FakeReader.Tags[i])
	}
}

// Validate checks for configuration errors
func (c *Config) Validate(skips ...SkipValidation) error {
	validationSkipped := make(map[SkipValidation]bool, len(skips))
	for _, v := range skips {
		validationSkipped[v] = true
	}
	var errs []string
	{ // log level

		validLogLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}

		// Validate logging settings
		if _, valid := validLogLevels[c.Log.Level]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
		}
	}
	{ // log format
		validFormats := map[string]bool{
			"text": true,
			"json": true,
		}
		if _, valid := validFormats[c.Log.Format]; !valid {
			errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
		}
	}

	{ // Validate host settings
		if _, skip := validationSkipped[SkipHostValidation]; !skip {
			if err := canReadDir(c.Host.SysFS); err != nil {
				errs = append(errs, fmt.Sprintf("invalid sysfs path: %s: %s ", c.Host.SysFS, err.Error()))
			}
			if err := canReadDir(c.Host.ProcFS); err != nil {
				errs = append(errs, fmt.Sprintf("invalid procfs path: %s: %s ", c.Host.ProcFS, err.Error()))
			}
		}
	}
	{ // Tracker cadence
		if c.Tracker.Interval <= 0 {
			errs = append(errs, fmt.Sprintf("invalid tracker interval: %s must be positive", c.Tracker.Interval))
		}
		if c.Tracker.WriteInterval < 0 {
			errs = append(errs, fmt.Sprintf("invalid tracker write interval: %s can't be negative", c.Tracker.WriteInterval))
		}
	}
	{ // Readers
		if !ptr.Deref(c.Rapl.Enabled, false) &&
			!ptr.Deref(c.Gpu.Enabled, false) &&
			!ptr.Deref(c.Dev.FakeReader.Enabled, false) {
			errs = append(errs, "at least one reader must be enabled")
		}

		for _, q := range c.Gpu.Quantities {
			if !validQuantities[q] {
				errs = append(errs, fmt.Sprintf("invalid gpu quantity: %q", q))
			}
		}
	}
	{ // Web config file
		if c.Web.Config != "" {
			if err := canReadFile(c.Web.Config); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web config file. path: %q: %s", c.Web.Config, err.Error()))
			}
		}
	}
	{ // Web listen addresses
		if len(c.Web.ListenAddresses) == 0 {
			errs = append(errs, "at least one web listen address must be specified")
		}
		for _, addr := range c.Web.ListenAddresses {
			if addr == "" {
				errs = append(errs, "web listen address cannot be empty")
				continue
			}
			if err := validateListenAddress(addr); err != nil {
				errs = append(errs, fmt.Sprintf("invalid web listen address %q: %s", addr, err.Error()))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}

	return nil
}

func canReadDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()

	_, err = f.ReadDir(1)
	if err != nil {
		return err
	}

	return nil
}

func canReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()
	buf := make([]byte, 8)
	_, err = f.Read(buf)
	if err != nil {
		return err
	}

	return nil
}

func validateListenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address cannot be empty")
	}

	// Use Go's standard library to parse host:port
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address format: %w", err)
	}

	// Validate port (host can be empty for listening on all interfaces)
	if err := validatePort(port); err != nil {
		return err
	}

	return nil
}

func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be numeric, got %s", port)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", portNum)
	}
	return nil
}

func (c *Config) String() string {
	bytes, err := yaml.Marshal(c)
	if err == nil {
		return string(bytes)
	}
	// NOTE:  this code path should not happen but if it does (i.e if yaml marshal) fails
	// for some reason, manually build the string
	return c.manualString()
}

func (c *Config) manualString() string {
	cfgs := []struct {
		Name  string
		Value string
	}{
		{LogLevelFlag, c.Log.Level},
		{LogFormatFlag, c.Log.Format},
		{HostSysFSFlag, c.Host.SysFS},
		{HostProcFSFlag, c.Host.ProcFS},
		{TrackerIntervalFlag, c.Tracker.Interval.String()},
		{TrackerWriteIntervalFlag, c.Tracker.WriteInterval.String()},
		{RaplEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Rapl.Enabled, false))},
		{RaplZones, strings.Join(c.Rapl.Zones, ", ")},
		{GpuEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Gpu.Enabled, false))},
		{GpuQuantitiesFlag, strings.Join(c.Gpu.Quantities, ", ")},
		{OutputDirFlag, c.Output.Dir},
		{ExporterStdoutEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Stdout.Enabled, false))},
		{ExporterPrometheusEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Prometheus.Enabled, false))},
		{ExporterPrometheusDebugCollectors, strings.Join(c.Exporter.Prometheus.DebugCollectors, ", ")},
		{pprofEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Debug.Pprof.Enabled, false))},
		{WebConfigFlag, c.Web.Config},
	}
	sb := strings.Builder{}

	for _, cfg := range cfgs {
		sb.WriteString(cfg.Name)
		sb.WriteString(": ")
		sb.WriteString(cfg.Value)
		sb.WriteString("\n")
	}

	return sb.String()
}