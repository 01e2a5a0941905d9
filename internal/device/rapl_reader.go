// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// raplSubsystemPath is the flat class tree of powercap zones,
	// relative to the sysfs mount point.
	raplSubsystemPath = "class/powercap/intel-rapl/subsystem"

	unknownTag = "unknown"
)

var (
	childZoneRe      = regexp.MustCompile(`:\d+:\d+$`)
	zoneSuffixRe     = regexp.MustCompile(`:\d+$`)
	trailingDigitsRe = regexp.MustCompile(`\d+$`)
)

// raplZone is one powercap domain: an open handle to its energy_uj
// counter, the counter's wrap range and the derived domain name.
type raplZone struct {
	path      string
	domain    string
	file      *os.File
	maxEnergy float64 // microjoules, 0 when the range file is unreadable
}

// RaplReader reads cumulative energy counters from every powercap zone
// found under a sysfs directory. Zones are sorted by path so tags keep
// the same order across runs.
type RaplReader struct {
	logger   *slog.Logger
	raplPath string
	filter   []string
	zones    []*raplZone
	tags     []string
}

var _ Reader = (*RaplReader)(nil)

type RaplOptFn func(*raplOpts)

type raplOpts struct {
	logger   *slog.Logger
	raplPath string
	filter   []string
}

// WithRaplLogger sets the logger for the reader.
func WithRaplLogger(logger *slog.Logger) RaplOptFn {
	return func(o *raplOpts) {
		o.logger = logger
	}
}

// WithRaplSysFS points zone discovery at the standard powercap tree
// under the given sysfs mount point.
func WithRaplSysFS(sysfs string) RaplOptFn {
	return func(o *raplOpts) {
		o.raplPath = filepath.Join(sysfs, raplSubsystemPath)
	}
}

// WithRaplPath points zone discovery at an arbitrary directory.
func WithRaplPath(path string) RaplOptFn {
	return func(o *raplOpts) {
		o.raplPath = path
	}
}

// WithRaplZoneFilter restricts the reader to zones whose domain name is
// in names. An empty filter keeps every zone.
func WithRaplZoneFilter(names []string) RaplOptFn {
	return func(o *raplOpts) {
		o.filter = names
	}
}

func defaultRaplOpts() raplOpts {
	return raplOpts{
		logger:   slog.Default(),
		raplPath: filepath.Join("/sys", raplSubsystemPath),
	}
}

// NewRaplReader discovers powercap zones and opens their counters. It
// fails when the directory yields no readable zones, which usually
// means the platform has no RAPL support or the process lacks access.
func NewRaplReader(opts ...RaplOptFn) (*RaplReader, error) {
	opt := defaultRaplOpts()
	for _, apply := range opts {
		apply(&opt)
	}

	r := &RaplReader{
		logger:   opt.logger.With("service", "rapl"),
		raplPath: opt.raplPath,
		filter:   opt.filter,
	}

	for _, path := range discoverZonePaths(r.raplPath) {
		zone := newRaplZone(path, r.logger)
		if len(r.filter) > 0 && !slices.Contains(r.filter, zone.domain) {
			r.logger.Debug("skipping zone excluded by filter", "zone", zone.domain, "path", path)
			zone.close()
			continue
		}
		r.zones = append(r.zones, zone)
	}
	if len(r.zones) == 0 {
		return nil, fmt.Errorf("no RAPL zones found in %s", r.raplPath)
	}

	// Domains whose name could not be determined get a synthetic tag,
	// numbered by their position among the unknown-named zones.
	unknown := 0
	r.tags = make([]string, 0, len(r.zones))
	for _, zone := range r.zones {
		tag := zone.domain
		if strings.Contains(tag, unknownTag) {
			tag = fmt.Sprintf("%s-%d", unknownTag, unknown)
			unknown++
		}
		r.tags = append(r.tags, tag)
	}

	r.logger.Info("Discovered RAPL zones", "path", r.raplPath, "zones", len(r.zones), "tags", r.tags)
	return r, nil
}

// discoverZonePaths walks root and returns every directory exposing an
// energy_uj counter, sorted by path. Symlinked entries are inspected
// but not descended into, so the walk terminates on the flat class
// tree where each zone is a symlink, and still finds nested child
// domains when pointed at the device tree itself.
func discoverZonePaths(root string) []string {
	var zones []string

	var walk func(dir string)
	walk = func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			info, err := os.Stat(path) // follows symlinks
			if err != nil || !info.IsDir() {
				continue
			}
			if _, err := os.Stat(filepath.Join(path, "energy_uj")); err == nil {
				zones = append(zones, path)
			}
			if entry.IsDir() {
				walk(path)
			}
		}
	}
	walk(root)

	slices.Sort(zones)
	return zones
}

func newRaplZone(path string, logger *slog.Logger) *raplZone {
	zone := &raplZone{
		path:   path,
		domain: raplDomainName(path),
	}

	if s, err := sysReadFile(filepath.Join(path, "max_energy_range_uj")); err != nil {
		logger.Warn("max energy range is unreadable, wraparound correction disabled",
			"zone", path, "error", err)
	} else if maxEnergy, err := strconv.ParseFloat(s, 64); err != nil {
		logger.Warn("max energy range is malformed, wraparound correction disabled",
			"zone", path, "error", err)
	} else {
		zone.maxEnergy = maxEnergy
	}

	file, err := os.Open(filepath.Join(path, "energy_uj"))
	if err != nil {
		logger.Warn("energy counter could not be opened", "zone", path, "error", err)
	}
	zone.file = file

	return zone
}

// raplDomainName derives a zone's hierarchical domain name. Child zones
// (paths ending in :N:M) are prefixed with their parent's name, and a
// package-N name becomes cpu-N. When the name file is unreadable the
// trailing digits of the path stand in, or unknownTag if there are
// none.
func raplDomainName(path string) string {
	prefix := ""
	if childZoneRe.MatchString(path) {
		parent := zoneSuffixRe.ReplaceAllString(path, "")
		prefix = raplDomainName(parent) + "-"
	}

	name, err := sysReadFile(filepath.Join(path, "name"))
	if err != nil {
		if digits := trailingDigitsRe.FindString(path); digits != "" {
			return prefix + digits
		}
		return prefix + unknownTag
	}

	if rest, ok := strings.CutPrefix(name, "package-"); ok {
		name = "cpu-" + rest
	}
	return prefix + name
}

func (z *raplZone) readEnergy(logger *slog.Logger) float64 {
	if z.file == nil {
		logger.Error("energy counter is not open", "zone", z.path)
		return 0
	}

	if _, err := z.file.Seek(0, io.SeekStart); err != nil {
		logger.Error("failed to rewind energy counter", "zone", z.path, "error", err)
		return 0
	}
	buf := make([]byte, 64)
	n, err := z.file.Read(buf)
	if err != nil && err != io.EOF {
		logger.Error("failed to read energy counter", "zone", z.path, "error", err)
		return 0
	}

	energy, err := strconv.ParseFloat(strings.TrimSpace(string(buf[:n])), 64)
	if err != nil {
		logger.Error("energy counter is malformed", "zone", z.path, "error", err)
		return 0
	}
	return energy
}

func (z *raplZone) close() {
	if z.file != nil {
		z.file.Close()
		z.file = nil
	}
}

func (r *RaplReader) Name() string {
	return "rapl"
}

func (r *RaplReader) Tags() []string {
	return r.tags
}

func (r *RaplReader) Quantities() []Quantity {
	return []Quantity{Energy}
}

func (r *RaplReader) Unit(q Quantity) Unit {
	if q == Energy {
		return Microjoule
	}
	r.logger.Warn("unsupported quantity requested", "quantity", q, "supported", []Quantity{Energy})
	return NoUnit
}

func (r *RaplReader) Read() []float64 {
	values := make([]float64, len(r.zones))
	for i, zone := range r.zones {
		values[i] = zone.readEnergy(r.logger)
	}
	return values
}

// EnergyDeltas corrects counter wraparound per zone: a negative delta
// means the counter wrapped, so its zone's maximum range is added back.
func (r *RaplReader) EnergyDeltas(series [][]float64) [][]float64 {
	deltas := Deltas(series)
	for _, row := range deltas {
		for j := range row {
			if row[j] < 0 && j < len(r.zones) {
				row[j] += r.zones[j].maxEnergy
			}
		}
	}
	return deltas
}

func (r *RaplReader) Close() error {
	for _, zone := range r.zones {
		zone.close()
	}
	return nil
}

// ZonePaths returns the sysfs path backing each tag, for diagnostics.
func (r *RaplReader) ZonePaths() []string {
	paths := make([]string, len(r.zones))
	for i, zone := range r.zones {
		paths[i] = zone.path
	}
	return paths
}

// sysReadFile reads a sysfs attribute with a single read syscall.
// os.ReadFile issues a stat and repeated reads, which some drivers
// answer with EAGAIN.
func sysReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b := make([]byte, 128)
	n, err := unix.Read(int(f.Fd()), b)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b[:n])), nil
}
