// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/procfs"
)

// selfFS reads the sampler's own procfs entry.
type selfFS interface {
	SelfStat() (procfs.ProcStat, error)
	SelfFDLen() (int, error)
}

type realSelfFS struct {
	fs procfs.FS
}

func (r *realSelfFS) SelfStat() (procfs.ProcStat, error) {
	p, err := r.fs.Self()
	if err != nil {
		return procfs.ProcStat{}, err
	}
	return p.Stat()
}

func (r *realSelfFS) SelfFDLen() (int, error) {
	p, err := r.fs.Self()
	if err != nil {
		return 0, err
	}
	return p.FileDescriptorsLen()
}

func newSelfFS(mountPoint string) (selfFS, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, err
	}
	return &realSelfFS{fs: fs}, nil
}

// overheadCollector exports the resource cost of the sampler itself,
// the footprint it adds to the host it measures.
type overheadCollector struct {
	sync.Mutex

	fs      selfFS
	cpuDesc *prom.Desc
	rssDesc *prom.Desc
	fdsDesc *prom.Desc
}

var _ prom.Collector = (*overheadCollector)(nil)

// NewOverheadCollector creates an overheadCollector using a procfs mount path.
func NewOverheadCollector(procPath string) (*overheadCollector, error) {
	fs, err := newSelfFS(procPath)
	if err != nil {
		return nil, fmt.Errorf("creating procfs failed: %w", err)
	}
	return newOverheadCollectorWithFS(fs), nil
}

// newOverheadCollectorWithFS injects a selfFS interface
func newOverheadCollectorWithFS(fs selfFS) *overheadCollector {
	return &overheadCollector{
		fs: fs,
		cpuDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "self", "cpu_seconds_total"),
			"CPU time consumed by the sampler process",
			nil, nil,
		),
		rssDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "self", "resident_memory_bytes"),
			"Resident memory of the sampler process",
			nil, nil,
		),
		fdsDesc: prom.NewDesc(
			prom.BuildFQName(namespace, "self", "open_fds"),
			"File descriptors held open by the sampler process",
			nil, nil,
		),
	}
}

func (c *overheadCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.cpuDesc
	ch <- c.rssDesc
	ch <- c.fdsDesc
}

func (c *overheadCollector) Collect(ch chan<- prom.Metric) {
	c.Lock()
	defer c.Unlock()

	stat, err := c.fs.SelfStat()
	if err != nil {
		return
	}
	ch <- prom.MustNewConstMetric(c.cpuDesc, prom.CounterValue, stat.CPUTime())
	ch <- prom.MustNewConstMetric(c.rssDesc, prom.GaugeValue, float64(stat.ResidentMemory()))

	fds, err := c.fs.SelfFDLen()
	if err != nil {
		return
	}
	ch <- prom.MustNewConstMetric(c.fdsDesc, prom.GaugeValue, float64(fds))
}
