// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sustainable-computing-io/wattmon/internal/device/nvidia"
)

// gpuInfoCollector exports GPU device info metrics.
type gpuInfoCollector struct {
	devices []nvidia.GPUDevice
	desc    *prom.Desc
}

var _ prom.Collector = (*gpuInfoCollector)(nil)

// NewGPUInfoCollector creates a gpuInfoCollector that exports GPU device information.
func NewGPUInfoCollector(devices []nvidia.GPUDevice) *gpuInfoCollector {
	return &gpuInfoCollector{
		devices: devices,
		desc: prom.NewDesc(
			prom.BuildFQName(namespace, "node", "gpu_info"),
			"GPU device information for mapping index to UUID/name",
			[]string{"gpu", "gpu_uuid", "gpu_name", "vendor"},
			nil,
		),
	}
}

func (c *gpuInfoCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.desc
}

func (c *gpuInfoCollector) Collect(ch chan<- prom.Metric) {
	for _, d := range c.devices {
		ch <- prom.MustNewConstMetric(
			c.desc,
			prom.GaugeValue,
			1,
			fmt.Sprintf("%d", d.Index),
			d.UUID,
			d.Name,
			"nvidia",
		)
	}
}
