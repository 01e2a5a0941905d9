// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"

	"github.com/sustainable-computing-io/wattmon/internal/device/nvidia"
)

// sampleGPUDevices returns sample GPU devices for testing.
func sampleGPUDevices() []nvidia.GPUDevice {
	return []nvidia.GPUDevice{
		{
			Index: 0,
			UUID:  "GPU-12345678-1234-1234-1234-123456789abc",
			Name:  "NVIDIA A100-SXM4-40GB",
		},
		{
			Index: 1,
			UUID:  "GPU-87654321-4321-4321-4321-cba987654321",
			Name:  "NVIDIA A100-SXM4-40GB",
		},
	}
}

func TestNewGPUInfoCollector(t *testing.T) {
	collector := NewGPUInfoCollector(sampleGPUDevices())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.desc)
	assert.Contains(t, collector.desc.String(), "wattmon_node_gpu_info")
	assert.Contains(t, collector.desc.String(), "variableLabels: {gpu,gpu_uuid,gpu_name,vendor}")
}

func TestGPUInfoCollector_Describe(t *testing.T) {
	collector := NewGPUInfoCollector(sampleGPUDevices())

	ch := make(chan *prometheus.Desc, 1)
	collector.Describe(ch)
	close(ch)

	desc := <-ch
	assert.Equal(t, collector.desc, desc)
}

func TestGPUInfoCollector_Collect_Success(t *testing.T) {
	collector := NewGPUInfoCollector(sampleGPUDevices())

	ch := make(chan prometheus.Metric, 10)
	collector.Collect(ch)
	close(ch)

	var metrics []prometheus.Metric
	for m := range ch {
		metrics = append(metrics, m)
	}

	assert.Len(t, metrics, 2, "expected two GPU info metrics")

	for i, m := range metrics {
		dtoMetric := &dto.Metric{}
		err := m.Write(dtoMetric)
		assert.NoError(t, err)
		assert.NotNil(t, dtoMetric.Gauge)
		assert.NotNil(t, dtoMetric.Gauge.Value)
		assert.Equal(t, 1.0, *dtoMetric.Gauge.Value)

		labels := make(map[string]string)
		for _, l := range dtoMetric.Label {
			labels[*l.Name] = *l.Value
		}

		expected := sampleGPUDevices()[i]
		assert.Equal(t, expected.UUID, labels["gpu_uuid"])
		assert.Equal(t, expected.Name, labels["gpu_name"])
		assert.Equal(t, "nvidia", labels["vendor"])
	}
}

func TestGPUInfoCollector_Collect_NoGPUs(t *testing.T) {
	collector := NewGPUInfoCollector(nil)

	ch := make(chan prometheus.Metric, 10)
	collector.Collect(ch)
	close(ch)

	var metrics []prometheus.Metric
	for m := range ch {
		metrics = append(metrics, m)
	}

	assert.Len(t, metrics, 0, "expected no metrics when no GPUs")
}

func TestGPUInfoCollector_Collect_Concurrency(t *testing.T) {
	collector := NewGPUInfoCollector(sampleGPUDevices())

	const numGoroutines = 10
	var wg sync.WaitGroup
	ch := make(chan prometheus.Metric, numGoroutines*len(sampleGPUDevices()))

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.Collect(ch)
		}()
	}

	wg.Wait()
	close(ch)

	var metrics []prometheus.Metric
	for m := range ch {
		metrics = append(metrics, m)
	}

	expectedMetrics := numGoroutines * len(sampleGPUDevices())
	assert.Equal(t, expectedMetrics, len(metrics), "expected metrics from all goroutines")
}
