// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustainable-computing-io/wattmon/internal/exporter/prometheus/collector"
)

// MockCollector implements prometheus.Collector for testing
type MockCollector struct {
	descs []*prometheus.Desc
}

func (c *MockCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.descs {
		ch <- desc
	}
}

func (c *MockCollector) Collect(ch chan<- prometheus.Metric) {
	// Empty implementation for testing
}

func TestExtractMetricsInfo(t *testing.T) {
	tests := []struct {
		name            string
		descs           []*prometheus.Desc
		expectedMetrics []MetricInfo
	}{
		{
			name: "ValidMetrics",
			descs: []*prometheus.Desc{
				prometheus.NewDesc("test_counter_total", "Test counter metric", []string{"label1", "label2"}, nil),
				prometheus.NewDesc("test_gauge", "Test gauge metric", []string{"label3"}, nil),
				prometheus.NewDesc("test_no_labels", "Test metric without labels", nil, nil),
			},
			expectedMetrics: []MetricInfo{
				{
					Name:        "test_counter_total",
					Type:        "COUNTER",
					Description: "Test counter metric",
					Labels:      []string{"label1", "label2"},
					ConstLabels: map[string]string{},
				},
				{
					Name:        "test_gauge",
					Type:        "GAUGE",
					Description: "Test gauge metric",
					Labels:      []string{"label3"},
					ConstLabels: map[string]string{},
				},
				{
					Name:        "test_no_labels",
					Type:        "GAUGE",
					Description: "Test metric without labels",
					Labels:      nil,
					ConstLabels: map[string]string{},
				},
			},
		},
		{
			name: "MetricsWithConstLabels",
			descs: []*prometheus.Desc{
				prometheus.NewDesc("test_const_labels", "Test metric with constant labels",
					[]string{"var_label"}, prometheus.Labels{"node_name": "test-node", "region": "us-west-1"}),
			},
			expectedMetrics: []MetricInfo{
				{
					Name:        "test_const_labels",
					Type:        "GAUGE",
					Description: "Test metric with constant labels",
					Labels:      []string{"var_label"},
					ConstLabels: map[string]string{"node_name": "test-node", "region": "us-west-1"},
				},
			},
		},
		{
			name:            "EmptyCollector",
			descs:           []*prometheus.Desc{},
			expectedMetrics: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockCollector := &MockCollector{descs: tt.descs}
			assert.Equal(t, tt.expectedMetrics, extractMetricsInfo(mockCollector))
		})
	}
}

func TestExtractMetricsInfo_RealCollectors(t *testing.T) {
	metrics := extractMetricsInfo(collector.NewReadingCollector(nil))
	require.Len(t, metrics, 3)

	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{
		"wattmon_energy_joules_total",
		"wattmon_power_watts",
		"wattmon_temperature_celsius",
	}, names)

	for _, m := range metrics {
		assert.Equal(t, []string{"reader", "tag"}, m.Labels)
		assert.NotEmpty(t, m.Description)
	}

	buildInfo := extractMetricsInfo(collector.NewBuildInfoCollector())
	require.Len(t, buildInfo, 1)
	assert.Equal(t, "wattmon_build_info", buildInfo[0].Name)
}

func TestGenerateMarkdown(t *testing.T) {
	metrics := []MetricInfo{
		{
			Name:        "wattmon_energy_joules_total",
			Type:        "COUNTER",
			Description: "Cumulative energy",
			Labels:      []string{"reader", "tag"},
		},
		{
			Name:        "wattmon_node_cpu_info",
			Type:        "GAUGE",
			Description: "CPU information",
			Labels:      []string{"processor"},
		},
		{
			Name:        "wattmon_tracker_reads_total",
			Type:        "COUNTER",
			Description: "Completed reads",
			Labels:      []string{"reader"},
		},
		{
			Name:        "wattmon_self_open_fds",
			Type:        "GAUGE",
			Description: "Open file descriptors",
		},
		{
			Name:        "wattmon_build_info",
			Type:        "GAUGE",
			Description: "Build information",
		},
	}

	md := generateMarkdown(metrics)

	assert.Contains(t, md, "# Wattmon Metrics")
	assert.Contains(t, md, "### Reading Metrics")
	assert.Contains(t, md, "### Node Metrics")
	assert.Contains(t, md, "### Tracker Metrics")
	assert.Contains(t, md, "### Overhead Metrics")
	assert.Contains(t, md, "### Other Metrics")
	assert.Contains(t, md, "#### wattmon_energy_joules_total")
	assert.Contains(t, md, "- **Type**: COUNTER")
	assert.Contains(t, md, "  - `reader`")

	// sections follow the fixed order regardless of input order
	readingIdx := strings.Index(md, "### Reading Metrics")
	nodeIdx := strings.Index(md, "### Node Metrics")
	otherIdx := strings.Index(md, "### Other Metrics")
	assert.Less(t, readingIdx, nodeIdx)
	assert.Less(t, nodeIdx, otherIdx)
}

func TestGenerateMarkdown_EmptySections(t *testing.T) {
	md := generateMarkdown([]MetricInfo{{
		Name:        "wattmon_build_info",
		Type:        "GAUGE",
		Description: "Build information",
	}})

	assert.NotContains(t, md, "### Reading Metrics")
	assert.NotContains(t, md, "### Node Metrics")
	assert.Contains(t, md, "### Other Metrics")
}
