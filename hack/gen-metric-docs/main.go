// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sustainable-computing-io/wattmon/internal/exporter/prometheus/collector"
)

// MetricInfo holds information about a Prometheus metric
type MetricInfo struct {
	Name        string
	Type        string
	Description string
	Labels      []string
	ConstLabels map[string]string
}

var (
	fqNameRegex         = regexp.MustCompile(`fqName: "([^"]+)"`)
	helpRegex           = regexp.MustCompile(`help: "([^"]+)"`)
	variableLabelsRegex = regexp.MustCompile(`variableLabels: \{([^}]*)\}`)
	constLabelsRegex    = regexp.MustCompile(`constLabels: \{([^}]*)\}`)
	labelPairRegex      = regexp.MustCompile(`(\w+)="([^"]*)"`)
)

// extractMetricsInfo pulls metric metadata out of a collector's Describe
// output. prometheus.Desc keeps its fields private, so the parsing goes
// through Desc.String().
func extractMetricsInfo(c prometheus.Collector) []MetricInfo {
	ch := make(chan *prometheus.Desc, 100)
	c.Describe(ch)
	close(ch)

	var metrics []MetricInfo
	for desc := range ch {
		descStr := desc.String()
		fqNameMatch := fqNameRegex.FindStringSubmatch(descStr)
		if len(fqNameMatch) < 2 {
			fmt.Printf("Warning: Could not parse fqName from: %s\n", descStr)
			continue
		}
		name := fqNameMatch[1]

		helpMatch := helpRegex.FindStringSubmatch(descStr)
		if len(helpMatch) < 2 {
			fmt.Printf("Warning: Could not parse help from: %s\n", descStr)
			continue
		}
		help := helpMatch[1]

		var labels []string
		if m := variableLabelsRegex.FindStringSubmatch(descStr); len(m) >= 2 && m[1] != "" {
			labels = strings.Split(m[1], ",")
			for i, label := range labels {
				labels[i] = strings.TrimSpace(label)
			}
		}

		constLabels := make(map[string]string)
		if m := constLabelsRegex.FindStringSubmatch(descStr); len(m) >= 2 && m[1] != "" {
			for _, pair := range labelPairRegex.FindAllStringSubmatch(m[1], -1) {
				if len(pair) >= 3 {
					constLabels[pair[1]] = pair[2]
				}
			}
		}

		metricType := "GAUGE"
		if strings.HasSuffix(name, "_total") {
			metricType = "COUNTER"
		}

		metrics = append(metrics, MetricInfo{
			Name:        name,
			Type:        metricType,
			Description: help,
			Labels:      labels,
			ConstLabels: constLabels,
		})
	}

	return metrics
}

// generateMarkdown generates Markdown documentation from metric information
func generateMarkdown(metrics []MetricInfo) string {
	var md strings.Builder
	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Name < metrics[j].Name
	})

	md.WriteString("# Wattmon Metrics\n\n")
	md.WriteString("This document describes the metrics Wattmon exports about the energy, power and temperature of the devices it samples.\n\n")
	md.WriteString("## Overview\n\n")
	md.WriteString("Wattmon exports metrics in Prometheus format that can be scraped by Prometheus or other compatible monitoring systems.\n\n")
	md.WriteString("### Metric Types\n\n")
	md.WriteString("- **COUNTER**: A cumulative metric that only increases over time\n")
	md.WriteString("- **GAUGE**: A metric that can increase and decrease\n\n")
	md.WriteString("## Metrics Reference\n\n")

	readingMetrics := []MetricInfo{}
	nodeMetrics := []MetricInfo{}
	trackerMetrics := []MetricInfo{}
	overheadMetrics := []MetricInfo{}
	otherMetrics := []MetricInfo{}

	for _, metric := range metrics {
		switch {
		case strings.HasPrefix(metric.Name, "wattmon_energy_"),
			strings.HasPrefix(metric.Name, "wattmon_power_"),
			strings.HasPrefix(metric.Name, "wattmon_temperature_"):
			readingMetrics = append(readingMetrics, metric)
		case strings.HasPrefix(metric.Name, "wattmon_node_"):
			nodeMetrics = append(nodeMetrics, metric)
		case strings.HasPrefix(metric.Name, "wattmon_tracker_"):
			trackerMetrics = append(trackerMetrics, metric)
		case strings.HasPrefix(metric.Name, "wattmon_self_"):
			overheadMetrics = append(overheadMetrics, metric)
		default:
			otherMetrics = append(otherMetrics, metric)
		}
	}

	if len(readingMetrics) > 0 {
		md.WriteString("### Reading Metrics\n\n")
		md.WriteString("The newest sample of every monitored domain, converted to SI units.\n\n")
		writeMetricsSection(&md, readingMetrics)
	}
	if len(nodeMetrics) > 0 {
		md.WriteString("### Node Metrics\n\n")
		md.WriteString("Static information about the host and the devices discovered on it.\n\n")
		writeMetricsSection(&md, nodeMetrics)
	}
	if len(trackerMetrics) > 0 {
		md.WriteString("### Tracker Metrics\n\n")
		md.WriteString("Sampling statistics per reader: read counts, read latency and buffer fill.\n\n")
		writeMetricsSection(&md, trackerMetrics)
	}
	if len(overheadMetrics) > 0 {
		md.WriteString("### Overhead Metrics\n\n")
		md.WriteString("Resource usage of the sampler process itself.\n\n")
		writeMetricsSection(&md, overheadMetrics)
	}
	if len(otherMetrics) > 0 {
		md.WriteString("### Other Metrics\n\n")
		md.WriteString("Additional metrics provided by Wattmon.\n\n")
		writeMetricsSection(&md, otherMetrics)
	}

	md.WriteString("---\n\n")
	md.WriteString("This documentation was automatically generated by the gen-metric-docs tool.")
	md.WriteString("\n")
	return md.String()
}

// writeMetricsSection writes a section of metrics to the markdown builder
func writeMetricsSection(md *strings.Builder, metrics []MetricInfo) {
	for _, metric := range metrics {
		fmt.Fprintf(md, "#### %s\n\n", metric.Name)
		fmt.Fprintf(md, "- **Type**: %s\n", metric.Type)
		fmt.Fprintf(md, "- **Description**: %s\n", metric.Description)
		if len(metric.Labels) > 0 {
			md.WriteString("- **Labels**:\n")
			for _, label := range metric.Labels {
				fmt.Fprintf(md, "  - `%s`\n", label)
			}
		}
		if len(metric.ConstLabels) > 0 {
			md.WriteString("- **Constant Labels**:\n")
			keys := make([]string, 0, len(metric.ConstLabels))
			for key := range metric.ConstLabels {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(md, "  - `%s`\n", key)
			}
		}
		md.WriteString("\n")
	}
}

// createCollectors instantiates every collector the exporter can
// register. Collectors whose host paths are unavailable are skipped
// with a warning so docs can still be generated on any machine.
func createCollectors() map[string]prometheus.Collector {
	collectors := map[string]prometheus.Collector{
		"build_info":    collector.NewBuildInfoCollector(),
		"reading":       collector.NewReadingCollector(nil),
		"tracker_stats": collector.NewTrackerStatsCollector(nil),
		"gpu_info":      collector.NewGPUInfoCollector(nil),
	}

	if c, err := collector.NewCPUInfoCollector("/proc"); err == nil {
		collectors["cpu_info"] = c
	} else {
		fmt.Printf("Warning: skipping cpu_info collector: %v\n", err)
	}
	if c, err := collector.NewOverheadCollector("/proc"); err == nil {
		collectors["overhead"] = c
	} else {
		fmt.Printf("Warning: skipping overhead collector: %v\n", err)
	}
	if c, err := collector.NewEnergyZoneCollector("/sys"); err == nil {
		collectors["rapl_zone"] = c
	} else {
		fmt.Printf("Warning: skipping rapl_zone collector: %v\n", err)
	}

	return collectors
}

func main() {
	outputPath := flag.String("output", "metrics.md", "Path to output Markdown file")
	flag.Parse()

	collectors := createCollectors()

	names := make([]string, 0, len(collectors))
	for name := range collectors {
		names = append(names, name)
	}
	sort.Strings(names)

	var allMetrics []MetricInfo
	for _, name := range names {
		metrics := extractMetricsInfo(collectors[name])
		fmt.Printf("Extracted %d metrics from the %s collector\n", len(metrics), name)
		allMetrics = append(allMetrics, metrics...)
	}

	markdown := generateMarkdown(allMetrics)

	outputDir := filepath.Dir(*outputPath)
	if outputDir != "" && outputDir != "." {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			fmt.Printf("Failed to create output directory: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.WriteFile(*outputPath, []byte(markdown), 0644); err != nil {
		fmt.Printf("Failed to write markdown file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Metrics documentation written to %s\n", *outputPath)
}
