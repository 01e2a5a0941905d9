// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"

	"github.com/olekukonko/tablewriter"

	"github.com/sustainable-computing-io/wattmon/config"
	"github.com/sustainable-computing-io/wattmon/internal/device"
	"github.com/sustainable-computing-io/wattmon/internal/device/nvidia"
)

// printInventory constructs the configured readers, prints one row per
// tag and quantity, and closes the readers again without taking a
// sample.
func printInventory(out io.Writer, logger *slog.Logger, cfg *config.Config) error {
	readers, _, _, err := createReaders(logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	rows := [][]string{}
	for _, r := range readers {
		sources := readerSources(r)
		for _, q := range r.Quantities() {
			unit := r.Unit(q)
			for i, tag := range r.Tags() {
				source := "-"
				if i < len(sources) {
					source = sources[i]
				}
				rows = append(rows, []string{r.Name(), tag, string(q), unit.String(), source})
			}
		}
	}

	table := tablewriter.NewWriter(out)
	table.Header([]string{"Reader", "Tag", "Quantity", "Unit", "Source"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// readerSources maps each tag to the hardware behind it where a reader
// can tell: RAPL zones report their sysfs path, GPUs their UUID.
func readerSources(r device.Reader) []string {
	switch r := r.(type) {
	case *device.RaplReader:
		return r.ZonePaths()
	case *nvidia.NVMLReader:
		devices := r.Devices()
		sources := make([]string, len(devices))
		for i, d := range devices {
			sources[i] = d.UUID
		}
		return sources
	}
	return nil
}
