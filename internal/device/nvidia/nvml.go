// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

// Package nvidia implements a device.Reader that samples NVIDIA GPUs
// through NVML.
package nvidia

import (
	"fmt"
	"log/slog"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/sustainable-computing-io/wattmon/internal/device"
)

// nvmlUnits maps each quantity NVML can serve to the unit its value is
// reported in. Power is converted from the driver's milliwatts at read
// time so the value matches the declared unit.
var nvmlUnits = map[device.Quantity]device.Unit{
	device.Energy:      device.Millijoule,
	device.Temperature: device.Celsius,
	device.Power:       device.Watt,
}

// defaultQuantities is what an empty request expands to.
var defaultQuantities = []device.Quantity{device.Energy, device.Temperature, device.Power}

// NVMLReader polls energy, temperature and power from every NVIDIA GPU
// visible to NVML. One tag per device, gpu-<index>, where index is the
// NVML device index.
type NVMLReader struct {
	logger     *slog.Logger
	lib        nvmlLib
	quantities []device.Quantity
	devices    []gpuDevice
	tags       []string
	closed     bool
}

// gpuDevice holds a persistent handle to one enumerated GPU.
type gpuDevice struct {
	index  int
	handle nvmlDeviceHandle
	uuid   string
	name   string
}

var _ device.Reader = (*NVMLReader)(nil)

type OptFn func(*nvmlOpts)

type nvmlOpts struct {
	logger  *slog.Logger
	lenient bool
}

func WithLogger(logger *slog.Logger) OptFn {
	return func(o *nvmlOpts) {
		o.logger = logger
	}
}

// WithLenientQuantities makes the constructor log and skip unsupported
// quantities instead of failing.
func WithLenientQuantities() OptFn {
	return func(o *nvmlOpts) {
		o.lenient = true
	}
}

// NewNVMLReader initializes an NVML session and enumerates all GPUs.
// An empty quantity list requests everything NVML can serve.
func NewNVMLReader(quantities []device.Quantity, opts ...OptFn) (*NVMLReader, error) {
	return newNVMLReaderWithLib(newRealNvmlLib(), quantities, opts...)
}

func newNVMLReaderWithLib(lib nvmlLib, quantities []device.Quantity, opts ...OptFn) (*NVMLReader, error) {
	opt := nvmlOpts{
		logger: slog.Default(),
	}
	for _, apply := range opts {
		apply(&opt)
	}

	r := &NVMLReader{
		logger: opt.logger.With("service", "nvml"),
		lib:    lib,
	}

	if len(quantities) == 0 {
		quantities = defaultQuantities
	}
	for _, q := range quantities {
		if _, ok := nvmlUnits[q]; !ok {
			if !opt.lenient {
				return nil, fmt.Errorf("quantity %s is not provided by NVML", q)
			}
			r.logger.Warn("skipping unsupported quantity", "quantity", q)
			continue
		}
		r.quantities = append(r.quantities, q)
	}
	if len(r.quantities) == 0 {
		return nil, fmt.Errorf("no supported quantities requested")
	}

	if ret := lib.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("NVML init failed: %s", lib.ErrorString(ret))
	}

	count, ret := lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		_ = lib.Shutdown()
		return nil, fmt.Errorf("failed to get device count: %s", lib.ErrorString(ret))
	}

	for i := range count {
		handle, ret := lib.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			r.logger.Warn("failed to get device handle", "index", i, "error", lib.ErrorString(ret))
			continue
		}

		uuid, ret := handle.GetUUID()
		if ret != nvml.SUCCESS {
			uuid = fmt.Sprintf("gpu-%d", i)
		}
		name, ret := handle.GetName()
		if ret != nvml.SUCCESS {
			name = "Unknown NVIDIA GPU"
		}

		r.devices = append(r.devices, gpuDevice{
			index:  i,
			handle: handle,
			uuid:   uuid,
			name:   name,
		})
		r.tags = append(r.tags, fmt.Sprintf("gpu-%d", i))

		r.logger.Info("discovered GPU", "index", i, "uuid", uuid, "name", name)
	}
	if len(r.devices) == 0 {
		_ = lib.Shutdown()
		return nil, fmt.Errorf("no NVIDIA GPUs found")
	}

	return r, nil
}

func (r *NVMLReader) Name() string {
	return "nvml"
}

func (r *NVMLReader) Tags() []string {
	return r.tags
}

// GPUDevice identifies one enumerated GPU.
type GPUDevice struct {
	Index int
	UUID  string
	Name  string
}

// Devices returns the GPUs this reader samples, in tag order.
func (r *NVMLReader) Devices() []GPUDevice {
	devices := make([]GPUDevice, len(r.devices))
	for i, d := range r.devices {
		devices[i] = GPUDevice{Index: d.index, UUID: d.uuid, Name: d.name}
	}
	return devices
}

func (r *NVMLReader) Quantities() []device.Quantity {
	return r.quantities
}

func (r *NVMLReader) Unit(q device.Quantity) device.Unit {
	if unit, ok := nvmlUnits[q]; ok {
		return unit
	}
	r.logger.Warn("unsupported quantity requested", "quantity", q, "supported", defaultQuantities)
	return device.NoUnit
}

// Read samples every requested quantity from every device, quantity
// major. A failed driver call logs and records zero so one flaky
// device cannot kill a sampling loop.
func (r *NVMLReader) Read() []float64 {
	values := make([]float64, 0, len(r.quantities)*len(r.devices))
	for _, q := range r.quantities {
		for i := range r.devices {
			values = append(values, r.readQuantity(&r.devices[i], q))
		}
	}
	return values
}

func (r *NVMLReader) readQuantity(dev *gpuDevice, q device.Quantity) float64 {
	switch q {
	case device.Energy:
		energy, ret := dev.handle.GetTotalEnergyConsumption()
		if ret != nvml.SUCCESS {
			r.logger.Error("failed to read energy", "gpu", dev.index, "error", r.lib.ErrorString(ret))
			return 0
		}
		return float64(energy)
	case device.Temperature:
		temp, ret := dev.handle.GetTemperature(nvml.TEMPERATURE_GPU)
		if ret != nvml.SUCCESS {
			r.logger.Error("failed to read temperature", "gpu", dev.index, "error", r.lib.ErrorString(ret))
			return 0
		}
		return float64(temp)
	case device.Power:
		// milliwatts from the driver
		power, ret := dev.handle.GetPowerUsage()
		if ret != nvml.SUCCESS {
			r.logger.Error("failed to read power", "gpu", dev.index, "error", r.lib.ErrorString(ret))
			return 0
		}
		return float64(power) / 1000.0
	default:
		r.logger.Error("unsupported quantity", "quantity", q)
		return 0
	}
}

// EnergyDeltas returns plain pairwise differences. The NVML energy
// counter is 64 bits of millijoules and does not wrap within the
// lifetime of a sampling run.
func (r *NVMLReader) EnergyDeltas(series [][]float64) [][]float64 {
	return device.Deltas(series)
}

// Close shuts the NVML session down.
func (r *NVMLReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if ret := r.lib.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("NVML shutdown failed: %s", r.lib.ErrorString(ret))
	}
	return nil
}
