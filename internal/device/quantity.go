// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"strings"
)

// Quantity is a kind of physical measurement a meter can report.
type Quantity string

const (
	Energy      Quantity = "energy"
	Power       Quantity = "power"
	Temperature Quantity = "temperature"
)

// ParseQuantity converts a config string into a Quantity.
func ParseQuantity(s string) (Quantity, error) {
	switch Quantity(strings.ToLower(strings.TrimSpace(s))) {
	case Energy:
		return Energy, nil
	case Power:
		return Power, nil
	case Temperature:
		return Temperature, nil
	default:
		return "", fmt.Errorf("unknown quantity: %q", s)
	}
}

// Unit describes the unit raw readings are reported in: a short label
// used in log column headers and the multiplicative factor converting a
// raw value to the SI base unit.
type Unit struct {
	label  string
	factor float64
}

var (
	// NoUnit is the no-op unit returned for unsupported quantities.
	NoUnit = Unit{label: "", factor: 1}

	Microjoule   = Unit{label: "uJ", factor: 1e-6}
	Millijoule   = Unit{label: "mJ", factor: 1e-3}
	Joule        = Unit{label: "J", factor: 1}
	KilowattHour = Unit{label: "kWh", factor: 3.6e6}

	Watt = Unit{label: "W", factor: 1}

	// Celsius has factor 1: temperatures are reported in celsius, not
	// converted to kelvin.
	Celsius = Unit{label: "C", factor: 1}
)

func (u Unit) String() string {
	return u.label
}

// ToSI returns the factor that converts a raw reading to SI.
func (u Unit) ToSI() float64 {
	return u.factor
}
