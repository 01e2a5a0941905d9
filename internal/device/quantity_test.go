// SPDX-FileCopyrightText: 2025 The Wattmon Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		input    string
		expected Quantity
		wantErr  bool
	}{
		{input: "energy", expected: Energy},
		{input: "power", expected: Power},
		{input: "temperature", expected: Temperature},
		{input: "Energy", expected: Energy},
		{input: " power ", expected: Power},
		{input: "frequency", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("parse "+tt.input, func(t *testing.T) {
			q, err := ParseQuantity(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, q)
		})
	}
}

func TestUnitConversionFactors(t *testing.T) {
	tests := []struct {
		unit   Unit
		label  string
		factor float64
	}{
		{Microjoule, "uJ", 1e-6},
		{Millijoule, "mJ", 1e-3},
		{Joule, "J", 1},
		{KilowattHour, "kWh", 3.6e6},
		{Watt, "W", 1},
		{Celsius, "C", 1},
		{NoUnit, "", 1},
	}

	for _, tt := range tests {
		t.Run("unit "+tt.label, func(t *testing.T) {
			assert.Equal(t, tt.label, tt.unit.String())
			assert.Equal(t, tt.factor, tt.unit.ToSI())
			assert.Positive(t, tt.unit.ToSI())
		})
	}
}
