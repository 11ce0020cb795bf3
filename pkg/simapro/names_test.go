package simapro

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProcessName(t *testing.T) {
	tests := []struct {
		in       string
		name     string
		product  string
		location string
	}{
		{
			in:       "Electricity, low voltage {CH}| market for | Cut-off, U",
			name:     "market for Electricity, low voltage",
			product:  "Electricity, low voltage",
			location: "CH",
		},
		{
			in:       "Electricity, low voltage {CH}| market for electricity, low voltage | Cut-off, U",
			name:     "market for electricity, low voltage",
			product:  "Electricity, low voltage",
			location: "CH",
		},
		{
			in:       "Heat, district or industrial, natural gas {RER}| market | Cut-off, U",
			name:     "market for Heat, district or industrial, natural gas",
			product:  "Heat, district or industrial, natural gas",
			location: "RER",
		},
		{
			in:       "Steel, low-alloyed {GLO}| production | Cut-off, U",
			name:     "Steel, low-alloyed (production)",
			product:  "Steel, low-alloyed",
			location: "GLO",
		},
		{
			in:       "Wafer, fabricated, for integrated circuit {WECC, US only}| wafer production | Cut-off, U",
			name:     "wafer production",
			product:  "Wafer, fabricated, for integrated circuit",
			location: "WECC, US only",
		},
		{
			in:       "Tap water {Europe without Switzerland} tap water production | Cut-off, U",
			name:     "Tap water tap water production",
			product:  "Tap water tap water production",
			location: "Europe without Switzerland",
		},
		{
			in:       "Custom panel,",
			name:     "custom panel,",
			product:  "Custom panel",
			location: "GLO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, product, location := ParseProcessName(tt.in)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.product, product)
			assert.Equal(t, tt.location, location)
		})
	}
}

func TestFormatProcessNameRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		product  string
		location string
		want     string
	}{
		{"market for electricity, low voltage", "electricity, low voltage", "CH", "Electricity, low voltage {CH}| market for | Cut-off, U"},
		{"market group for electricity", "electricity", "RER", "Electricity {RER}| market group for | Cut-off, U"},
		{"steel, low-alloyed (production)", "steel, low-alloyed", "GLO", "Steel, low-alloyed {GLO}| production | Cut-off, U"},
		{"photovoltaic panel assembly", "photovoltaic panel", "", "Photovoltaic panel {GLO}| photovoltaic panel assembly | Cut-off, U"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatted := FormatProcessName(tt.name, tt.product, tt.location)
			assert.Equal(t, tt.want, formatted)

			name, product, location := ParseProcessName(formatted)
			assert.True(t, strings.EqualFold(tt.name, name), "%q != %q", tt.name, name)
			assert.True(t, strings.EqualFold(tt.product, product), "%q != %q", tt.product, product)
			if tt.location != "" {
				assert.Equal(t, tt.location, location)
			} else {
				assert.Equal(t, "GLO", location)
			}
		})
	}
}
