package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateReturns(t *testing.T) {
	assert.Empty(t, CalculateReturns([]float64{100}))
	assert.InDeltaSlice(t, []float64{0.01, -0.02}, CalculateReturns([]float64{100, 101, 98.98}), 1e-12)
}

func TestTotalReturn(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "empty", values: nil, expected: 0},
		{name: "single value", values: []float64{100}, expected: 0},
		{name: "gain", values: []float64{100, 90, 125}, expected: 0.25},
		{name: "loss", values: []float64{200, 150}, expected: -0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TotalReturn(tt.values), 1e-12)
		})
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{name: "monotonic rise", values: []float64{1, 2, 3}, expected: 0},
		{name: "single dip", values: []float64{100, 80, 120}, expected: -0.2},
		{name: "deeper later dip", values: []float64{100, 90, 150, 75, 160}, expected: -0.5},
		{name: "flat", values: []float64{10, 10, 10}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, MaxDrawdown(tt.values), 1e-12)
		})
	}
}

func TestAnnualizedStatistics(t *testing.T) {
	flat := []float64{0, 0, 0, 0}
	assert.Equal(t, 0.0, AnnualizedVolatility(flat))
	assert.Equal(t, 0.0, AnnualizedMeanReturn(flat))

	daily := []float64{0.01, -0.01, 0.01, -0.01}
	assert.InDelta(t, StdDev(daily)*math.Sqrt(252), AnnualizedVolatility(daily), 1e-12)
	assert.InDelta(t, 0.0, AnnualizedMeanReturn(daily), 1e-12)
	assert.InDelta(t, math.Pow(1.001, 252)-1, AnnualizedMeanReturn([]float64{0.001, 0.001}), 1e-12)
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, Correlation(x, []float64{2, 4, 6, 8}), 1e-12)
	assert.InDelta(t, -1.0, Correlation(x, []float64{4, 3, 2, 1}), 1e-12)
	assert.Equal(t, 0.0, Correlation(x, []float64{1, 1, 1, 1}))
	assert.Equal(t, 0.0, Correlation(x, []float64{1, 2}))
}
