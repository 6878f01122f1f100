package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	curve := &EquityCurve{Name: "long_short", Values: []float64{100, 110, 99, 121}}

	s := Summarize(curve)

	assert.Equal(t, "long_short", s.Name)
	assert.InDelta(t, 0.21, s.TotalReturn, 1e-12)
	assert.InDelta(t, -0.1, s.MaxDrawdown, 1e-12)

	daily := []float64{0.1, -0.1, 121.0/99 - 1}
	mean := (daily[0] + daily[1] + daily[2]) / 3
	assert.InDelta(t, math.Pow(1+mean, 252)-1, s.AnnualizedReturn, 1e-9)
	assert.Greater(t, s.AnnualizedVol, 0.0)
}

func TestSummarize_Nil(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestResult_Summaries(t *testing.T) {
	result := &Result{
		LongShort: &EquityCurve{Name: "long_short", Values: []float64{1, 2}},
		BuyHold:   &EquityCurve{Name: "buy_hold", Values: []float64{1, 1}},
	}

	summaries := result.Summaries()
	require.Len(t, summaries, 2)
	assert.InDelta(t, 1.0, summaries[0].TotalReturn, 1e-12)
	assert.Equal(t, 0.0, summaries[1].TotalReturn)

	result.BuyHold = nil
	assert.Len(t, result.Summaries(), 1)
}
