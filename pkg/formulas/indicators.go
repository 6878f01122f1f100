package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMASeries returns the simple moving average aligned with the input.
// The first period-1 entries are NaN.
func SMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSeries(len(values))
	}
	return leadingNaN(talib.Sma(values, period), period)
}

// RollingMin returns the minimum of each trailing window of period values.
func RollingMin(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSeries(len(values))
	}
	if period == 1 {
		return append([]float64(nil), values...)
	}
	return leadingNaN(talib.Min(values, period), period)
}

// RollingMax returns the maximum of each trailing window of period values.
func RollingMax(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSeries(len(values))
	}
	if period == 1 {
		return append([]float64(nil), values...)
	}
	return leadingNaN(talib.Max(values, period), period)
}

// StochasticOscillator computes %K = 100 × (close - L) / (H - L) where L and
// H are the lowest low and highest high of the trailing period.
func StochasticOscillator(high, low, closes []float64, period int) []float64 {
	lows := RollingMin(low, period)
	highs := RollingMax(high, period)
	out := make([]float64, len(closes))
	for i := range closes {
		span := highs[i] - lows[i]
		if math.IsNaN(span) || span == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = 100 * (closes[i] - lows[i]) / span
	}
	return out
}

// talib fills the lookback with zeros; mark it as undefined instead.
func leadingNaN(series []float64, period int) []float64 {
	for i := 0; i < period-1 && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
