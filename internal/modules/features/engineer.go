// Package features derives daily technical indicators from OHLCV bars and
// assembles the base/partner datasets fed to the up/down classifier.
package features

import (
	"math"
	"time"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/pkg/formulas"
)

// Moving-average and oscillator periods.
const (
	ShortPeriod      = 7
	LongPeriod       = 14
	StochasticPeriod = 14
)

// FeatureNames lists the per-ticker features in vector order.
var FeatureNames = []string{
	"RangeClose",
	"OpenHigher",
	"VolumeUp",
	"CloseUp",
	"RangeUp",
	"CurrVolUp",
	"CurrCloseUp",
	"CurrRangeUp",
	"SO",
	"R14",
}

// Row is one trading day of engineered features for a single ticker.
type Row struct {
	Date       time.Time
	Close      float64
	AdjClose   float64
	ChAdjClose float64 // day-over-day change of the adjusted close

	RangeClose  float64
	OpenHigher  float64
	VolumeUp    float64
	CloseUp     float64
	RangeUp     float64
	CurrVolUp   float64
	CurrCloseUp float64
	CurrRangeUp float64
	SO          float64
	R14         float64
}

// Vector returns the features in FeatureNames order.
func (r Row) Vector() []float64 {
	return []float64{
		r.RangeClose,
		r.OpenHigher,
		r.VolumeUp,
		r.CloseUp,
		r.RangeUp,
		r.CurrVolUp,
		r.CurrCloseUp,
		r.CurrRangeUp,
		r.SO,
		r.R14,
	}
}

func (r Row) defined() bool {
	for _, v := range append(r.Vector(), r.ChAdjClose) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Engineer computes the feature rows for a bar history ordered by date.
// Days with any undefined feature (warm-up periods, zero ranges) are dropped.
func Engineer(bars []domain.DailyBar) []Row {
	n := len(bars)
	if n == 0 {
		return nil
	}

	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	rng := make([]float64, n)
	for i, b := range bars {
		high[i], low[i], closes[i], volume[i] = b.High, b.Low, b.Close, b.Volume
		rng[i] = b.High - b.Low
	}

	volShort, volLong := formulas.SMASeries(volume, ShortPeriod), formulas.SMASeries(volume, LongPeriod)
	closeShort, closeLong := formulas.SMASeries(closes, ShortPeriod), formulas.SMASeries(closes, LongPeriod)
	rangeShort, rangeLong := formulas.SMASeries(rng, ShortPeriod), formulas.SMASeries(rng, LongPeriod)
	lows := formulas.RollingMin(low, StochasticPeriod)
	highs := formulas.RollingMax(high, StochasticPeriod)
	so := formulas.StochasticOscillator(high, low, closes, StochasticPeriod)

	rows := make([]Row, 0, n)
	for i, b := range bars {
		adj := adjusted(b)
		r := Row{
			Date:        b.Date,
			Close:       b.Close,
			AdjClose:    adj,
			ChAdjClose:  math.NaN(),
			RangeClose:  (b.Close - b.Low) / rng[i],
			VolumeUp:    compare(volShort[i], volLong[i]),
			CloseUp:     compare(closeShort[i], closeLong[i]),
			RangeUp:     compare(rangeShort[i], rangeLong[i]),
			CurrVolUp:   compare(volume[i], volShort[i]),
			CurrCloseUp: compare(closes[i], closeShort[i]),
			CurrRangeUp: compare(rng[i], rangeShort[i]),
			SO:          so[i],
			R14:         highs[i] - lows[i],
		}
		if i > 0 {
			r.ChAdjClose = adj - adjusted(bars[i-1])
			if b.Open > bars[i-1].Close {
				r.OpenHigher = 1
			}
		}
		if r.defined() {
			rows = append(rows, r)
		}
	}
	return rows
}

func adjusted(b domain.DailyBar) float64 {
	if b.AdjClose > 0 {
		return b.AdjClose
	}
	return b.Close
}

// compare returns 1 when a > b, 0 otherwise, and NaN while either side is
// still warming up.
func compare(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	if a > b {
		return 1
	}
	return 0
}
