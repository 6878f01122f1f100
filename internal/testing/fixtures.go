package testing

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/aristath/portfoliolab/internal/domain"
)

// NewBarFixtures returns weekday OHLCV bars between from and to following a
// seeded random walk. Identical arguments give identical bars.
func NewBarFixtures(from, to time.Time, start float64, seed uint64) []domain.DailyBar {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var bars []domain.DailyBar
	last := start
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		open := last
		last *= math.Exp(0.0003 + 0.012*rng.NormFloat64())
		hi := math.Max(open, last) * (1 + 0.005*rng.Float64())
		lo := math.Min(open, last) * (1 - 0.005*rng.Float64())
		bars = append(bars, domain.DailyBar{
			Date:     d,
			Open:     open,
			High:     hi,
			Low:      lo,
			Close:    last,
			AdjClose: last,
			Volume:   1e6 * (1 + rng.Float64()),
		})
	}
	return bars
}

// NewPriceFrameFixture aligns bar fixtures for each ticker. Ticker i uses
// seed+i so columns are distinct but reproducible.
func NewPriceFrameFixture(tickers []string, from, to time.Time, seed uint64) domain.PriceFrame {
	series := make([]domain.PriceSeries, 0, len(tickers))
	for i, t := range tickers {
		bars := NewBarFixtures(from, to, 50+10*float64(i), seed+uint64(i))
		s, err := domain.SeriesFromBars(t, bars)
		if err != nil {
			panic(err)
		}
		series = append(series, s)
	}
	return domain.Align(series)
}

// Date returns midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
