package optimization

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/aristath/portfoliolab/internal/domain"
)

// syntheticFrame builds a weekday price frame from seeded random walks.
func syntheticFrame(tickers []string, from, to time.Time, seed uint64) domain.PriceFrame {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	frame := domain.PriceFrame{Tickers: tickers}
	last := make([]float64, len(tickers))
	for j := range last {
		last[j] = 50 + 10*float64(j)
	}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		row := make([]float64, len(tickers))
		for j := range tickers {
			drift := 0.0002 * float64(j+1)
			vol := 0.01 + 0.004*float64(j)
			last[j] *= math.Exp(drift + vol*rng.NormFloat64())
			row[j] = last[j]
		}
		frame.Dates = append(frame.Dates, d)
		frame.Closes = append(frame.Closes, row)
	}
	return frame
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sharpe(est ReturnEstimate, w []float64, rf float64) float64 {
	return (est.PortfolioReturn(w) - rf) / math.Sqrt(est.PortfolioVariance(w))
}

func sum(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}
