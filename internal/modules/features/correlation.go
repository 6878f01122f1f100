package features

import (
	"fmt"
	"math"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/pkg/formulas"
)

// MostCorrelated returns the ticker whose daily returns correlate most with
// base over the frame's common dates.
func MostCorrelated(base string, frame domain.PriceFrame) (string, float64, error) {
	baseCol, ok := frame.Column(base)
	if !ok {
		return "", 0, fmt.Errorf("base ticker %s has no price data: %w", base, domain.ErrDataInsufficiency)
	}
	if len(frame.Tickers) < 2 {
		return "", 0, fmt.Errorf("no partner candidates for %s: %w", base, domain.ErrDataInsufficiency)
	}
	baseRet := formulas.CalculateReturns(baseCol)

	best, bestCorr := "", math.Inf(-1)
	for _, t := range frame.Tickers {
		if t == base {
			continue
		}
		col, _ := frame.Column(t)
		c := formulas.Correlation(baseRet, formulas.CalculateReturns(col))
		if c > bestCorr {
			best, bestCorr = t, c
		}
	}
	return best, bestCorr, nil
}
