package simulation

import (
	"github.com/aristath/portfoliolab/pkg/formulas"
)

// Summary holds headline statistics of an equity curve.
type Summary struct {
	Name             string  `json:"name"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	AnnualizedVol    float64 `json:"annualized_volatility"`
	MaxDrawdown      float64 `json:"max_drawdown"`
}

// Summarize reports total return, annualized mean return and volatility
// of daily changes, and maximum drawdown.
func Summarize(curve *EquityCurve) Summary {
	if curve == nil {
		return Summary{}
	}
	daily := formulas.CalculateReturns(curve.Values)
	return Summary{
		Name:             curve.Name,
		TotalReturn:      formulas.TotalReturn(curve.Values),
		AnnualizedReturn: formulas.AnnualizedMeanReturn(daily),
		AnnualizedVol:    formulas.AnnualizedVolatility(daily),
		MaxDrawdown:      formulas.MaxDrawdown(curve.Values),
	}
}

// Summaries summarizes every curve present in the result.
func (r *Result) Summaries() []Summary {
	out := []Summary{Summarize(r.LongShort)}
	if r.BuyHold != nil {
		out = append(out, Summarize(r.BuyHold))
	}
	return out
}
