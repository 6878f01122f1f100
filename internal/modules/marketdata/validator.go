package marketdata

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/domain"
)

const (
	maxPriceChangePercent = 1000.0 // >1000% change is a spike
	minPriceChangePercent = -90.0  // <-90% change is a crash
)

// BarValidator screens provider bars before they reach the price frame.
// Unusable bars are dropped; suspicious moves are only logged since
// adjusted histories legitimately contain large split-driven jumps.
type BarValidator struct {
	log zerolog.Logger
}

// NewBarValidator creates a new bar validator
func NewBarValidator(log zerolog.Logger) *BarValidator {
	return &BarValidator{
		log: log.With().Str("component", "bar_validator").Logger(),
	}
}

// ValidateBar checks if a bar is usable.
// Returns (isValid, reason)
func (v *BarValidator) ValidateBar(bar domain.DailyBar) (bool, string) {
	closeVal := bar.AdjClose
	if closeVal == 0 {
		closeVal = bar.Close
	}
	if math.IsNaN(closeVal) || math.IsInf(closeVal, 0) {
		return false, "non_finite_close"
	}
	if closeVal <= 0 {
		return false, "non_positive_close"
	}
	if bar.High > 0 && bar.Low > 0 && bar.High < bar.Low {
		return false, "high_below_low"
	}
	return true, ""
}

// Clean drops invalid and out-of-order bars.
func (v *BarValidator) Clean(ticker string, bars []domain.DailyBar) []domain.DailyBar {
	out := make([]domain.DailyBar, 0, len(bars))
	for _, b := range bars {
		if ok, reason := v.ValidateBar(b); !ok {
			v.log.Warn().
				Str("ticker", ticker).
				Time("date", b.Date).
				Str("reason", reason).
				Msg("Dropping invalid bar")
			continue
		}
		if n := len(out); n > 0 {
			if !b.Date.After(out[n-1].Date) {
				v.log.Warn().Str("ticker", ticker).Time("date", b.Date).Msg("Dropping out-of-order bar")
				continue
			}
			if change := (closeOf(b)/closeOf(out[n-1]) - 1) * 100; change > maxPriceChangePercent || change < minPriceChangePercent {
				v.log.Warn().
					Str("ticker", ticker).
					Time("date", b.Date).
					Float64("change_pct", change).
					Msg("Abnormal price move")
			}
		}
		out = append(out, b)
	}
	return out
}

func closeOf(b domain.DailyBar) float64 {
	if b.AdjClose > 0 {
		return b.AdjClose
	}
	return b.Close
}
