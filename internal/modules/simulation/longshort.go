// Package simulation compounds a capital account under a daily long/short
// schedule derived from binary up/down predictions.
package simulation

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/domain"
)

// Defaults for Params.
const (
	DefaultStartingCapital   = 10000.0
	DefaultTransactionCostBP = 10.0
	DefaultBorrowRate        = 0.03
)

const basisPoint = 1.0 / 10000

// Params configures one simulation run.
type Params struct {
	StartingCapital   float64
	TransactionCostBP float64 // per trade leg; a flip pays two legs
	BorrowRate        float64 // annualized, accrued per short day
	IncludeBuyHold    bool
}

// DefaultParams returns the stock simulation settings.
func DefaultParams() Params {
	return Params{
		StartingCapital:   DefaultStartingCapital,
		TransactionCostBP: DefaultTransactionCostBP,
		BorrowRate:        DefaultBorrowRate,
		IncludeBuyHold:    true,
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if !(p.StartingCapital > 0) {
		return fmt.Errorf("starting capital must be positive, got %v: %w", p.StartingCapital, domain.ErrPrecondition)
	}
	if p.TransactionCostBP < 0 || p.BorrowRate < 0 {
		return fmt.Errorf("costs must be non-negative: %w", domain.ErrPrecondition)
	}
	return nil
}

// Curve names.
const (
	CurveLongShort = "long_short"
	CurveBuyHold   = "buy_hold"
)

// EquityCurve is a portfolio value per decision date.
type EquityCurve struct {
	Name   string      `json:"name"`
	Dates  []time.Time `json:"dates"`
	Values []float64   `json:"values"`
}

// Len returns the number of points.
func (c *EquityCurve) Len() int {
	return len(c.Values)
}

// Final returns the last value.
func (c *EquityCurve) Final() float64 {
	if len(c.Values) == 0 {
		return 0
	}
	return c.Values[len(c.Values)-1]
}

// DayDetail is one row of the diagnostics table.
type DayDetail struct {
	Date            time.Time       `json:"date"`
	AssetReturn     float64         `json:"ret_asset"`
	Position        domain.Position `json:"position"`
	GrossReturn     float64         `json:"gross_ret"`
	TransactionCost float64         `json:"trans_cost"`
	BorrowCost      float64         `json:"borrow_cost"`
	NetReturn       float64         `json:"net_ret"`
}

// Result holds the curves and diagnostics of a run. BuyHold is nil unless
// requested.
type Result struct {
	LongShort *EquityCurve `json:"long_short"`
	BuyHold   *EquityCurve `json:"buy_hold,omitempty"`
	Details   []DayDetail  `json:"details"`
}

// Simulator runs long-short simulations.
type Simulator struct {
	params Params
	log    zerolog.Logger
}

// NewSimulator creates a simulator.
func NewSimulator(params Params, log zerolog.Logger) *Simulator {
	return &Simulator{
		params: params,
		log:    log.With().Str("component", "longshort_simulator").Logger(),
	}
}

// Run simulates the strategy over closes, taking position +1 where the
// prediction is 1 and -1 otherwise. dates, closes and predictions must have
// equal length.
func (s *Simulator) Run(dates []time.Time, closes []float64, predictions []int) (*Result, error) {
	if err := s.params.Validate(); err != nil {
		return nil, err
	}
	n := len(closes)
	if n == 0 {
		return nil, fmt.Errorf("no prices to simulate: %w", domain.ErrPrecondition)
	}
	if len(dates) != n || len(predictions) != n {
		return nil, fmt.Errorf("length mismatch: %d dates, %d closes, %d predictions: %w", len(dates), n, len(predictions), domain.ErrPrecondition)
	}
	for i, c := range closes {
		if !(c > 0) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("invalid close %v at index %d: %w", c, i, domain.ErrPrecondition)
		}
	}

	flipCost := 2 * s.params.TransactionCostBP * basisPoint
	dailyBorrow := s.params.BorrowRate / 252

	details := make([]DayDetail, n)
	longShort := &EquityCurve{Name: CurveLongShort, Dates: copyDates(dates), Values: make([]float64, n)}
	var buyHold *EquityCurve
	if s.params.IncludeBuyHold {
		buyHold = &EquityCurve{Name: CurveBuyHold, Dates: copyDates(dates), Values: make([]float64, n)}
	}

	value := s.params.StartingCapital
	holdValue := s.params.StartingCapital
	flips := 0
	for t := 0; t < n; t++ {
		d := DayDetail{Date: dates[t], Position: domain.PositionFromPrediction(predictions[t])}
		if t > 0 {
			d.AssetReturn = closes[t]/closes[t-1] - 1
			if d.Position != details[t-1].Position {
				d.TransactionCost = flipCost
				flips++
			}
		}
		if d.Position == domain.Short {
			d.BorrowCost = dailyBorrow
		}
		d.GrossReturn = float64(d.Position) * d.AssetReturn
		d.NetReturn = d.GrossReturn - d.TransactionCost - d.BorrowCost
		details[t] = d

		value *= 1 + d.NetReturn
		longShort.Values[t] = value
		if buyHold != nil {
			holdValue *= 1 + d.AssetReturn
			buyHold.Values[t] = holdValue
		}
	}

	s.log.Debug().
		Int("days", n).
		Int("flips", flips).
		Float64("final_value", value).
		Msg("Long-short simulation complete")

	return &Result{LongShort: longShort, BuyHold: buyHold, Details: details}, nil
}

// RunFrame simulates ticker from an aligned price frame.
func (s *Simulator) RunFrame(frame domain.PriceFrame, ticker string, predictions []int) (*Result, error) {
	closes, ok := frame.Column(ticker)
	if !ok {
		return nil, fmt.Errorf("ticker %s not in price frame: %w", ticker, domain.ErrPrecondition)
	}
	return s.Run(frame.Dates, closes, predictions)
}

func copyDates(dates []time.Time) []time.Time {
	return append([]time.Time(nil), dates...)
}
