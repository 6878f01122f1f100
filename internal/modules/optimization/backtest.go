package optimization

import (
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/portfoliolab/internal/domain"
)

// DefaultLookahead is the number of window-steps between training and investment windows.
const DefaultLookahead = 3

// BacktestRecord compares stale and fresh tangency weights over one
// investment window.
//
// NewMaxSharpeReturn uses weights estimated from the same window it is
// evaluated on, so it carries look-ahead bias by construction.
type BacktestRecord struct {
	TrainingWindow      string    `json:"training_window"`
	InvestmentWindow    string    `json:"investment_window"`
	PrevMaxSharpeReturn float64   `json:"prev_max_sharpe_return"`
	NewMaxSharpeReturn  float64   `json:"new_max_sharpe_return"`
	RealizedReturns     []float64 `json:"realized_returns"`
}

// BacktestReport holds the records in training-window order plus the
// training windows that produced no record.
type BacktestReport struct {
	Tickers   []string
	Lookahead int
	Records   []BacktestRecord
	Skipped   map[string]error
}

// Backtester evaluates stale allocations against later windows.
type Backtester struct {
	log zerolog.Logger
}

// NewBacktester creates a backtester.
func NewBacktester(log zerolog.Logger) *Backtester {
	return &Backtester{
		log: log.With().Str("component", "backtester").Logger(),
	}
}

// Run pairs each training window with the window lookahead steps later.
// The frame supplies the prices of the investment windows.
func (b *Backtester) Run(sweep *SweepResult, frame domain.PriceFrame, lookahead int) (*BacktestReport, error) {
	if sweep == nil {
		return nil, fmt.Errorf("nil sweep result: %w", domain.ErrPrecondition)
	}
	if lookahead <= 0 {
		return nil, fmt.Errorf("lookahead must be positive, got %d: %w", lookahead, domain.ErrPrecondition)
	}

	report := &BacktestReport{
		Tickers:   frame.Tickers,
		Lookahead: lookahead,
		Skipped:   make(map[string]error),
	}

	for _, train := range sweep.Windows {
		label := train.Window.Label()
		investLabel := train.Window.Shift(lookahead).Label()
		invest, ok := sweep.Lookup(investLabel)
		if !ok {
			if reason, skipped := sweep.Skipped[investLabel]; skipped {
				err := fmt.Errorf("investment window %s was skipped (%v): %w", investLabel, reason, domain.ErrDataInsufficiency)
				b.log.Warn().Err(err).Str("training_window", label).Msg("Skipping backtest pair")
				report.Skipped[label] = err
			}
			// Windows at the tail of the schedule have no investment window.
			continue
		}

		rec, err := b.evaluate(train, invest, frame)
		if err != nil {
			b.log.Warn().Err(err).Str("training_window", label).Msg("Skipping backtest pair")
			report.Skipped[label] = err
			continue
		}
		report.Records = append(report.Records, rec)
	}

	b.log.Info().
		Int("records", len(report.Records)).
		Int("skipped", len(report.Skipped)).
		Int("lookahead", lookahead).
		Msg("Backtest complete")

	return report, nil
}

func (b *Backtester) evaluate(train, invest WindowResult, frame domain.PriceFrame) (BacktestRecord, error) {
	stale, ok := train.Allocation.Weights[MaxSRAct]
	if !ok {
		return BacktestRecord{}, fmt.Errorf("training window %s has no %s weights: %w", train.Window.Label(), MaxSRAct, train.Allocation.Failures[MaxSRAct])
	}
	if !sameTickers(train.Allocation.Tickers, frame.Tickers) {
		return BacktestRecord{}, fmt.Errorf("ticker set of %s differs from price frame: %w", train.Window.Label(), domain.ErrPrecondition)
	}

	realized, err := RealizedReturns(frame.Between(invest.Window.From(), invest.Window.To()))
	if err != nil {
		return BacktestRecord{}, fmt.Errorf("investment window %s: %w", invest.Window.Label(), err)
	}

	fresh, err := TangencyWeights(invest.Estimate.Mu, invest.Estimate.Cov, invest.RiskFree)
	if err != nil {
		return BacktestRecord{}, fmt.Errorf("investment window %s: %w", invest.Window.Label(), err)
	}

	return BacktestRecord{
		TrainingWindow:      train.Window.Label(),
		InvestmentWindow:    invest.Window.Label(),
		PrevMaxSharpeReturn: floats.Dot(stale, realized),
		NewMaxSharpeReturn:  floats.Dot(fresh, realized),
		RealizedReturns:     realized,
	}, nil
}

// RealizedReturns returns each ticker's simple return from the first
// month-end close to the last month-end close of the frame.
func RealizedReturns(frame domain.PriceFrame) ([]float64, error) {
	monthly := frame.MonthEnd()
	if monthly.Len() < 2 {
		return nil, fmt.Errorf("need at least 2 month-end closes, have %d: %w", monthly.Len(), domain.ErrDataInsufficiency)
	}
	first := monthly.Closes[0]
	last := monthly.Closes[monthly.Len()-1]
	out := make([]float64, len(first))
	for j := range first {
		out[j] = last[j]/first[j] - 1
	}
	return out, nil
}

func sameTickers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
