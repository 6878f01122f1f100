// Package reports persists sweep, backtest and simulation runs and serves
// them back for the reporting API and export.
package reports

import (
	"encoding/json"
	"time"
)

// RunKind identifies what produced a run.
type RunKind string

const (
	KindSweep      RunKind = "sweep"
	KindBacktest   RunKind = "backtest"
	KindSimulation RunKind = "simulation"
)

// Run is the header row of a stored run.
type Run struct {
	ID        string          `json:"id"`
	Kind      RunKind         `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Tickers   []string        `json:"tickers"`
	Params    json.RawMessage `json:"params"`
}

// AllocationRow is one method weight of one ticker in one window.
type AllocationRow struct {
	Window   string  `json:"window"`
	Position int     `json:"position"`
	Method   string  `json:"method"`
	Ticker   string  `json:"ticker"`
	Weight   float64 `json:"weight"`
}

// WindowStat holds per-window inputs and simulation diagnostics.
// Diagnostics are nil when the corresponding method failed.
type WindowStat struct {
	Window            string   `json:"window"`
	Position          int      `json:"position"`
	RiskFree          float64  `json:"risk_free"`
	Months            int      `json:"months"`
	MinVarSimVariance *float64 `json:"min_var_sim_variance"`
	MaxSRSimSharpe    *float64 `json:"max_sr_sim_sharpe"`
}

// Failure records a failed method, or a skipped window when Method is empty.
type Failure struct {
	Window string `json:"window"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason"`
}

// BacktestRow is a stored backtest record.
type BacktestRow struct {
	Position            int     `json:"position"`
	TrainingWindow      string  `json:"training_window"`
	InvestmentWindow    string  `json:"investment_window"`
	PrevMaxSharpeReturn float64 `json:"prev_max_sharpe_return"`
	NewMaxSharpeReturn  float64 `json:"new_max_sharpe_return"`
}

// EquityPoint is one value of a stored equity curve.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// CurveSummary is the stored headline statistics of a curve.
type CurveSummary struct {
	Curve                string  `json:"curve"`
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"`
}

// Equity bundles the curves and summaries of a simulation run.
type Equity struct {
	Curves    map[string][]EquityPoint `json:"curves"`
	Summaries []CurveSummary           `json:"summaries"`
}
