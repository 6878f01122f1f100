package optimization

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/domain"
)

// Method names one of the allocation methods computed per window.
type Method string

// Allocation methods. The string values are the column names used in reports.
const (
	MinVarSim   Method = "Min_Var_Sim"
	MaxSRSim    Method = "Max_SR_Sim"
	MaxSRAct    Method = "Max_SR_Act"
	MaxSRConstr Method = "Max_SR_Constr"
	GMVAct      Method = "GMV_Act"
)

// Methods lists every allocation method in report column order.
var Methods = []Method{MinVarSim, MaxSRSim, MaxSRAct, MaxSRConstr, GMVAct}

// Defaults for EngineParams.
const (
	DefaultNumSimulations = 50000
	DefaultSeed           = 100
)

// EngineParams configures the allocation engine.
type EngineParams struct {
	NumSimulations int     `json:"num_simulations"`
	Seed           uint64  `json:"seed"`
	MaxWeight      float64 `json:"max_weight"`
	// MaxIterations caps the constrained search; 0 selects DefaultMaxIterations.
	MaxIterations  int     `json:"max_iterations,omitempty"`
}

func (p EngineParams) maxIterations() int {
	if p.MaxIterations > 0 {
		return p.MaxIterations
	}
	return DefaultMaxIterations
}

// DefaultEngineParams returns the stock engine configuration.
func DefaultEngineParams() EngineParams {
	return EngineParams{
		NumSimulations: DefaultNumSimulations,
		Seed:           DefaultSeed,
		MaxWeight:      DefaultMaxWeight,
	}
}

// AllocationResult holds the weights of every method for one window.
// A method that failed appears in Failures and not in Weights.
type AllocationResult struct {
	Tickers  []string
	RiskFree float64
	Weights  map[Method][]float64
	Failures map[Method]error

	// Diagnostics from the simulated population.
	MinVarSimVariance float64
	MaxSRSimSharpe    float64
}

// Valid reports whether the method produced weights.
func (r AllocationResult) Valid(m Method) bool {
	_, ok := r.Weights[m]
	return ok
}

// Weight returns the weight of ticker under method m.
func (r AllocationResult) Weight(m Method, ticker string) (float64, bool) {
	w, ok := r.Weights[m]
	if !ok {
		return 0, false
	}
	for i, t := range r.Tickers {
		if t == ticker {
			return w[i], true
		}
	}
	return 0, false
}

// Engine computes the five allocation methods for a return estimate.
type Engine struct {
	params EngineParams
	log    zerolog.Logger
}

// NewEngine creates an allocation engine.
func NewEngine(params EngineParams, log zerolog.Logger) *Engine {
	return &Engine{
		params: params,
		log:    log.With().Str("component", "allocation_engine").Logger(),
	}
}

// Params returns the engine configuration.
func (e *Engine) Params() EngineParams {
	return e.params
}

// Allocate runs every method against the estimate. A failing method is
// recorded in the result and does not prevent the others from running.
func (e *Engine) Allocate(est ReturnEstimate, rf float64) AllocationResult {
	result := AllocationResult{
		Tickers:  est.Tickers,
		RiskFree: rf,
		Weights:  make(map[Method][]float64, len(Methods)),
		Failures: make(map[Method]error),
	}

	sims := SimulatePortfolios(est.Mu, est.Cov, e.params.NumSimulations, e.params.Seed)
	if idx, ok := sims.MinVariance(); ok {
		result.Weights[MinVarSim] = sims.Row(idx)
		result.MinVarSimVariance = sims.Variances[idx]
	} else {
		result.Failures[MinVarSim] = fmt.Errorf("no simulated portfolios: %w", domain.ErrDataInsufficiency)
	}
	if idx, sharpe, ok := sims.MaxSharpe(rf); ok {
		result.Weights[MaxSRSim] = sims.Row(idx)
		result.MaxSRSimSharpe = sharpe
	} else {
		result.Failures[MaxSRSim] = fmt.Errorf("no simulated portfolio with positive variance: %w", domain.ErrDataInsufficiency)
	}

	e.record(&result, MaxSRAct, func() ([]float64, error) {
		return TangencyWeights(est.Mu, est.Cov, rf)
	})
	e.record(&result, MaxSRConstr, func() ([]float64, error) {
		return constrainedMaxSharpe(est.Mu, est.Cov, rf, e.params.MaxWeight, e.params.maxIterations())
	})
	e.record(&result, GMVAct, func() ([]float64, error) {
		return GMVWeights(est.Cov)
	})

	return result
}

func (e *Engine) record(result *AllocationResult, m Method, fn func() ([]float64, error)) {
	w, err := fn()
	if err != nil {
		e.log.Warn().Err(err).Str("method", string(m)).Msg("Allocation method failed")
		result.Failures[m] = err
		return
	}
	result.Weights[m] = w
}
