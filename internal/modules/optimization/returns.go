package optimization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/portfoliolab/internal/domain"
)

// MonthsPerYear annualizes monthly statistics by plain multiplication, not compounding.
const MonthsPerYear = 12

// ReturnEstimate holds annualized expected returns and covariance for one window.
type ReturnEstimate struct {
	Tickers []string
	Mu      []float64
	Cov     *mat.SymDense
	Months  int // number of monthly returns behind the estimate
}

// EstimateReturns resamples the frame to month-end closes and derives
// annualized mean returns and covariance from monthly percentage changes.
func EstimateReturns(frame domain.PriceFrame) (ReturnEstimate, error) {
	if frame.Empty() {
		return ReturnEstimate{}, fmt.Errorf("no price observations: %w", domain.ErrDataInsufficiency)
	}
	n := len(frame.Tickers)
	if n < 2 {
		return ReturnEstimate{}, fmt.Errorf("need at least 2 tickers, have %d: %w", n, domain.ErrDataInsufficiency)
	}

	returns := frame.MonthEnd().PctChange()
	if len(returns) < 2 {
		return ReturnEstimate{}, fmt.Errorf("need at least 2 monthly returns, have %d: %w", len(returns), domain.ErrDataInsufficiency)
	}

	data := mat.NewDense(len(returns), n, nil)
	for t, row := range returns {
		data.SetRow(t, row)
	}

	mu := make([]float64, n)
	col := make([]float64, len(returns))
	for j := 0; j < n; j++ {
		mat.Col(col, j, data)
		mu[j] = stat.Mean(col, nil) * MonthsPerYear
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	cov.ScaleSym(MonthsPerYear, cov)

	tickers := make([]string, n)
	copy(tickers, frame.Tickers)

	return ReturnEstimate{Tickers: tickers, Mu: mu, Cov: cov, Months: len(returns)}, nil
}

// NewReturnEstimate builds an estimate from already annualized inputs.
func NewReturnEstimate(tickers []string, mu []float64, cov [][]float64) (ReturnEstimate, error) {
	n := len(tickers)
	if len(mu) != n || len(cov) != n {
		return ReturnEstimate{}, fmt.Errorf("dimension mismatch: %d tickers, %d returns, %d cov rows: %w", n, len(mu), len(cov), domain.ErrPrecondition)
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return ReturnEstimate{}, fmt.Errorf("covariance row %d has size %d, expected %d: %w", i, len(cov[i]), n, domain.ErrPrecondition)
		}
		for j := i; j < n; j++ {
			sym.SetSym(i, j, cov[i][j])
		}
	}
	return ReturnEstimate{Tickers: tickers, Mu: mu, Cov: sym}, nil
}

// PortfolioVariance returns w'Σw.
func (e ReturnEstimate) PortfolioVariance(w []float64) float64 {
	v := mat.NewVecDense(len(w), w)
	return mat.Inner(v, e.Cov, v)
}

// PortfolioReturn returns w'μ.
func (e ReturnEstimate) PortfolioReturn(w []float64) float64 {
	var r float64
	for i := range w {
		r += w[i] * e.Mu[i]
	}
	return r
}
