package optimization

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/portfoliolab/internal/domain"
)

// denominatorTolerance guards the tangency normalization 1'Σ⁻¹(μ - rf).
const denominatorTolerance = 1e-12

// DefaultMaxIterations caps the Nelder-Mead iterations of the constrained
// search.
const DefaultMaxIterations = 100000

// TangencyWeights computes the unconstrained maximum Sharpe portfolio
// w = Σ⁻¹(μ - rf) / 1'Σ⁻¹(μ - rf). Weights may be negative.
func TangencyWeights(mu []float64, cov mat.Symmetric, rf float64) ([]float64, error) {
	n := len(mu)
	if n == 0 || cov.SymmetricDim() != n {
		return nil, fmt.Errorf("tangency: %d returns for %d×%d covariance: %w", n, cov.SymmetricDim(), cov.SymmetricDim(), domain.ErrPrecondition)
	}

	var inv mat.Dense
	if err := inv.Inverse(cov); err != nil {
		return nil, fmt.Errorf("tangency: %v: %w", err, domain.ErrSingularMatrix)
	}

	excess := make([]float64, n)
	for i := range mu {
		excess[i] = mu[i] - rf
	}
	var top mat.VecDense
	top.MulVec(&inv, mat.NewVecDense(n, excess))

	raw := top.RawVector().Data
	denom := floats.Sum(raw)
	if math.IsNaN(denom) || math.Abs(denom) < denominatorTolerance {
		return nil, fmt.Errorf("tangency: denominator %g: %w", denom, domain.ErrDegenerateDenominator)
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = raw[i] / denom
	}
	return w, nil
}

// GMVWeights solves the Lagrangian system
//
//	[2Σ 1][w]   [0]
//	[1' 0][λ] = [1]
//
// for the unconstrained global minimum variance portfolio.
func GMVWeights(cov mat.Symmetric) ([]float64, error) {
	n := cov.SymmetricDim()
	if n == 0 {
		return nil, fmt.Errorf("gmv: empty covariance: %w", domain.ErrPrecondition)
	}

	a := mat.NewDense(n+1, n+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, 2*cov.At(i, j))
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
	}
	b := mat.NewVecDense(n+1, nil)
	b.SetVec(n, 1)

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("gmv: %v: %w", err, domain.ErrSingularMatrix)
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = x.AtVec(i)
	}
	return w, nil
}

// ConstrainedMaxSharpe maximizes (w'μ - rf)/sqrt(w'Σw) over the capped
// simplex. The search runs Nelder-Mead in an unconstrained space and maps
// every trial point through the capped-simplex projection, so each
// evaluated portfolio is feasible.
func ConstrainedMaxSharpe(mu []float64, cov mat.Symmetric, rf, maxWeight float64) ([]float64, error) {
	return constrainedMaxSharpe(mu, cov, rf, maxWeight, DefaultMaxIterations)
}

// constrainedMaxSharpe fails with ErrOptimizerNonConvergence when the
// search has not converged after maxIterations.
func constrainedMaxSharpe(mu []float64, cov mat.Symmetric, rf, maxWeight float64, maxIterations int) ([]float64, error) {
	n := len(mu)
	if n == 0 || cov.SymmetricDim() != n {
		return nil, fmt.Errorf("constrained max sharpe: %d returns for %d×%d covariance: %w", n, cov.SymmetricDim(), cov.SymmetricDim(), domain.ErrPrecondition)
	}
	box, err := NewBoxConstraints(n, maxWeight)
	if err != nil {
		return nil, fmt.Errorf("constrained max sharpe: %w", err)
	}

	negSharpe := func(x []float64) float64 {
		w := box.Project(x)
		v := mat.NewVecDense(n, w)
		variance := mat.Inner(v, cov, v)
		if !(variance > 0) {
			return math.MaxFloat64
		}
		return -(floats.Dot(w, mu) - rf) / math.Sqrt(variance)
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1 / float64(n)
	}

	problem := optimize.Problem{Func: negSharpe}
	settings := &optimize.Settings{
		MajorIterations: maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 50 * n,
		},
	}
	result, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("constrained max sharpe: %v: %w", err, domain.ErrOptimizerNonConvergence)
	}
	if !converged(result.Status) {
		return nil, fmt.Errorf("constrained max sharpe: status=%v: %w", result.Status, domain.ErrOptimizerNonConvergence)
	}

	return box.Project(result.X), nil
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.MethodConverge:
		return true
	}
	return false
}
