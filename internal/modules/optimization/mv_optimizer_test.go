package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/portfoliolab/internal/domain"
)

// Two assets: 10% and 8% expected return, 20% and ~14% volatility.
func twoAssetEstimate(t *testing.T) ReturnEstimate {
	t.Helper()
	est, err := NewReturnEstimate([]string{"A", "B"}, []float64{0.10, 0.08}, [][]float64{
		{0.04, 0.006},
		{0.006, 0.02},
	})
	require.NoError(t, err)
	return est
}

func TestTangencyWeights_TwoAssets(t *testing.T) {
	est := twoAssetEstimate(t)

	w, err := TangencyWeights(est.Mu, est.Cov, 0.02)
	require.NoError(t, err)

	// Σ⁻¹(μ-rf) ∝ [0.00124, 0.00192].
	assert.InDelta(t, 0.00124/0.00316, w[0], 1e-9)
	assert.InDelta(t, 0.00192/0.00316, w[1], 1e-9)
	assert.InDelta(t, 1.0, sum(w), 1e-9)

	// First-order condition: Σw is proportional to μ-rf.
	var sw mat.VecDense
	sw.MulVec(est.Cov, mat.NewVecDense(2, w))
	assert.InDelta(t, sw.AtVec(0)/0.08, sw.AtVec(1)/0.06, 1e-9)
}

func TestTangencyWeights_BeatsEveryOtherTwoAssetMix(t *testing.T) {
	est := twoAssetEstimate(t)
	w, err := TangencyWeights(est.Mu, est.Cov, 0.02)
	require.NoError(t, err)

	best := sharpe(est, w, 0.02)
	for a := 0.0; a <= 1.0; a += 0.01 {
		assert.LessOrEqual(t, sharpe(est, []float64{a, 1 - a}, 0.02), best+1e-12)
	}
}

func TestTangencyWeights_DegenerateDenominator(t *testing.T) {
	est := twoAssetEstimate(t)

	// Every asset earns exactly the risk-free rate.
	_, err := TangencyWeights([]float64{0.03, 0.03}, est.Cov, 0.03)
	assert.ErrorIs(t, err, domain.ErrDegenerateDenominator)
}

func TestTangencyWeights_SingularCovariance(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{
		0.04, 0.04,
		0.04, 0.04,
	})
	_, err := TangencyWeights([]float64{0.10, 0.08}, cov, 0.02)
	assert.ErrorIs(t, err, domain.ErrSingularMatrix)
}

func TestGMVWeights_TwoAssets(t *testing.T) {
	est := twoAssetEstimate(t)

	w, err := GMVWeights(est.Cov)
	require.NoError(t, err)

	// Closed form: (σ2² - σ12) / (σ1² + σ2² - 2σ12).
	assert.InDelta(t, 0.014/0.048, w[0], 1e-9)
	assert.InDelta(t, 0.034/0.048, w[1], 1e-9)
	assert.InDelta(t, 1.0, sum(w), 1e-9)

	minVar := est.PortfolioVariance(w)
	for a := 0.0; a <= 1.0; a += 0.01 {
		assert.GreaterOrEqual(t, est.PortfolioVariance([]float64{a, 1 - a}), minVar-1e-12)
	}
}

func TestGMVWeights_SingularCovariance(t *testing.T) {
	cov := mat.NewSymDense(3, []float64{
		0.04, 0.04, 0.01,
		0.04, 0.04, 0.01,
		0.01, 0.01, 0.02,
	})
	_, err := GMVWeights(cov)
	assert.ErrorIs(t, err, domain.ErrSingularMatrix)
}

func TestConstrainedMaxSharpe_RespectsBounds(t *testing.T) {
	n := 12
	mu := make([]float64, n)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		mu[i] = 0.04 + 0.01*float64(i)
		cov.SetSym(i, i, 0.02+0.005*float64(i%4))
		for j := i + 1; j < n; j++ {
			cov.SetSym(i, j, 0.002)
		}
	}
	est := ReturnEstimate{Mu: mu, Cov: cov}

	w, err := ConstrainedMaxSharpe(mu, cov, 0.02, 0.10)
	require.NoError(t, err)
	require.Len(t, w, n)

	box := BoxConstraints{N: n, Upper: 0.10}
	assert.True(t, box.Feasible(w, 1e-6), "weights %v", w)
	assert.InDelta(t, 1.0, sum(w), 1e-6)

	equal := make([]float64, n)
	for i := range equal {
		equal[i] = 1 / float64(n)
	}
	assert.GreaterOrEqual(t, sharpe(est, w, 0.02), sharpe(est, equal, 0.02)-1e-9)
}

func TestConstrainedMaxSharpe_LooseCapMatchesTangency(t *testing.T) {
	est := twoAssetEstimate(t)

	tangency, err := TangencyWeights(est.Mu, est.Cov, 0.02)
	require.NoError(t, err)
	w, err := ConstrainedMaxSharpe(est.Mu, est.Cov, 0.02, 1.0)
	require.NoError(t, err)

	assert.InDelta(t, tangency[0], w[0], 1e-3)
	assert.InDelta(t, tangency[1], w[1], 1e-3)
}

func TestConstrainedMaxSharpe_InfeasibleBounds(t *testing.T) {
	mu := []float64{0.1, 0.1, 0.1, 0.1, 0.1}
	sym := mat.NewSymDense(5, nil)
	for i := 0; i < 5; i++ {
		sym.SetSym(i, i, 0.04)
	}

	_, err := ConstrainedMaxSharpe(mu, sym, 0.02, 0.10)
	assert.ErrorIs(t, err, domain.ErrInfeasibleBounds)
}

func TestConstrainedMaxSharpe_IterationLimit(t *testing.T) {
	est := twoAssetEstimate(t)

	_, err := constrainedMaxSharpe(est.Mu, est.Cov, 0.02, 1.0, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOptimizerNonConvergence)

	w, err := constrainedMaxSharpe(est.Mu, est.Cov, 0.02, 1.0, DefaultMaxIterations)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sum(w), 1e-6)
}
