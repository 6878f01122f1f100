package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSimulatePortfolios_WeightsOnSimplex(t *testing.T) {
	est := twoAssetEstimate(t)

	sims := SimulatePortfolios(est.Mu, est.Cov, 500, 100)
	require.Equal(t, 500, sims.Len())

	for i := 0; i < sims.Len(); i++ {
		w := sims.Row(i)
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
		}
		assert.InDelta(t, 1.0, sum(w), 1e-12)
		assert.InDelta(t, est.PortfolioReturn(w), sims.Returns[i], 1e-12)
		assert.InDelta(t, est.PortfolioVariance(w), sims.Variances[i], 1e-12)
	}
}

func TestSimulatePortfolios_Deterministic(t *testing.T) {
	est := twoAssetEstimate(t)

	a := SimulatePortfolios(est.Mu, est.Cov, 200, 100)
	b := SimulatePortfolios(est.Mu, est.Cov, 200, 100)
	c := SimulatePortfolios(est.Mu, est.Cov, 200, 101)

	assert.True(t, mat.Equal(a.Weights, b.Weights))
	assert.False(t, mat.Equal(a.Weights, c.Weights))
}

func TestSimulatePortfolios_Empty(t *testing.T) {
	est := twoAssetEstimate(t)

	sims := SimulatePortfolios(est.Mu, est.Cov, 0, 100)
	assert.Equal(t, 0, sims.Len())

	_, ok := sims.MinVariance()
	assert.False(t, ok)
	_, _, ok = sims.MaxSharpe(0.02)
	assert.False(t, ok)
}

func TestSimulatedPortfolios_MaxSharpeSkipsZeroVariance(t *testing.T) {
	sims := SimulatedPortfolios{
		Weights:   mat.NewDense(3, 1, []float64{1, 1, 1}),
		Returns:   []float64{0.5, 0.10, 0.08},
		Variances: []float64{0, 0.04, 0.01},
	}

	idx, sr, ok := sims.MaxSharpe(0.02)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.InDelta(t, 0.6, sr, 1e-12)

	idx, ok = sims.MinVariance()
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestSimulatedPortfolios_MinVarianceFirstOnTies(t *testing.T) {
	sims := SimulatedPortfolios{
		Weights:   mat.NewDense(3, 1, []float64{1, 1, 1}),
		Returns:   []float64{0, 0, 0},
		Variances: []float64{0.02, 0.01, 0.01},
	}

	idx, ok := sims.MinVariance()
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.False(t, math.IsNaN(sims.Variances[idx]))
}
