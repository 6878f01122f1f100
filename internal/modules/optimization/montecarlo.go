package optimization

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SimulatedPortfolios is a population of random long-only weight vectors
// with their expected returns and variances.
type SimulatedPortfolios struct {
	Weights   *mat.Dense // one portfolio per row
	Returns   []float64
	Variances []float64
}

// SimulatePortfolios draws numSimul weight vectors by normalizing N uniform
// draws by their sum. The generator is reseeded from seed on every call so
// each window sees the same draw sequence.
func SimulatePortfolios(mu []float64, cov mat.Symmetric, numSimul int, seed uint64) SimulatedPortfolios {
	n := len(mu)
	if numSimul <= 0 || n == 0 {
		return SimulatedPortfolios{}
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	raw := make([]float64, numSimul*n)
	for i := 0; i < numSimul; i++ {
		row := raw[i*n : (i+1)*n]
		for j := range row {
			row[j] = rng.Float64()
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	w := mat.NewDense(numSimul, n, raw)

	var rets mat.VecDense
	rets.MulVec(w, mat.NewVecDense(n, mu))

	// Row sums of (WΣ)∘W give w'Σw for every portfolio in one pass.
	var quad mat.Dense
	quad.Mul(w, cov)
	quad.MulElem(&quad, w)
	variances := make([]float64, numSimul)
	for i := range variances {
		variances[i] = floats.Sum(quad.RawRowView(i))
	}

	returns := make([]float64, numSimul)
	copy(returns, rets.RawVector().Data)

	return SimulatedPortfolios{Weights: w, Returns: returns, Variances: variances}
}

// Len returns the number of simulated portfolios.
func (s SimulatedPortfolios) Len() int {
	return len(s.Variances)
}

// Row returns a copy of the i-th weight vector.
func (s SimulatedPortfolios) Row(i int) []float64 {
	return mat.Row(nil, i, s.Weights)
}

// MinVariance returns the index of the portfolio with the lowest standard deviation.
func (s SimulatedPortfolios) MinVariance() (int, bool) {
	best := -1
	bestSD := math.Inf(1)
	for i, v := range s.Variances {
		sd := math.Sqrt(math.Max(v, 0))
		if sd < bestSD {
			best, bestSD = i, sd
		}
	}
	return best, best >= 0
}

// MaxSharpe returns the index of the portfolio with the highest Sharpe ratio.
// Zero-variance samples are excluded from the search.
func (s SimulatedPortfolios) MaxSharpe(rf float64) (int, float64, bool) {
	best := -1
	bestSR := math.Inf(-1)
	for i, v := range s.Variances {
		if !(v > 0) {
			continue
		}
		sr := (s.Returns[i] - rf) / math.Sqrt(v)
		if sr > bestSR {
			best, bestSR = i, sr
		}
	}
	return best, bestSR, best >= 0
}
