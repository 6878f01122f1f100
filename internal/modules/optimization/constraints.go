// Package optimization estimates window statistics, computes the five
// allocation methods per window and backtests stale allocations.
package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/portfoliolab/internal/domain"
)

// DefaultMaxWeight caps any single position in the constrained allocation.
const DefaultMaxWeight = 0.10

const (
	projectionTolerance = 1e-12
	projectionMaxIter   = 200
)

// BoxConstraints describes the feasible set {w : Σw = 1, 0 ≤ w_i ≤ upper}.
type BoxConstraints struct {
	N     int
	Upper float64
}

// NewBoxConstraints validates that the capped simplex is non-empty.
func NewBoxConstraints(n int, upper float64) (BoxConstraints, error) {
	if n <= 0 {
		return BoxConstraints{}, fmt.Errorf("no assets: %w", domain.ErrDataInsufficiency)
	}
	if upper <= 0 || float64(n)*upper < 1-projectionTolerance {
		return BoxConstraints{}, fmt.Errorf("%d assets with max weight %.4f cannot sum to 1: %w", n, upper, domain.ErrInfeasibleBounds)
	}
	return BoxConstraints{N: n, Upper: math.Min(upper, 1)}, nil
}

// Project maps x onto the capped simplex. It finds τ with
// Σ clip(x_i - τ, 0, upper) = 1 by bisection.
func (c BoxConstraints) Project(x []float64) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range x {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	// At τ = lo-upper every term is clipped to upper (sum ≥ 1);
	// at τ = hi every term is 0.
	lo -= c.Upper

	w := make([]float64, len(x))
	for iter := 0; iter < projectionMaxIter; iter++ {
		tau := (lo + hi) / 2
		sum := c.fill(w, x, tau)
		if math.Abs(sum-1) < projectionTolerance {
			break
		}
		if sum > 1 {
			lo = tau
		} else {
			hi = tau
		}
	}
	c.normalize(w)
	return w
}

func (c BoxConstraints) fill(w, x []float64, tau float64) float64 {
	var sum float64
	for i, v := range x {
		w[i] = math.Max(0, math.Min(v-tau, c.Upper))
		sum += w[i]
	}
	return sum
}

// normalize removes the residual bisection error while keeping the caps.
func (c BoxConstraints) normalize(w []float64) {
	var sum float64
	for _, v := range w {
		sum += v
	}
	diff := 1 - sum
	if diff == 0 {
		return
	}
	for i := range w {
		if diff > 0 && w[i] < c.Upper {
			add := math.Min(diff, c.Upper-w[i])
			w[i] += add
			diff -= add
		} else if diff < 0 && w[i] > 0 {
			sub := math.Min(-diff, w[i])
			w[i] -= sub
			diff += sub
		}
		if diff == 0 {
			return
		}
	}
}

// Feasible reports whether w satisfies the constraints within tol.
func (c BoxConstraints) Feasible(w []float64, tol float64) bool {
	if len(w) != c.N {
		return false
	}
	var sum float64
	for _, v := range w {
		if v < -tol || v > c.Upper+tol {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) <= tol
}
