package domain

import "errors"

var (
	// ErrDataInsufficiency marks a window or ticker set that cannot produce
	// return statistics (fewer than 2 tickers, or no observations).
	ErrDataInsufficiency = errors.New("insufficient data")
	// ErrSingularMatrix marks a covariance or augmented system that cannot be inverted.
	ErrSingularMatrix = errors.New("singular matrix")
	// ErrDegenerateDenominator marks a tangency portfolio whose normalizer is ~0.
	ErrDegenerateDenominator = errors.New("degenerate normalizing denominator")
	// ErrOptimizerNonConvergence marks a constrained optimization that did not converge.
	ErrOptimizerNonConvergence = errors.New("optimizer did not converge")
	// ErrInfeasibleBounds marks box bounds that cannot sum to one.
	ErrInfeasibleBounds = errors.New("weight bounds infeasible")
	// ErrPrecondition marks caller errors such as misaligned inputs.
	ErrPrecondition = errors.New("precondition violated")
)
