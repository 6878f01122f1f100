// Package metrics exposes Prometheus metrics for sweeps, backtests and
// simulations.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/internal/modules/optimization"
)

const namespace = "portfoliolab"

// Registry holds all metrics of the process on a private registry.
type Registry struct {
	registry *prometheus.Registry

	WindowDuration prometheus.Histogram
	Windows        *prometheus.CounterVec
	MethodFailures *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	Runs           *prometheus.CounterVec
}

// NewRegistry creates the metrics and registers them together with the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		WindowDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "window_duration_seconds",
				Help:      "Duration of estimating and allocating one window",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		Windows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "windows_total",
				Help:      "Windows processed by outcome",
			},
			[]string{"outcome"},
		),

		MethodFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "method_failures_total",
				Help:      "Allocation method failures by method and reason",
			},
			[]string{"method", "reason"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of complete runs by kind",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Runs by kind and result",
			},
			[]string{"kind", "result"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.WindowDuration,
		r.Windows,
		r.MethodFailures,
		r.RunDuration,
		r.Runs,
	)
	return r
}

// ObserveWindow implements optimization.SweepObserver.
func (r *Registry) ObserveWindow(_ string, elapsed time.Duration, failures map[optimization.Method]error) {
	r.WindowDuration.Observe(elapsed.Seconds())
	r.Windows.WithLabelValues("allocated").Inc()
	for m, err := range failures {
		r.MethodFailures.WithLabelValues(string(m), Reason(err)).Inc()
	}
}

// ObserveSkippedWindow implements optimization.SweepObserver.
func (r *Registry) ObserveSkippedWindow(_ string, _ error) {
	r.Windows.WithLabelValues("skipped").Inc()
}

// ObserveRun records a finished run.
func (r *Registry) ObserveRun(kind string, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.RunDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	r.Runs.WithLabelValues(kind, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Reason maps an error to a low-cardinality label.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrSingularMatrix):
		return "singular_matrix"
	case errors.Is(err, domain.ErrDegenerateDenominator):
		return "degenerate_denominator"
	case errors.Is(err, domain.ErrOptimizerNonConvergence):
		return "non_convergence"
	case errors.Is(err, domain.ErrInfeasibleBounds):
		return "infeasible_bounds"
	case errors.Is(err, domain.ErrDataInsufficiency):
		return "data_insufficiency"
	default:
		return "other"
	}
}

var _ optimization.SweepObserver = (*Registry)(nil)
