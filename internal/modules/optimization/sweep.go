package optimization

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/domain"
)

// Defaults for SweepParams.
const (
	DefaultFirstYear    = 2010
	DefaultLastYear     = 2023
	DefaultWindowLength = 2
)

// SweepParams selects the windows of a sweep.
type SweepParams struct {
	FirstYear    int `json:"first_year"`
	LastYear     int `json:"last_year"`
	WindowLength int `json:"window_length"`
}

// DefaultSweepParams returns the 2010-2023 schedule of 2-year-span windows.
func DefaultSweepParams() SweepParams {
	return SweepParams{
		FirstYear:    DefaultFirstYear,
		LastYear:     DefaultLastYear,
		WindowLength: DefaultWindowLength,
	}
}

// Windows expands the parameters into the window schedule.
func (p SweepParams) Windows() []Window {
	return GenerateWindows(p.FirstYear, p.LastYear, p.WindowLength)
}

// WindowResult is the estimate and allocation computed for one window.
type WindowResult struct {
	Window     Window
	Estimate   ReturnEstimate
	RiskFree   float64
	Allocation AllocationResult
}

// SweepResult holds the per-window results in schedule order. Windows that
// could not be estimated are listed in Skipped with their reason.
type SweepResult struct {
	Windows []WindowResult
	Skipped map[string]error
	index   map[string]int
}

func newSweepResult() *SweepResult {
	return &SweepResult{
		Skipped: make(map[string]error),
		index:   make(map[string]int),
	}
}

func (r *SweepResult) add(wr WindowResult) {
	r.index[wr.Window.Label()] = len(r.Windows)
	r.Windows = append(r.Windows, wr)
}

// Lookup returns the result for a window label.
func (r *SweepResult) Lookup(label string) (WindowResult, bool) {
	i, ok := r.index[label]
	if !ok {
		return WindowResult{}, false
	}
	return r.Windows[i], true
}

// Labels returns the computed window labels in order.
func (r *SweepResult) Labels() []string {
	labels := make([]string, len(r.Windows))
	for i, w := range r.Windows {
		labels[i] = w.Window.Label()
	}
	return labels
}

// Scheduler runs the allocation engine over a schedule of windows.
type Scheduler struct {
	engine   *Engine
	rates    domain.RateProvider
	observer SweepObserver
	log      zerolog.Logger
}

// NewScheduler creates a sweep scheduler.
func NewScheduler(engine *Engine, rates domain.RateProvider, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		rates:    rates,
		observer: noopObserver{},
		log:      log.With().Str("component", "sweep_scheduler").Logger(),
	}
}

// Engine returns the allocation engine used for every window.
func (s *Scheduler) Engine() *Engine {
	return s.engine
}

// SetObserver installs an observer for per-window outcomes.
func (s *Scheduler) SetObserver(o SweepObserver) {
	if o == nil {
		o = noopObserver{}
	}
	s.observer = o
}

// Run estimates and allocates every window of the schedule. Windows are
// evaluated independently; a window lacking data is skipped and recorded.
// Only cancellation aborts the sweep.
func (s *Scheduler) Run(ctx context.Context, frame domain.PriceFrame, params SweepParams) (*SweepResult, error) {
	windows := params.Windows()
	if len(windows) == 0 {
		return nil, fmt.Errorf("no windows for %d-%d with length %d: %w", params.FirstYear, params.LastYear, params.WindowLength, domain.ErrPrecondition)
	}

	result := newSweepResult()
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		label := w.Label()
		start := time.Now()
		wr, err := s.runWindow(ctx, frame, w)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Str("window", label).Msg("Skipping window")
			result.Skipped[label] = err
			s.observer.ObserveSkippedWindow(label, err)
			continue
		}

		elapsed := time.Since(start)
		result.add(wr)
		s.observer.ObserveWindow(label, elapsed, wr.Allocation.Failures)
		s.log.Debug().
			Str("window", label).
			Int("months", wr.Estimate.Months).
			Float64("risk_free", wr.RiskFree).
			Int("failed_methods", len(wr.Allocation.Failures)).
			Dur("elapsed", elapsed).
			Msg("Window allocated")
	}

	s.log.Info().
		Int("windows", len(result.Windows)).
		Int("skipped", len(result.Skipped)).
		Msg("Sweep complete")

	return result, nil
}

func (s *Scheduler) runWindow(ctx context.Context, frame domain.PriceFrame, w Window) (WindowResult, error) {
	est, err := EstimateReturns(frame.Between(w.From(), w.To()))
	if err != nil {
		return WindowResult{}, fmt.Errorf("window %s: %w", w.Label(), err)
	}
	rf, err := s.rates.GetRate(ctx, w.From(), w.To())
	if err != nil {
		return WindowResult{}, fmt.Errorf("window %s: risk-free rate: %w", w.Label(), err)
	}
	return WindowResult{
		Window:     w,
		Estimate:   est,
		RiskFree:   rf,
		Allocation: s.engine.Allocate(est, rf),
	}, nil
}
