// Package services wires data loading, the analysis modules and run
// persistence into end-to-end pipelines shared by the CLI, the API and
// scheduled jobs.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/internal/modules/features"
	"github.com/aristath/portfoliolab/internal/modules/marketdata"
	"github.com/aristath/portfoliolab/internal/modules/optimization"
	"github.com/aristath/portfoliolab/internal/modules/reports"
	"github.com/aristath/portfoliolab/internal/modules/simulation"
	"github.com/aristath/portfoliolab/internal/utils"
)

// TickerSource supplies the default ticker universe.
type TickerSource interface {
	GetDowJonesTickers(ctx context.Context) ([]string, error)
}

// RunObserver is notified when a pipeline finishes.
type RunObserver interface {
	ObserveRun(kind string, elapsed time.Duration, err error)
}

// SweepRequest selects the tickers and windows of a sweep. Lookahead > 0
// also backtests the sweep.
type SweepRequest struct {
	Tickers   []string                 `json:"tickers"`
	Sweep     optimization.SweepParams `json:"sweep"`
	Lookahead int                      `json:"lookahead"`
}

// SweepOutcome is the result of RunSweep.
type SweepOutcome struct {
	RunID    string
	Tickers  []string
	Missing  []string
	Sweep    *optimization.SweepResult
	Backtest *optimization.BacktestReport
}

// SimulationRequest configures the long-short simulation pipeline.
type SimulationRequest struct {
	Tickers    []string             `json:"tickers"`
	BaseTicker string               `json:"base_ticker"`
	Split      features.SplitParams `json:"split"`
	Classifier features.Classifier  `json:"-"`
}

// SimulationOutcome is the result of RunSimulation.
type SimulationOutcome struct {
	RunID       string
	Base        string
	Partner     string
	Correlation float64
	Classifier  string
	Metrics     features.Metrics
	Result      *simulation.Result
	Summaries   []simulation.Summary
}

// AnalysisService runs sweeps, backtests and simulations end to end.
type AnalysisService struct {
	loader     *marketdata.Loader
	tickers    TickerSource
	scheduler  *optimization.Scheduler
	backtester *optimization.Backtester
	simulator  *simulation.Simulator
	repo       *reports.Repository // optional
	observers  []RunObserver
	log        zerolog.Logger
}

// NewAnalysisService creates the service. tickers and repo may be nil.
func NewAnalysisService(
	loader *marketdata.Loader,
	tickers TickerSource,
	scheduler *optimization.Scheduler,
	backtester *optimization.Backtester,
	simulator *simulation.Simulator,
	repo *reports.Repository,
	log zerolog.Logger,
) *AnalysisService {
	return &AnalysisService{
		loader:     loader,
		tickers:    tickers,
		scheduler:  scheduler,
		backtester: backtester,
		simulator:  simulator,
		repo:       repo,
		log:        log.With().Str("service", "analysis").Logger(),
	}
}

// AddRunObserver registers an observer for finished runs.
func (s *AnalysisService) AddRunObserver(o RunObserver) {
	s.observers = append(s.observers, o)
}

func (s *AnalysisService) notify(kind string, elapsed time.Duration, err error) {
	for _, o := range s.observers {
		o.ObserveRun(kind, elapsed, err)
	}
}

// ResolveTickers returns the requested tickers, or the default universe
// when none were requested.
func (s *AnalysisService) ResolveTickers(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	if s.tickers == nil {
		return nil, fmt.Errorf("no tickers requested and no ticker source configured: %w", domain.ErrPrecondition)
	}
	tickers, err := s.tickers.GetDowJonesTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get default tickers: %w", err)
	}
	return tickers, nil
}

// RunSweep loads prices, allocates every window, optionally backtests the
// result and stores the run when a repository is configured.
func (s *AnalysisService) RunSweep(ctx context.Context, req SweepRequest) (out *SweepOutcome, err error) {
	start := time.Now()
	kind := string(reports.KindSweep)
	if req.Lookahead > 0 {
		kind = string(reports.KindBacktest)
	}
	timer := utils.NewTimer(kind, s.log)
	defer func() {
		fields := map[string]interface{}{"error": err != nil}
		if out != nil {
			fields["windows"] = len(out.Sweep.Windows)
			fields["run_id"] = out.RunID
		}
		timer.StopWithFields(fields)
		s.notify(kind, time.Since(start), err)
	}()

	tickers, err := s.ResolveTickers(ctx, req.Tickers)
	if err != nil {
		return nil, err
	}

	from := time.Date(req.Sweep.FirstYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(req.Sweep.LastYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	loaded, err := s.loader.Load(ctx, tickers, from, to)
	if err != nil {
		return nil, err
	}

	sweep, err := s.scheduler.Run(ctx, loaded.Frame, req.Sweep)
	if err != nil {
		return nil, err
	}
	out = &SweepOutcome{Tickers: loaded.Frame.Tickers, Missing: loaded.Missing, Sweep: sweep}

	if req.Lookahead > 0 {
		out.Backtest, err = s.backtester.Run(sweep, loaded.Frame, req.Lookahead)
		if err != nil {
			return nil, err
		}
	}

	if s.repo != nil {
		params := struct {
			Engine    optimization.EngineParams `json:"engine"`
			Sweep     optimization.SweepParams  `json:"sweep"`
			Lookahead int                       `json:"lookahead,omitempty"`
			Missing   []string                  `json:"missing,omitempty"`
		}{s.scheduler.Engine().Params(), req.Sweep, req.Lookahead, loaded.Missing}

		if out.Backtest != nil {
			out.RunID, err = s.repo.SaveBacktest(out.Tickers, params, sweep, out.Backtest)
		} else {
			out.RunID, err = s.repo.SaveSweep(out.Tickers, params, sweep)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to store run: %w", err)
		}
	}

	return out, nil
}

// RunSimulation engineers features for the base ticker and its most
// correlated partner, fits the classifier on the model years, predicts the
// holdout year and simulates the long-short strategy on those predictions.
func (s *AnalysisService) RunSimulation(ctx context.Context, req SimulationRequest) (out *SimulationOutcome, err error) {
	start := time.Now()
	timer := utils.NewTimer("simulation", s.log)
	defer func() {
		timer.StopWithFields(map[string]interface{}{"error": err != nil, "base": req.BaseTicker})
		s.notify(string(reports.KindSimulation), time.Since(start), err)
	}()

	if req.BaseTicker == "" {
		return nil, fmt.Errorf("base ticker required: %w", domain.ErrPrecondition)
	}
	classifier := req.Classifier
	if classifier == nil {
		classifier = features.MomentumClassifier{}
	}

	tickers, err := s.ResolveTickers(ctx, req.Tickers)
	if err != nil {
		return nil, err
	}
	tickers = withTicker(tickers, req.BaseTicker)

	first, last := req.Split.TrainStartYear, req.Split.HoldoutYear
	if req.Split.TrainEndYear > last {
		last = req.Split.TrainEndYear
	}
	from := time.Date(first, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(last, time.December, 31, 0, 0, 0, 0, time.UTC)
	loaded, err := s.loader.Load(ctx, tickers, from, to)
	if err != nil {
		return nil, err
	}
	baseBars, ok := loaded.Bars[req.BaseTicker]
	if !ok {
		return nil, fmt.Errorf("no price data for base ticker %s: %w", req.BaseTicker, domain.ErrDataInsufficiency)
	}

	partner, corr, err := features.MostCorrelated(req.BaseTicker, loaded.Frame)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("base", req.BaseTicker).Str("partner", partner).Float64("correlation", corr).Msg("Selected partner ticker")

	rows := features.Merge(features.Engineer(baseBars), features.Engineer(loaded.Bars[partner]))
	model, holdout := features.SplitHoldout(rows, req.Split)
	if model.Len() == 0 || holdout.Len() == 0 {
		return nil, fmt.Errorf("%d model rows, %d holdout rows: %w", model.Len(), holdout.Len(), domain.ErrDataInsufficiency)
	}

	if err := classifier.Fit(model); err != nil {
		return nil, fmt.Errorf("failed to fit %s classifier: %w", classifier.Name(), err)
	}
	predictions := classifier.Predict(holdout.X)
	metrics, err := features.Evaluate(holdout.Y, predictions)
	if err != nil {
		return nil, err
	}

	result, err := s.simulator.Run(holdout.Dates, holdout.Closes, predictions)
	if err != nil {
		return nil, err
	}

	out = &SimulationOutcome{
		Base:        req.BaseTicker,
		Partner:     partner,
		Correlation: corr,
		Classifier:  classifier.Name(),
		Metrics:     metrics,
		Result:      result,
		Summaries:   result.Summaries(),
	}

	if s.repo != nil {
		params := struct {
			Base       string               `json:"base"`
			Partner    string               `json:"partner"`
			Classifier string               `json:"classifier"`
			Split      features.SplitParams `json:"split"`
			Metrics    features.Metrics     `json:"metrics"`
		}{req.BaseTicker, partner, classifier.Name(), req.Split, metrics}
		out.RunID, err = s.repo.SaveSimulation([]string{req.BaseTicker, partner}, params, result)
		if err != nil {
			return nil, fmt.Errorf("failed to store run: %w", err)
		}
	}

	return out, nil
}

func withTicker(tickers []string, t string) []string {
	for _, x := range tickers {
		if x == t {
			return tickers
		}
	}
	return append(append([]string(nil), tickers...), t)
}
