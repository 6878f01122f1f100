package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/services"
)

// SweepRunner runs a sweep and stores the result.
type SweepRunner interface {
	RunSweep(ctx context.Context, req services.SweepRequest) (*services.SweepOutcome, error)
}

// RunExporter uploads a stored run.
type RunExporter interface {
	ExportRun(ctx context.Context, runID string) (string, error)
}

// RefreshSweepJob recomputes the configured sweep so that stored results
// pick up newly published prices and rates.
type RefreshSweepJob struct {
	runner   SweepRunner
	exporter RunExporter // optional
	request  services.SweepRequest
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRefreshSweepJob creates a new RefreshSweepJob
func NewRefreshSweepJob(runner SweepRunner, request services.SweepRequest, timeout time.Duration, log zerolog.Logger) *RefreshSweepJob {
	return &RefreshSweepJob{
		runner:  runner,
		request: request,
		timeout: timeout,
		log:     log.With().Str("job", "refresh_sweep").Logger(),
	}
}

// SetExporter exports each refreshed run.
func (j *RefreshSweepJob) SetExporter(e RunExporter) {
	j.exporter = e
}

// Name returns the job name
func (j *RefreshSweepJob) Name() string {
	return "refresh_sweep"
}

// Run executes the refresh sweep job
func (j *RefreshSweepJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	out, err := j.runner.RunSweep(ctx, j.request)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", out.RunID).
		Int("windows", len(out.Sweep.Windows)).
		Int("skipped", len(out.Sweep.Skipped)).
		Msg("Sweep refreshed")

	if j.exporter != nil && out.RunID != "" {
		key, err := j.exporter.ExportRun(ctx, out.RunID)
		if err != nil {
			// The run is stored; the next refresh uploads a new one.
			j.log.Warn().Err(err).Str("run_id", out.RunID).Msg("Failed to export run")
			return nil
		}
		j.log.Info().Str("key", key).Msg("Run exported")
	}
	return nil
}
