package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// RunPruner deletes runs created before a cutoff.
type RunPruner interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// PruneRunsJob removes stored runs past their retention.
type PruneRunsJob struct {
	repo      RunPruner
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewPruneRunsJob creates a new PruneRunsJob. A non-positive retention
// keeps every run.
func NewPruneRunsJob(repo RunPruner, retention time.Duration, log zerolog.Logger) *PruneRunsJob {
	return &PruneRunsJob{
		repo:      repo,
		retention: retention,
		now:       time.Now,
		log:       log.With().Str("job", "prune_runs").Logger(),
	}
}

// Name returns the job name
func (j *PruneRunsJob) Name() string {
	return "prune_runs"
}

// Run executes the prune runs job
func (j *PruneRunsJob) Run() error {
	if j.retention <= 0 {
		return nil
	}
	n, err := j.repo.DeleteOlderThan(j.now().Add(-j.retention))
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info().Int64("deleted", n).Msg("Pruned old runs")
	}
	return nil
}
