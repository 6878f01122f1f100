package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/database"
	"github.com/aristath/portfoliolab/internal/modules/optimization"
	"github.com/aristath/portfoliolab/internal/services"
	testutil "github.com/aristath/portfoliolab/internal/testing"
)

type countingJob struct {
	mu    sync.Mutex
	runs  int
	block chan struct{}
	err   error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.mu.Lock()
	j.runs++
	j.mu.Unlock()
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	assert.Equal(t, 1, s.Entries())

	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}
	assert.EqualError(t, s.RunNow(job), "boom")
	assert.Equal(t, 1, job.count())
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{block: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		s.execute(job)
		close(done)
	}()
	require.Eventually(t, func() bool { return job.count() == 1 }, time.Second, time.Millisecond)

	s.execute(job) // returns immediately while the first run blocks
	assert.Equal(t, 1, job.count())

	close(job.block)
	<-done
	job.block = nil
	s.execute(job)
	assert.Equal(t, 2, job.count())
}

type fakeSweepRunner struct {
	err error
	req services.SweepRequest
}

func (f *fakeSweepRunner) RunSweep(_ context.Context, req services.SweepRequest) (*services.SweepOutcome, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &services.SweepOutcome{RunID: "run-1", Sweep: &optimization.SweepResult{}}, nil
}

type fakeExporter struct {
	runIDs []string
	err    error
}

func (f *fakeExporter) ExportRun(_ context.Context, runID string) (string, error) {
	f.runIDs = append(f.runIDs, runID)
	return "runs/" + runID + ".tar.gz", f.err
}

func TestRefreshSweepJob(t *testing.T) {
	runner := &fakeSweepRunner{}
	exporter := &fakeExporter{}
	req := services.SweepRequest{Tickers: []string{"AAA", "BBB"}, Sweep: optimization.DefaultSweepParams(), Lookahead: 3}

	job := NewRefreshSweepJob(runner, req, time.Minute, zerolog.Nop())
	job.SetExporter(exporter)
	assert.Equal(t, "refresh_sweep", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, req, runner.req)
	assert.Equal(t, []string{"run-1"}, exporter.runIDs)

	exporter.err = errors.New("upload failed")
	assert.NoError(t, job.Run(), "export failures do not fail the job")

	runner.err = errors.New("no data")
	assert.Error(t, job.Run())
}

func TestCheckDatabasesJob(t *testing.T) {
	results := testutil.NewTestDB(t, database.NameResults)
	cache := testutil.NewTestDB(t, database.NameCache)

	job := NewCheckDatabasesJob(zerolog.Nop(), results, nil, cache)
	assert.Equal(t, "check_databases", job.Name())
	assert.NoError(t, job.Run())
}

type fakePruner struct {
	cutoff time.Time
}

func (f *fakePruner) DeleteOlderThan(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 2, nil
}

func TestPruneRunsJob(t *testing.T) {
	pruner := &fakePruner{}
	job := NewPruneRunsJob(pruner, 30*24*time.Hour, zerolog.Nop())
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run())
	assert.Equal(t, now.Add(-30*24*time.Hour), pruner.cutoff)

	disabled := &fakePruner{}
	require.NoError(t, NewPruneRunsJob(disabled, 0, zerolog.Nop()).Run())
	assert.True(t, disabled.cutoff.IsZero())
}
