package optimization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/domain"
)

var sweepTickers = []string{"AAA", "BBB", "CCC", "DDD"}

func testScheduler(rates domain.RateProvider) *Scheduler {
	return NewScheduler(testEngine(1000, 0.5), rates, zerolog.Nop())
}

type recordingObserver struct {
	windows []string
	skipped []string
}

func (o *recordingObserver) ObserveWindow(window string, _ time.Duration, _ map[Method]error) {
	o.windows = append(o.windows, window)
}

func (o *recordingObserver) ObserveSkippedWindow(window string, _ error) {
	o.skipped = append(o.skipped, window)
}

func TestScheduler_RunDefaultSchedule(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2010, time.January, 1), date(2023, time.December, 31), 7)
	scheduler := testScheduler(domain.FixedRate(0.02))
	observer := &recordingObserver{}
	scheduler.SetObserver(observer)

	result, err := scheduler.Run(context.Background(), frame, DefaultSweepParams())
	require.NoError(t, err)

	require.Len(t, result.Windows, 12)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, "2010:2012", result.Labels()[0])
	assert.Equal(t, "2021:2023", result.Labels()[11])
	assert.Equal(t, result.Labels(), observer.windows)

	for _, wr := range result.Windows {
		assert.Equal(t, 35, wr.Estimate.Months, "window %s", wr.Window.Label())
		assert.Equal(t, 0.02, wr.RiskFree)
		for _, m := range Methods {
			if w, ok := wr.Allocation.Weights[m]; ok {
				assert.InDelta(t, 1.0, sum(w), 1e-6, "window %s method %s", wr.Window.Label(), m)
			}
		}
	}

	wr, ok := result.Lookup("2015:2017")
	require.True(t, ok)
	assert.Equal(t, Window{StartYear: 2015, EndYear: 2017}, wr.Window)
	_, ok = result.Lookup("2030:2032")
	assert.False(t, ok)
}

func TestScheduler_RunIsDeterministic(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2010, time.January, 1), date(2014, time.December, 31), 11)
	params := SweepParams{FirstYear: 2010, LastYear: 2014, WindowLength: 2}

	a, err := testScheduler(domain.FixedRate(0.01)).Run(context.Background(), frame, params)
	require.NoError(t, err)
	b, err := testScheduler(domain.FixedRate(0.01)).Run(context.Background(), frame, params)
	require.NoError(t, err)

	require.Len(t, a.Windows, 3)
	for i := range a.Windows {
		for _, m := range []Method{MinVarSim, MaxSRSim, MaxSRAct, GMVAct} {
			assert.Equal(t, a.Windows[i].Allocation.Weights[m], b.Windows[i].Allocation.Weights[m])
		}
	}
}

func TestScheduler_SkipsWindowsWithoutData(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2013, time.January, 1), date(2016, time.December, 31), 3)
	scheduler := testScheduler(domain.FixedRate(0.02))
	observer := &recordingObserver{}
	scheduler.SetObserver(observer)

	result, err := scheduler.Run(context.Background(), frame, SweepParams{FirstYear: 2010, LastYear: 2016, WindowLength: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, result.Skipped["2010:2012"], domain.ErrDataInsufficiency)
	assert.Equal(t, []string{"2010:2012"}, observer.skipped)
	assert.Equal(t, []string{"2011:2013", "2012:2014", "2013:2015", "2014:2016"}, result.Labels())
}

func TestScheduler_RateFailureSkipsWindow(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2010, time.January, 1), date(2013, time.December, 31), 5)
	boom := errors.New("rate service down")
	rates := domain.RateFunc(func(_ context.Context, from, _ time.Time) (float64, error) {
		if from.Year() == 2011 {
			return 0, boom
		}
		return 0.02, nil
	})

	result, err := testScheduler(rates).Run(context.Background(), frame, SweepParams{FirstYear: 2010, LastYear: 2013, WindowLength: 2})
	require.NoError(t, err)

	assert.ErrorIs(t, result.Skipped["2011:2013"], boom)
	assert.Equal(t, []string{"2010:2012"}, result.Labels())
}

func TestScheduler_RunCancelled(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2010, time.January, 1), date(2013, time.December, 31), 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testScheduler(domain.FixedRate(0.02)).Run(ctx, frame, DefaultSweepParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_RunEmptySchedule(t *testing.T) {
	_, err := testScheduler(domain.FixedRate(0.02)).Run(context.Background(), domain.PriceFrame{}, SweepParams{FirstYear: 2020, LastYear: 2020, WindowLength: 2})
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}
