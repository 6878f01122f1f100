package optimization

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/portfoliolab/internal/domain"
)

func runSweep(t *testing.T, frame domain.PriceFrame, params SweepParams) *SweepResult {
	t.Helper()
	result, err := testScheduler(domain.FixedRate(0.02)).Run(context.Background(), frame, params)
	require.NoError(t, err)
	return result
}

func TestBacktester_Run(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2010, time.January, 1), date(2023, time.December, 31), 21)
	sweep := runSweep(t, frame, DefaultSweepParams())

	report, err := NewBacktester(zerolog.Nop()).Run(sweep, frame, DefaultLookahead)
	require.NoError(t, err)

	require.Len(t, report.Records, 9)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, "2010:2012", report.Records[0].TrainingWindow)
	assert.Equal(t, "2013:2015", report.Records[0].InvestmentWindow)
	assert.Equal(t, "2018:2020", report.Records[8].TrainingWindow)
	assert.Equal(t, "2021:2023", report.Records[8].InvestmentWindow)

	for _, rec := range report.Records {
		train, ok := sweep.Lookup(rec.TrainingWindow)
		require.True(t, ok)
		invest, ok := sweep.Lookup(rec.InvestmentWindow)
		require.True(t, ok)

		w, err := ParseWindow(rec.InvestmentWindow)
		require.NoError(t, err)
		realized, err := RealizedReturns(frame.Between(w.From(), w.To()))
		require.NoError(t, err)
		assert.Equal(t, realized, rec.RealizedReturns)

		stale := train.Allocation.Weights[MaxSRAct]
		assert.InDelta(t, floats.Dot(stale, realized), rec.PrevMaxSharpeReturn, 1e-12)

		// The fresh weights are the investment window's own tangency portfolio.
		fresh := invest.Allocation.Weights[MaxSRAct]
		assert.InDelta(t, floats.Dot(fresh, realized), rec.NewMaxSharpeReturn, 1e-9)
	}
}

func TestBacktester_RunLookaheadOne(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2010, time.January, 1), date(2014, time.December, 31), 4)
	sweep := runSweep(t, frame, SweepParams{FirstYear: 2010, LastYear: 2014, WindowLength: 2})

	report, err := NewBacktester(zerolog.Nop()).Run(sweep, frame, 1)
	require.NoError(t, err)

	require.Len(t, report.Records, 2)
	assert.Equal(t, "2011:2013", report.Records[0].InvestmentWindow)
	assert.Equal(t, "2012:2014", report.Records[1].InvestmentWindow)
}

func TestBacktester_SkipsFailedStaleWeights(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2010, time.January, 1), date(2014, time.December, 31), 4)
	sweep := runSweep(t, frame, SweepParams{FirstYear: 2010, LastYear: 2014, WindowLength: 2})

	first := &sweep.Windows[0].Allocation
	delete(first.Weights, MaxSRAct)
	first.Failures[MaxSRAct] = domain.ErrSingularMatrix

	report, err := NewBacktester(zerolog.Nop()).Run(sweep, frame, 1)
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	assert.Equal(t, "2011:2013", report.Records[0].TrainingWindow)
	assert.ErrorIs(t, report.Skipped["2010:2012"], domain.ErrSingularMatrix)
}

func TestBacktester_RecordsSkippedInvestmentWindow(t *testing.T) {
	frame := syntheticFrame(sweepTickers, date(2010, time.January, 1), date(2014, time.December, 31), 4)
	full := runSweep(t, frame, SweepParams{FirstYear: 2010, LastYear: 2014, WindowLength: 2})
	require.Len(t, full.Windows, 3)

	// 2011:2013 failed estimation during the sweep.
	sweep := newSweepResult()
	sweep.add(full.Windows[0])
	sweep.add(full.Windows[2])
	sweep.Skipped["2011:2013"] = fmt.Errorf("12 monthly returns: %w", domain.ErrDataInsufficiency)

	report, err := NewBacktester(zerolog.Nop()).Run(sweep, frame, 1)
	require.NoError(t, err)

	assert.Empty(t, report.Records)
	require.Len(t, report.Skipped, 1)
	assert.ErrorIs(t, report.Skipped["2010:2012"], domain.ErrDataInsufficiency)
	assert.Contains(t, report.Skipped["2010:2012"].Error(), "2011:2013")

	// 2012:2014 has no investment window in the schedule at all.
	_, ok := report.Skipped["2012:2014"]
	assert.False(t, ok)
}

func TestBacktester_InvalidArguments(t *testing.T) {
	bt := NewBacktester(zerolog.Nop())

	_, err := bt.Run(nil, domain.PriceFrame{}, 3)
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	_, err = bt.Run(newSweepResult(), domain.PriceFrame{}, 0)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}

func TestRealizedReturns_PointToPoint(t *testing.T) {
	frame := domain.PriceFrame{
		Dates: []time.Time{
			date(2020, time.January, 2), date(2020, time.January, 31),
			date(2020, time.February, 14),
			date(2020, time.March, 31),
		},
		Tickers: []string{"A", "B"},
		Closes:  [][]float64{{50, 50}, {100, 40}, {500, 500}, {125, 30}},
	}

	realized, err := RealizedReturns(frame)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, -0.25}, realized, 1e-12)

	_, err = RealizedReturns(frame.Between(date(2020, time.January, 1), date(2020, time.January, 31)))
	assert.ErrorIs(t, err, domain.ErrDataInsufficiency)
}
