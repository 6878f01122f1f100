package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/domain"
)

func day(i int) time.Time {
	return time.Date(2022, time.January, 3, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// rampBars produces n bars with a rising close and widening range.
func rampBars(n int) []domain.DailyBar {
	bars := make([]domain.DailyBar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = domain.DailyBar{
			Date:     day(i),
			Open:     c - 0.5,
			High:     c + 1 + 0.1*float64(i),
			Low:      c - 1,
			Close:    c,
			AdjClose: c,
			Volume:   1000 + 10*float64(i),
		}
	}
	return bars
}

func TestEngineer_DropsWarmUpRows(t *testing.T) {
	rows := Engineer(rampBars(30))

	// The 14-day windows are first defined on day 13.
	require.Len(t, rows, 30-13)
	assert.Equal(t, day(13), rows[0].Date)
	for _, r := range rows {
		for _, v := range r.Vector() {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestEngineer_Values(t *testing.T) {
	rows := Engineer(rampBars(20))
	r := rows[len(rows)-1] // day 19

	assert.Equal(t, 119.0, r.Close)
	assert.InDelta(t, 1.0, r.ChAdjClose, 1e-12)
	// Close - Low = 1, High - Low = 2 + 1.9.
	assert.InDelta(t, 1/3.9, r.RangeClose, 1e-12)
	// Open 118.5 is above the prior close 118.
	assert.Equal(t, 1.0, r.OpenHigher)
	// Rising series: short averages above long ones, current above short.
	assert.Equal(t, 1.0, r.VolumeUp)
	assert.Equal(t, 1.0, r.CloseUp)
	assert.Equal(t, 1.0, r.RangeUp)
	assert.Equal(t, 1.0, r.CurrVolUp)
	assert.Equal(t, 1.0, r.CurrCloseUp)
	assert.Equal(t, 1.0, r.CurrRangeUp)

	// Days 6..19: lowest low 105, highest high 119+1+1.9.
	assert.InDelta(t, 121.9-105, r.R14, 1e-9)
	assert.InDelta(t, 100*(119-105)/(121.9-105), r.SO, 1e-9)
}

func TestEngineer_DropsZeroRangeDays(t *testing.T) {
	bars := rampBars(20)
	bars[15].High = bars[15].Close
	bars[15].Low = bars[15].Close

	for _, r := range Engineer(bars) {
		assert.NotEqual(t, day(15), r.Date)
	}
}

func TestEngineer_Empty(t *testing.T) {
	assert.Empty(t, Engineer(nil))
	assert.Empty(t, Engineer(rampBars(10)))
}

func TestMostCorrelated(t *testing.T) {
	frame := domain.PriceFrame{
		Dates:   []time.Time{day(0), day(1), day(2), day(3), day(4)},
		Tickers: []string{"BASE", "TWIN", "ANTI"},
		Closes: [][]float64{
			{100, 50, 80},
			{101, 50.5, 79},
			{99, 49.6, 81},
			{102, 51.2, 78},
			{103, 51.7, 77.5},
		},
	}

	partner, corr, err := MostCorrelated("BASE", frame)
	require.NoError(t, err)
	assert.Equal(t, "TWIN", partner)
	assert.Greater(t, corr, 0.9)

	_, _, err = MostCorrelated("MISSING", frame)
	assert.ErrorIs(t, err, domain.ErrDataInsufficiency)

	single := domain.PriceFrame{Dates: frame.Dates, Tickers: []string{"BASE"}, Closes: [][]float64{{1}, {2}, {3}, {4}, {5}}}
	_, _, err = MostCorrelated("BASE", single)
	assert.ErrorIs(t, err, domain.ErrDataInsufficiency)
}

func TestMergeAndSplitHoldout(t *testing.T) {
	dates := []time.Time{
		time.Date(2022, 12, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2022, 12, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	changes := []float64{1, -1, 2, 0, 3}
	var base, partner []Row
	for i, d := range dates {
		base = append(base, Row{Date: d, ChAdjClose: changes[i], AdjClose: 10 + float64(i), CloseUp: 1})
		if i != 1 {
			partner = append(partner, Row{Date: d})
		}
	}

	merged := Merge(base, partner)
	require.Len(t, merged, 4)

	model, holdout := SplitHoldout(merged, DefaultSplitParams())

	require.Equal(t, 1, model.Len())
	assert.Equal(t, []int{0}, model.Y)

	require.Equal(t, 3, holdout.Len())
	// Next-row changes: 0 (not up), 3 (up), none.
	assert.Equal(t, []int{0, 1, 0}, holdout.Y)
	assert.Equal(t, []float64{12, 13, 14}, holdout.Closes)
	assert.Len(t, holdout.X[0], 2*len(FeatureNames))
	assert.Len(t, ColumnNames("AAPL", "MSFT"), 20)
	assert.Equal(t, "MSFT_R14", ColumnNames("AAPL", "MSFT")[19])
}

func TestMomentumClassifier(t *testing.T) {
	x := [][]float64{
		{0, 0, 0, 1},
		{0, 0, 0, 0},
		{0},
	}
	assert.Equal(t, []int{1, 0, 0}, MomentumClassifier{}.Predict(x))
	assert.NoError(t, MomentumClassifier{}.Fit(Dataset{}))
}

func TestLogisticClassifier_LearnsSeparableSignal(t *testing.T) {
	ds := Dataset{}
	for i := 0; i < 200; i++ {
		v := float64(i%20) - 9.5
		ds.X = append(ds.X, []float64{v, 3})
		if v > 0 {
			ds.Y = append(ds.Y, 1)
		} else {
			ds.Y = append(ds.Y, 0)
		}
	}

	clf := NewLogisticClassifier(0.01)
	require.NoError(t, clf.Fit(ds))

	pred := clf.Predict([][]float64{{-5, 3}, {5, 3}})
	assert.Equal(t, []int{0, 1}, pred)

	m, err := Evaluate(ds.Y, clf.Predict(ds.X))
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Accuracy)
}

func TestLogisticClassifier_EmptyTrainingSet(t *testing.T) {
	err := NewLogisticClassifier(0.01).Fit(Dataset{})
	assert.ErrorIs(t, err, domain.ErrDataInsufficiency)
}

func TestEvaluate(t *testing.T) {
	m, err := Evaluate([]int{1, 0, 1, 0}, []int{1, 1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, m.Precision, 1e-12)
	assert.InDelta(t, 0.5, m.MSE, 1e-12)

	m, err = Evaluate([]int{1, 1}, []int{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Precision)

	_, err = Evaluate([]int{1}, []int{1, 0})
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	_, err = Evaluate(nil, nil)
	assert.ErrorIs(t, err, domain.ErrDataInsufficiency)
}
