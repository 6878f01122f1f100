package news

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/internal/modules/textmetrics"
)

type fakeSource struct {
	headlines map[string][]string
	errs      map[string]error
}

func (f *fakeSource) GetHeadlines(_ context.Context, ticker string) ([]domain.Headline, error) {
	if err := f.errs[ticker]; err != nil {
		return nil, err
	}
	var out []domain.Headline
	for _, title := range f.headlines[ticker] {
		out = append(out, domain.Headline{Ticker: ticker, Title: title})
	}
	return out, nil
}

func toneScorer() *ToneScorer {
	return NewToneScorer(textmetrics.Dictionaries{
		Positive: textmetrics.NewDictionary("beats", "strong", "gains"),
		Negative: textmetrics.NewDictionary("warns", "losses", "downgrade"),
	})
}

func TestToneScorer(t *testing.T) {
	s := toneScorer()

	tests := []struct {
		text     string
		expected float64
	}{
		{"Apple beats estimates on strong demand", 1},
		{"Supplier warns of losses", -1},
		{"Strong gains despite downgrade", 1.0 / 3},
		{"Shares flat", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, s.Score(tt.text), 1e-12, tt.text)
	}
}

func TestAnalyzer_FetchAndAverage(t *testing.T) {
	source := &fakeSource{
		headlines: map[string][]string{
			"AAPL": {"Apple beats estimates", "Supplier warns of losses", "Shares flat"},
			"MSFT": {"Strong cloud gains"},
		},
		errs: map[string]error{"XOM": errors.New("blocked")},
	}

	scored, err := NewAnalyzer(source, toneScorer(), 0, zerolog.Nop()).
		Fetch(context.Background(), []string{"MSFT", "XOM", "AAPL"})
	require.NoError(t, err)

	require.Len(t, scored, 4)
	assert.Equal(t, "MSFT", scored[0].Ticker)
	assert.Equal(t, 1.0, scored[0].Score)

	avg := AverageScores(scored)
	require.Len(t, avg, 2)
	assert.Equal(t, TickerScore{Ticker: "AAPL", Headlines: 3, Average: 0}, avg[0])
	assert.Equal(t, "MSFT", avg[1].Ticker)
	assert.Equal(t, 1.0, avg[1].Average)
}

func TestAnalyzer_Errors(t *testing.T) {
	a := NewAnalyzer(&fakeSource{}, toneScorer(), 1, zerolog.Nop())

	_, err := a.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := NewAnalyzer(&fakeSource{errs: map[string]error{"AAPL": context.Canceled}}, toneScorer(), 1, zerolog.Nop())
	_, err = cancelled.Fetch(ctx, []string{"AAPL"})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, AverageScores(nil))
}
