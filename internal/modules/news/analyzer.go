// Package news scores ticker headlines for sentiment and averages them per
// ticker.
package news

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/internal/modules/textmetrics"
)

// DefaultConcurrency bounds concurrent headline requests.
const DefaultConcurrency = 2

// HeadlineSource returns the current headlines of a ticker.
type HeadlineSource interface {
	GetHeadlines(ctx context.Context, ticker string) ([]domain.Headline, error)
}

// Scorer maps a text to a sentiment score in [-1, 1].
type Scorer interface {
	Score(text string) float64
}

// ToneScorer scores text with the Loughran-McDonald positive and negative
// lists: (pos - neg) / (pos + neg), or 0 when neither occurs.
type ToneScorer struct {
	dicts textmetrics.Dictionaries
}

// NewToneScorer creates a scorer over the given word lists.
func NewToneScorer(dicts textmetrics.Dictionaries) *ToneScorer {
	return &ToneScorer{dicts: dicts}
}

// Score implements Scorer.
func (s *ToneScorer) Score(text string) float64 {
	var pos, neg int
	for _, w := range textmetrics.Tokenize(text) {
		if s.dicts.Positive.Contains(w) {
			pos++
		}
		if s.dicts.Negative.Contains(w) {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// ScoredHeadline is a headline with its sentiment score.
type ScoredHeadline struct {
	domain.Headline
	Score float64 `json:"score"`
}

// TickerScore is the mean headline score of one ticker.
type TickerScore struct {
	Ticker    string  `json:"ticker"`
	Headlines int     `json:"headlines"`
	Average   float64 `json:"average"`
}

// Analyzer fetches and scores headlines.
type Analyzer struct {
	source      HeadlineSource
	scorer      Scorer
	concurrency int
	log         zerolog.Logger
}

// NewAnalyzer creates an analyzer. concurrency <= 0 selects
// DefaultConcurrency.
func NewAnalyzer(source HeadlineSource, scorer Scorer, concurrency int, log zerolog.Logger) *Analyzer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Analyzer{
		source:      source,
		scorer:      scorer,
		concurrency: concurrency,
		log:         log.With().Str("component", "news").Logger(),
	}
}

// Fetch scores the headlines of every ticker, in ticker order. A ticker
// whose headlines cannot be fetched is logged and contributes nothing.
// Cancellation aborts.
func (a *Analyzer) Fetch(ctx context.Context, tickers []string) ([]ScoredHeadline, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers requested: %w", domain.ErrPrecondition)
	}

	perTicker := make([][]ScoredHeadline, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			headlines, err := a.source.GetHeadlines(gctx, ticker)
			if err != nil {
				if gctx.Err() != nil {
					return fmt.Errorf("failed to fetch headlines for %s: %w", ticker, gctx.Err())
				}
				a.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to fetch headlines")
				return nil
			}
			scored := make([]ScoredHeadline, len(headlines))
			for j, h := range headlines {
				scored[j] = ScoredHeadline{Headline: h, Score: a.scorer.Score(h.Title)}
			}
			perTicker[i] = scored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []ScoredHeadline
	for _, s := range perTicker {
		out = append(out, s...)
	}
	return out, nil
}

// AverageScores returns the mean score per ticker, sorted by ticker.
func AverageScores(scored []ScoredHeadline) []TickerScore {
	sums := make(map[string]*TickerScore)
	for _, s := range scored {
		ts, ok := sums[s.Ticker]
		if !ok {
			ts = &TickerScore{Ticker: s.Ticker}
			sums[s.Ticker] = ts
		}
		ts.Headlines++
		ts.Average += s.Score
	}

	out := make([]TickerScore, 0, len(sums))
	for _, ts := range sums {
		ts.Average /= float64(ts.Headlines)
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
