// Package marketdata loads multi-ticker price histories and aligns them
// into a single price frame.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/portfoliolab/internal/domain"
)

// DefaultConcurrency bounds the number of in-flight provider requests.
const DefaultConcurrency = 4

// LoadResult is an aligned frame plus the tickers that had no data.
type LoadResult struct {
	Frame   domain.PriceFrame
	Bars    map[string][]domain.DailyBar
	Missing []string
}

// Loader fetches histories through a PriceProvider.
type Loader struct {
	provider    domain.PriceProvider
	validator   *BarValidator
	concurrency int
	log         zerolog.Logger
}

// NewLoader creates a loader. concurrency <= 0 selects DefaultConcurrency.
func NewLoader(provider domain.PriceProvider, concurrency int, log zerolog.Logger) *Loader {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Loader{
		provider:    provider,
		validator:   NewBarValidator(log),
		concurrency: concurrency,
		log:         log.With().Str("component", "marketdata_loader").Logger(),
	}
}

// Load fetches every ticker and inner-joins the closes on common dates.
// Tickers returning no bars, or whose provider call fails, are reported in
// Missing and omitted from the frame. Only cancellation aborts the load.
func (l *Loader) Load(ctx context.Context, tickers []string, from, to time.Time) (*LoadResult, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers requested: %w", domain.ErrPrecondition)
	}

	fetched := make([][]domain.DailyBar, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			bars, err := l.provider.GetDailyBars(gctx, ticker, from, to)
			if err != nil {
				if gctx.Err() != nil {
					return fmt.Errorf("failed to load %s: %w", ticker, gctx.Err())
				}
				l.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to load ticker, omitting")
				return nil
			}
			fetched[i] = l.validator.Clean(ticker, bars)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &LoadResult{Bars: make(map[string][]domain.DailyBar, len(tickers))}
	series := make([]domain.PriceSeries, 0, len(tickers))
	for i, ticker := range tickers {
		if len(fetched[i]) == 0 {
			result.Missing = append(result.Missing, ticker)
			continue
		}
		s, err := domain.SeriesFromBars(ticker, fetched[i])
		if err != nil {
			return nil, err
		}
		result.Bars[ticker] = fetched[i]
		series = append(series, s)
	}
	sort.Strings(result.Missing)

	result.Frame = domain.Align(series)
	if len(result.Missing) > 0 {
		l.log.Warn().Strs("tickers", result.Missing).Msg("No price data for tickers, omitting")
	}
	l.log.Info().
		Int("tickers", len(result.Frame.Tickers)).
		Int("dates", result.Frame.Len()).
		Msg("Loaded price frame")

	return result, nil
}
