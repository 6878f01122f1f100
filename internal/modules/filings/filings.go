// Package filings relates annual report filings to the price behaviour of
// the filer in the days after publication.
package filings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/portfoliolab/internal/domain"
)

// Defaults for filing analysis.
const (
	DefaultFormType        = "10-K"
	DefaultDaysAfterFiling = 30
)

// TickerFiling is the filing selected for a ticker.
type TickerFiling struct {
	Ticker string        `json:"ticker"`
	Filing domain.Filing `json:"filing"`
}

// FirstFilings picks, for every ticker, the first index row filed under
// the ticker's CIK with the given form type. Tickers without a CIK or a
// matching filing are returned in missing, in request order.
func FirstFilings(index []domain.Filing, ciks map[string]int64, tickers []string, formType string) (found []TickerFiling, missing []string) {
	first := make(map[int64]domain.Filing)
	for _, f := range index {
		if formType != "" && f.FormType != formType {
			continue
		}
		if _, ok := first[f.CIK]; !ok {
			first[f.CIK] = f
		}
	}

	for _, ticker := range tickers {
		cik, ok := ciks[ticker]
		if !ok {
			missing = append(missing, ticker)
			continue
		}
		f, ok := first[cik]
		if !ok {
			missing = append(missing, ticker)
			continue
		}
		found = append(found, TickerFiling{Ticker: ticker, Filing: f})
	}
	return found, missing
}

// Variance is the population variance of daily returns after a filing.
type Variance struct {
	Ticker    string    `json:"ticker"`
	DateFiled time.Time `json:"date_filed"`
	Days      int       `json:"days"`
	Returns   int       `json:"returns"`
	Variance  float64   `json:"variance"`
}

// VarianceAnalyzer measures post-filing volatility through a price provider.
type VarianceAnalyzer struct {
	provider domain.PriceProvider
	days     int
	log      zerolog.Logger
}

// NewVarianceAnalyzer creates an analyzer over the days calendar days
// following each filing. days <= 0 selects DefaultDaysAfterFiling.
func NewVarianceAnalyzer(provider domain.PriceProvider, days int, log zerolog.Logger) *VarianceAnalyzer {
	if days <= 0 {
		days = DefaultDaysAfterFiling
	}
	return &VarianceAnalyzer{
		provider: provider,
		days:     days,
		log:      log.With().Str("component", "filing_variance").Logger(),
	}
}

// Window returns the inclusive price range studied for a filing date,
// filed+1 through filed+days.
func (a *VarianceAnalyzer) Window(filed time.Time) (from, to time.Time) {
	from = filed.AddDate(0, 0, 1)
	return from, from.AddDate(0, 0, a.days-1)
}

// Analyze computes the variance for every filing, sorted by ticker.
// Tickers whose prices fail to load or yield fewer than two returns are
// logged and left out. Cancellation aborts.
func (a *VarianceAnalyzer) Analyze(ctx context.Context, filings []TickerFiling) ([]Variance, error) {
	out := make([]Variance, 0, len(filings))
	for _, tf := range filings {
		v, err := a.analyzeOne(ctx, tf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.log.Warn().Err(err).Str("ticker", tf.Ticker).Msg("Skipping filing")
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (a *VarianceAnalyzer) analyzeOne(ctx context.Context, tf TickerFiling) (Variance, error) {
	from, to := a.Window(tf.Filing.DateFiled)
	bars, err := a.provider.GetDailyBars(ctx, tf.Ticker, from, to)
	if err != nil {
		return Variance{}, fmt.Errorf("failed to load prices: %w", err)
	}
	series, err := domain.SeriesFromBars(tf.Ticker, bars)
	if err != nil {
		return Variance{}, err
	}

	returns := dailyReturns(series)
	if len(returns) < 2 {
		return Variance{}, fmt.Errorf("%d returns after %s: %w",
			len(returns), tf.Filing.DateFiled.Format("2006-01-02"), domain.ErrDataInsufficiency)
	}

	return Variance{
		Ticker:    tf.Ticker,
		DateFiled: tf.Filing.DateFiled,
		Days:      a.days,
		Returns:   len(returns),
		Variance:  stat.PopVariance(returns, nil),
	}, nil
}

func dailyReturns(s domain.PriceSeries) []float64 {
	if s.Len() < 2 {
		return nil
	}
	out := make([]float64, 0, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		out = append(out, s.Points[i].Close/s.Points[i-1].Close-1)
	}
	return out
}
