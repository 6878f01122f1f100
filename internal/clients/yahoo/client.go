// Package yahoo fetches daily OHLCV history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/portfoliolab/internal/clientdata"
	"github.com/aristath/portfoliolab/internal/domain"
)

// DefaultBaseURL is the public chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const userAgent = "Mozilla/5.0 (compatible; portfoliolab/1.0)"

// Client for the Yahoo Finance chart API
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Yahoo client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(4), 4),
		log:       log.With().Str("client", "yahoo").Logger(),
		cacheRepo: cacheRepo,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// GetDailyBars returns daily bars for ticker with from <= date <= to.
// Dates are normalized to midnight UTC of the exchange trading day. Bars
// with a missing close are dropped. An unknown ticker yields no bars.
func (c *Client) GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]domain.DailyBar, error) {
	cacheKey := fmt.Sprintf("%s:%s:%s", ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))

	if c.cacheRepo != nil {
		var cached []domain.DailyBar
		if ok, err := c.cacheRepo.GetIfFresh(clientdata.TablePriceHistory, cacheKey, &cached); err == nil && ok {
			c.log.Debug().Str("ticker", ticker).Int("bars", len(cached)).Msg("Cache hit")
			return normalizeDates(cached), nil
		}
	}

	bars, err := c.fetch(ctx, ticker, from, to)
	if err != nil {
		if ctx.Err() == nil {
			if stale, ok := c.getStaleFromCache(cacheKey); ok {
				c.log.Warn().Err(err).Str("ticker", ticker).Msg("API failed, using stale cached bars")
				return stale, nil
			}
		}
		return nil, err
	}

	if c.cacheRepo != nil && len(bars) > 0 {
		if err := c.cacheRepo.Store(clientdata.TablePriceHistory, cacheKey, bars, clientdata.TTLPriceHistory); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache price history")
		}
	}

	c.log.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Fetched price history")
	return bars, nil
}

func (c *Client) fetch(ctx context.Context, ticker string, from, to time.Time) ([]domain.DailyBar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	// period2 is exclusive upstream.
	q.Set("period2", strconv.FormatInt(to.AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d for %s", resp.StatusCode, ticker)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if body.Chart.Error != nil {
		if body.Chart.Error.Code == "Not Found" {
			return nil, nil
		}
		return nil, fmt.Errorf("API error for %s: %s", ticker, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, nil
	}

	bars := parseBars(body.Chart.Result[0])
	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(dateOnly(from)) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func parseBars(r chartResult) []domain.DailyBar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]domain.DailyBar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closeVal := at(q.Close, i)
		if closeVal == nil || *closeVal <= 0 {
			continue
		}
		b := domain.DailyBar{
			Date:   dateOnly(time.Unix(ts+r.Meta.GMTOffset, 0).UTC()),
			Open:   value(at(q.Open, i)),
			High:   value(at(q.High, i)),
			Low:    value(at(q.Low, i)),
			Close:  *closeVal,
			Volume: value(at(q.Volume, i)),
		}
		b.AdjClose = b.Close
		if a := at(adj, i); a != nil && *a > 0 {
			b.AdjClose = *a
		}
		if n := len(bars); n > 0 && !b.Date.After(bars[n-1].Date) {
			// Intraday duplicate of the last session; keep the later quote.
			bars[n-1] = b
			continue
		}
		bars = append(bars, b)
	}
	return bars
}

func at(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// getStaleFromCache retrieves cached bars even if expired.
func (c *Client) getStaleFromCache(cacheKey string) ([]domain.DailyBar, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}
	var bars []domain.DailyBar
	ok, err := c.cacheRepo.Get(clientdata.TablePriceHistory, cacheKey, &bars)
	if err != nil || !ok {
		return nil, false
	}
	return normalizeDates(bars), true
}

// normalizeDates restores UTC locations lost in the msgpack round trip.
func normalizeDates(bars []domain.DailyBar) []domain.DailyBar {
	for i := range bars {
		bars[i].Date = bars[i].Date.UTC()
	}
	return bars
}
