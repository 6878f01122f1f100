// Package fred reads Treasury yields from the FRED graph CSV export and
// serves them as annualized risk-free rates.
package fred

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/clientdata"
	"github.com/aristath/portfoliolab/internal/domain"
)

// Defaults for the client.
const (
	DefaultBaseURL = "https://fred.stlouisfed.org"
	DefaultSeries  = "DGS10"
)

// ErrNoObservation is returned when the range holds no published value.
var ErrNoObservation = errors.New("no observation in range")

// Client for FRED series observations
type Client struct {
	baseURL   string
	series    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a FRED client for one series.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL, series string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if series == "" {
		series = DefaultSeries
	}
	return &Client{
		baseURL:   baseURL,
		series:    series,
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "fred").Str("series", series).Logger(),
		cacheRepo: cacheRepo,
	}
}

// Observation is one dated value of the series, in percent.
type Observation struct {
	Date  time.Time
	Value float64
}

// GetRate returns the first published observation in [from, to] as a
// decimal rate (percent / 100).
func (c *Client) GetRate(ctx context.Context, from, to time.Time) (float64, error) {
	cacheKey := fmt.Sprintf("%s:%s:%s", c.series, from.Format("2006-01-02"), to.Format("2006-01-02"))

	if c.cacheRepo != nil {
		var cached float64
		if ok, err := c.cacheRepo.GetIfFresh(clientdata.TableRiskFreeRates, cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	obs, err := c.GetObservations(ctx, from, to)
	if err != nil {
		if stale, ok := c.getStaleFromCache(cacheKey); ok && ctx.Err() == nil {
			c.log.Warn().Err(err).Float64("rate", stale).Msg("API failed, using stale cached rate")
			return stale, nil
		}
		return 0, err
	}
	if len(obs) == 0 {
		return 0, fmt.Errorf("%s between %s and %s: %w", c.series, from.Format("2006-01-02"), to.Format("2006-01-02"), ErrNoObservation)
	}

	rate := obs[0].Value / 100
	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableRiskFreeRates, cacheKey, rate, clientdata.TTLRiskFreeRate); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache rate")
		}
	}

	c.log.Debug().Time("date", obs[0].Date).Float64("rate", rate).Msg("Fetched risk-free rate")
	return rate, nil
}

// GetObservations returns the published values in [from, to]. Missing
// observations (holidays) are skipped.
func (c *Client) GetObservations(ctx context.Context, from, to time.Time) ([]Observation, error) {
	q := url.Values{}
	q.Set("id", c.series)
	q.Set("cosd", from.Format("2006-01-02"))
	q.Set("coed", to.Format("2006-01-02"))
	endpoint := c.baseURL + "/graph/fredgraph.csv?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	obs, err := parseCSV(resp.Body)
	if err != nil {
		return nil, err
	}

	out := obs[:0]
	for _, o := range obs {
		if !o.Date.Before(from) && !o.Date.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func parseCSV(r io.Reader) ([]Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if !strings.EqualFold(header[0], "DATE") && !strings.EqualFold(header[0], "observation_date") {
		return nil, fmt.Errorf("unexpected CSV header %q", strings.Join(header, ","))
	}

	var obs []Observation
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", rec[0], err)
		}
		v := strings.TrimSpace(rec[1])
		if v == "" || v == "." {
			continue
		}
		value, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q on %s: %w", v, rec[0], err)
		}
		obs = append(obs, Observation{Date: date, Value: value})
	}
	return obs, nil
}

func (c *Client) getStaleFromCache(cacheKey string) (float64, bool) {
	if c.cacheRepo == nil {
		return 0, false
	}
	var rate float64
	ok, err := c.cacheRepo.Get(clientdata.TableRiskFreeRates, cacheKey, &rate)
	if err != nil || !ok {
		return 0, false
	}
	return rate, true
}

var _ domain.RateProvider = (*Client)(nil)
