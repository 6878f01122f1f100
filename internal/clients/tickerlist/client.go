// Package tickerlist scrapes the Dow Jones constituent list.
package tickerlist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/clientdata"
)

// DefaultURL lists the 30 index members in a table with one row per ticker.
const DefaultURL = "https://bullishbears.com/dow-jones-stocks-list/"

const (
	firstRow  = 2
	lastRow   = 31
	userAgent = "Mozilla/5.0"
	cacheKey  = "dow_jones"
)

// ErrEmptyList is returned when the page held no ticker rows.
var ErrEmptyList = errors.New("ticker list page contained no tickers")

// Client scrapes index constituents
type Client struct {
	url       string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new ticker list client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(url string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:       url,
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "tickerlist").Logger(),
		cacheRepo: cacheRepo,
	}
}

// GetDowJonesTickers returns the sorted constituent tickers.
func (c *Client) GetDowJonesTickers(ctx context.Context) ([]string, error) {
	if c.cacheRepo != nil {
		var cached []string
		if ok, err := c.cacheRepo.GetIfFresh(clientdata.TableTickerLists, cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	tickers, err := c.scrape(ctx)
	if err != nil {
		if c.cacheRepo != nil && ctx.Err() == nil {
			var stale []string
			if ok, cerr := c.cacheRepo.Get(clientdata.TableTickerLists, cacheKey, &stale); cerr == nil && ok {
				c.log.Warn().Err(err).Int("tickers", len(stale)).Msg("Scrape failed, using stale ticker list")
				return stale, nil
			}
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableTickerLists, cacheKey, tickers, clientdata.TTLTickerList); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache ticker list")
		}
	}

	c.log.Info().Int("tickers", len(tickers)).Msg("Fetched Dow Jones constituents")
	return tickers, nil
}

func (c *Client) scrape(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticker list returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return ParseTickers(doc)
}

// ParseTickers extracts the first-column cell of rows row-2 through row-31.
// Missing rows are skipped.
func ParseTickers(doc *goquery.Document) ([]string, error) {
	var tickers []string
	for i := firstRow; i <= lastRow; i++ {
		cell := doc.Find(fmt.Sprintf("tr.row-%d", i)).First().Find("td.column-1").First()
		if cell.Length() == 0 {
			continue
		}
		if t := strings.TrimSpace(cell.Text()); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		return nil, ErrEmptyList
	}
	sort.Strings(tickers)
	return tickers, nil
}
