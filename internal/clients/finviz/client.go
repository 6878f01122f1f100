// Package finviz scrapes the news table of Finviz quote pages.
package finviz

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/portfoliolab/internal/clientdata"
	"github.com/aristath/portfoliolab/internal/domain"
)

// DefaultBaseURL is the public quote site.
const DefaultBaseURL = "https://finviz.com"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/71.0.3578.98 Safari/537.36"

const (
	dateLayout = "Jan-02-06"
	timeLayout = "03:04PM"
)

// Client for Finviz quote pages
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
	now       func() time.Time
}

// NewClient creates a new Finviz client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(1), 2),
		log:       log.With().Str("client", "finviz").Logger(),
		cacheRepo: cacheRepo,
		now:       time.Now,
	}
}

// GetHeadlines returns the news headlines listed on the ticker's quote page.
func (c *Client) GetHeadlines(ctx context.Context, ticker string) ([]domain.Headline, error) {
	if c.cacheRepo != nil {
		var cached []domain.Headline
		if ok, err := c.cacheRepo.GetIfFresh(clientdata.TableNewsHeadlines, ticker, &cached); err == nil && ok {
			return cached, nil
		}
	}

	headlines, err := c.scrape(ctx, ticker)
	if err != nil {
		if c.cacheRepo != nil && ctx.Err() == nil {
			var stale []domain.Headline
			if ok, cerr := c.cacheRepo.Get(clientdata.TableNewsHeadlines, ticker, &stale); cerr == nil && ok {
				c.log.Warn().Err(err).Str("ticker", ticker).Msg("Scrape failed, using stale headlines")
				return stale, nil
			}
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableNewsHeadlines, ticker, headlines, clientdata.TTLHeadlines); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache headlines")
		}
	}

	c.log.Debug().Str("ticker", ticker).Int("headlines", len(headlines)).Msg("Fetched headlines")
	return headlines, nil
}

func (c *Client) scrape(ctx context.Context, ticker string) ([]domain.Headline, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/quote.ashx?t=" + url.QueryEscape(ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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
		return nil, fmt.Errorf("quote page for %s returned status %d", ticker, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return ParseHeadlines(doc, ticker, c.now()), nil
}

// ParseHeadlines reads the news table rows. Rows list either "Today
// 09:30AM", a full "Jan-02-24 09:30AM" stamp, or a bare time that belongs
// to the date of the previous row. now resolves "Today".
func ParseHeadlines(doc *goquery.Document, ticker string, now time.Time) []domain.Headline {
	var (
		headlines []domain.Headline
		lastDate  time.Time
	)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	doc.Find("tr.cursor-pointer.has-label").Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find("a.tab-link-news").First().Text())
		if title == "" {
			return
		}

		h := domain.Headline{Ticker: ticker, Title: title}
		stamp := strings.Join(strings.Fields(row.Find(`td[width="130"][align="right"]`).First().Text()), " ")
		if stamp != "" {
			datePart, clock := "", stamp
			if i := strings.IndexByte(stamp, ' '); i >= 0 {
				datePart, clock = stamp[:i], stamp[i+1:]
			}
			switch {
			case datePart == "Today":
				lastDate = today
			case datePart != "":
				if d, err := time.Parse(dateLayout, datePart); err == nil {
					lastDate = d
				}
			}
			if !lastDate.IsZero() {
				h.Published = lastDate
				if t, err := time.Parse(timeLayout, clock); err == nil {
					h.Published = lastDate.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
				}
			}
		}
		headlines = append(headlines, h)
	})
	return headlines
}
