// Package edgar reads the SEC EDGAR full index, the ticker to CIK map and
// filing documents.
package edgar

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/portfoliolab/internal/clientdata"
	"github.com/aristath/portfoliolab/internal/domain"
)

// DefaultBaseURL serves both the archives and the company ticker file.
const DefaultBaseURL = "https://www.sec.gov"

// DefaultUserAgent identifies the client. SEC rejects requests without a
// contact address, so deployments should override it.
const DefaultUserAgent = "portfoliolab research admin@example.com"

const (
	indexHeader = "CIK|Company Name|Form Type|Date Filed|Filename"
	cikCacheKey = "company_tickers"
)

// ErrNoHeader is returned when a master index lacks its column header.
var ErrNoHeader = errors.New("master index header not found")

// Client for EDGAR archives
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new EDGAR client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL, userAgent string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 60 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(2), 1),
		log:       log.With().Str("client", "edgar").Logger(),
		cacheRepo: cacheRepo,
	}
}

// GetFilingIndex returns the filings of one year across the four quarterly
// master indexes, in index order. An empty formType keeps every form.
// Quarters that are unavailable or not served as plain text are skipped.
func (c *Client) GetFilingIndex(ctx context.Context, year int, formType string) ([]domain.Filing, error) {
	cacheKey := fmt.Sprintf("index:%d:%s", year, formType)

	if c.cacheRepo != nil {
		var cached []domain.Filing
		if ok, err := c.cacheRepo.GetIfFresh(clientdata.TableSECData, cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	filings, err := c.fetchIndex(ctx, year, formType)
	if err != nil {
		if c.cacheRepo != nil && ctx.Err() == nil {
			var stale []domain.Filing
			if ok, cerr := c.cacheRepo.Get(clientdata.TableSECData, cacheKey, &stale); cerr == nil && ok {
				c.log.Warn().Err(err).Int("year", year).Msg("API failed, using stale filing index")
				return stale, nil
			}
		}
		return nil, err
	}

	if c.cacheRepo != nil && len(filings) > 0 {
		if err := c.cacheRepo.Store(clientdata.TableSECData, cacheKey, filings, clientdata.TTLFilingIndex); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache filing index")
		}
	}

	c.log.Info().Int("year", year).Str("form", formType).Int("filings", len(filings)).Msg("Fetched filing index")
	return filings, nil
}

func (c *Client) fetchIndex(ctx context.Context, year int, formType string) ([]domain.Filing, error) {
	var filings []domain.Filing
	for q := 1; q <= 4; q++ {
		path := fmt.Sprintf("/Archives/edgar/full-index/%d/QTR%d/master.idx", year, q)
		resp, err := c.get(ctx, path)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "text/plain") {
			c.log.Warn().
				Int("quarter", q).
				Int("status", resp.StatusCode).
				Str("content_type", resp.Header.Get("Content-Type")).
				Msg("Skipping quarter")
			resp.Body.Close()
			continue
		}

		rows, err := ParseMasterIndex(resp.Body, formType)
		resp.Body.Close()
		if err != nil {
			c.log.Warn().Err(err).Int("quarter", q).Msg("Skipping quarter")
			continue
		}
		filings = append(filings, rows...)
	}
	return filings, nil
}

// ParseMasterIndex reads the pipe-separated rows following the column
// header. Rows with the wrong field count or an unparseable CIK or date
// are skipped.
func ParseMasterIndex(r io.Reader, formType string) ([]domain.Filing, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	headerSeen := false
	var filings []domain.Filing
	for scanner.Scan() {
		line := scanner.Text()
		if !headerSeen {
			headerSeen = strings.HasPrefix(line, indexHeader)
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) != 5 {
			continue
		}
		if formType != "" && fields[2] != formType {
			continue
		}
		cik, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			continue
		}
		filed, err := time.Parse("2006-01-02", strings.TrimSpace(fields[3]))
		if err != nil {
			continue
		}
		filings = append(filings, domain.Filing{
			CIK:       cik,
			Company:   strings.TrimSpace(fields[1]),
			FormType:  fields[2],
			DateFiled: filed,
			Filename:  strings.TrimSpace(fields[4]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read master index: %w", err)
	}
	if !headerSeen {
		return nil, ErrNoHeader
	}
	return filings, nil
}

type companyTicker struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// GetCIKs returns the CIK of every listed ticker, keyed by upper-case ticker.
func (c *Client) GetCIKs(ctx context.Context) (map[string]int64, error) {
	if c.cacheRepo != nil {
		var cached map[string]int64
		if ok, err := c.cacheRepo.GetIfFresh(clientdata.TableSECData, cikCacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	ciks, err := c.fetchCIKs(ctx)
	if err != nil {
		if c.cacheRepo != nil && ctx.Err() == nil {
			var stale map[string]int64
			if ok, cerr := c.cacheRepo.Get(clientdata.TableSECData, cikCacheKey, &stale); cerr == nil && ok {
				c.log.Warn().Err(err).Msg("API failed, using stale CIK map")
				return stale, nil
			}
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableSECData, cikCacheKey, ciks, clientdata.TTLCIKMap); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache CIK map")
		}
	}
	return ciks, nil
}

func (c *Client) fetchCIKs(ctx context.Context) (map[string]int64, error) {
	resp, err := c.get(ctx, "/files/company_tickers.json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("company tickers returned status %d", resp.StatusCode)
	}

	var raw map[string]companyTicker
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode company tickers: %w", err)
	}

	ciks := make(map[string]int64, len(raw))
	for _, ct := range raw {
		if ct.Ticker == "" {
			continue
		}
		ciks[strings.ToUpper(ct.Ticker)] = ct.CIK
	}
	return ciks, nil
}

// GetDocument downloads a filing by its index filename.
func (c *Client) GetDocument(ctx context.Context, filename string) (string, error) {
	resp, err := c.get(ctx, "/Archives/"+strings.TrimLeft(filename, "/"))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document %s returned status %d", filename, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read document %s: %w", filename, err)
	}
	c.log.Debug().Str("filename", filename).Int("bytes", len(body)).Msg("Downloaded filing")
	return string(body), nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
