package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/clientdata"
	"github.com/aristath/portfoliolab/internal/database"
	testutil "github.com/aristath/portfoliolab/internal/testing"
)

// Three sessions at 14:30 UTC (09:30 New York), the middle one with a null close.
const chartJSON = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "gmtoffset": -18000},
      "timestamp": [1704205800, 1704292200, 1704378600],
      "indicators": {
        "quote": [{
          "open":   [187.15, 184.22, 182.15],
          "high":   [188.44, 185.88, 183.09],
          "low":    [183.89, 183.43, 180.88],
          "close":  [185.64, null, 181.91],
          "volume": [82488700, 58414500, 71983600]
        }],
        "adjclose": [{"adjclose": [184.29, null, 180.59]}]
      }
    }],
    "error": null
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, cache *clientdata.Repository) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, cache, zerolog.Nop())
}

func TestGetDailyBars(t *testing.T) {
	var gotPath, gotInterval, gotUA string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, chartJSON)
	}, nil)

	bars, err := client.GetDailyBars(context.Background(), "AAPL", testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 31))
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1d", gotInterval)
	assert.NotEmpty(t, gotUA)

	require.Len(t, bars, 2)
	assert.Equal(t, testutil.Date(2024, 1, 2), bars[0].Date)
	assert.Equal(t, testutil.Date(2024, 1, 4), bars[1].Date)
	assert.Equal(t, 185.64, bars[0].Close)
	assert.Equal(t, 184.29, bars[0].AdjClose)
	assert.Equal(t, 188.44, bars[0].High)
	assert.Equal(t, 71983600.0, bars[1].Volume)
}

func TestGetDailyBars_FiltersRange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, chartJSON)
	}, nil)

	bars, err := client.GetDailyBars(context.Background(), "AAPL", testutil.Date(2024, 1, 3), testutil.Date(2024, 1, 31))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, testutil.Date(2024, 1, 4), bars[0].Date)
}

func TestGetDailyBars_UnknownTicker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}, nil)

	bars, err := client.GetDailyBars(context.Background(), "NOPE", testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 31))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestGetDailyBars_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, nil)

	_, err := client.GetDailyBars(context.Background(), "AAPL", testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 31))
	assert.Error(t, err)
}

func TestGetDailyBars_CacheAndStaleFallback(t *testing.T) {
	db := testutil.NewTestDB(t, database.NameCache)
	cache := clientdata.NewRepository(db.Conn())

	var calls atomic.Int32
	var fail atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, chartJSON)
	}, cache)

	from, to := testutil.Date(2024, 1, 1), testutil.Date(2024, 1, 31)
	first, err := client.GetDailyBars(context.Background(), "AAPL", from, to)
	require.NoError(t, err)

	second, err := client.GetDailyBars(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, time.UTC, second[0].Date.Location())

	// Expire the entry, then fail upstream: stale data is served.
	key := fmt.Sprintf("AAPL:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	require.NoError(t, cache.Store(clientdata.TablePriceHistory, key, first, -time.Hour))
	fail.Store(true)

	stale, err := client.GetDailyBars(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, first, stale)
}
