package finviz

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/clientdata"
	"github.com/aristath/portfoliolab/internal/database"
	testutil "github.com/aristath/portfoliolab/internal/testing"
)

const newsTable = `<html><body><table id="news-table">
<tr class="cursor-pointer has-label"><td width="130" align="right">Today 09:30AM</td>
  <td><a class="tab-link-news" href="#">Apple beats estimates</a></td></tr>
<tr class="cursor-pointer has-label"><td width="130" align="right">08:05AM</td>
  <td><a class="tab-link-news" href="#">Supplier warns on margins</a></td></tr>
<tr class="cursor-pointer has-label"><td width="130" align="right">Jan-02-24 04:15PM</td>
  <td><a class="tab-link-news" href="#"> Shares slip after downgrade </a></td></tr>
<tr class="cursor-pointer has-label"><td width="130" align="right">10:00AM</td>
  <td><a class="tab-link-news" href="#">Analysts split on outlook</a></td></tr>
<tr class="cursor-pointer has-label"><td width="130" align="right">11:00AM</td><td>no link</td></tr>
<tr class="other"><td><a class="tab-link-news" href="#">Not a news row</a></td></tr>
</table></body></html>`

func TestParseHeadlines(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(newsTable))
	require.NoError(t, err)

	now := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	headlines := ParseHeadlines(doc, "AAPL", now)

	require.Len(t, headlines, 4)
	assert.Equal(t, "Apple beats estimates", headlines[0].Title)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), headlines[0].Published)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 5, 0, 0, time.UTC), headlines[1].Published)
	assert.Equal(t, "Shares slip after downgrade", headlines[2].Title)
	assert.Equal(t, time.Date(2024, 1, 2, 16, 15, 0, 0, time.UTC), headlines[2].Published)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), headlines[3].Published)
	for _, h := range headlines {
		assert.Equal(t, "AAPL", h.Ticker)
	}
}

func TestParseHeadlines_BareTimeWithoutDate(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<table>
<tr class="cursor-pointer has-label"><td width="130" align="right">08:05AM</td>
  <td><a class="tab-link-news">Orphan headline</a></td></tr></table>`))
	require.NoError(t, err)

	headlines := ParseHeadlines(doc, "AAPL", testutil.Date(2024, 3, 15))
	require.Len(t, headlines, 1)
	assert.True(t, headlines[0].Published.IsZero())
}

func TestGetHeadlines_CacheAndStaleFallback(t *testing.T) {
	cache := clientdata.NewRepository(testutil.NewTestDB(t, database.NameCache).Conn())

	var calls atomic.Int32
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/quote.ashx", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("t"))
		if fail.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = fmt.Fprint(w, newsTable)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, cache, zerolog.Nop())

	first, err := client.GetHeadlines(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, first, 4)

	cached, err := client.GetHeadlines(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Len(t, cached, 4)
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, cache.Store(clientdata.TableNewsHeadlines, "AAPL", first, -time.Hour))
	fail.Store(true)

	stale, err := client.GetHeadlines(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Len(t, stale, 4)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetHeadlines_ErrorWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL, nil, zerolog.Nop()).GetHeadlines(context.Background(), "AAPL")
	assert.Error(t, err)
}
