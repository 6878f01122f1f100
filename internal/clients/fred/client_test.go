package fred

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

const dgs10CSV = `observation_date,DGS10
2010-01-01,
2010-01-04,3.85
2010-01-05,3.77
2010-01-06,.
2010-01-07,3.85
`

func newTestClient(t *testing.T, handler http.HandlerFunc, cache *clientdata.Repository) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "DGS10", cache, zerolog.Nop())
}

func TestGetRate_FirstPublishedObservation(t *testing.T) {
	var gotQuery map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graph/fredgraph.csv", r.URL.Path)
		gotQuery = r.URL.Query()
		_, _ = fmt.Fprint(w, dgs10CSV)
	}, nil)

	rate, err := client.GetRate(context.Background(), testutil.Date(2010, 1, 1), testutil.Date(2012, 12, 31))
	require.NoError(t, err)

	assert.InDelta(t, 0.0385, rate, 1e-12)
	assert.Equal(t, []string{"DGS10"}, gotQuery["id"])
	assert.Equal(t, []string{"2010-01-01"}, gotQuery["cosd"])
	assert.Equal(t, []string{"2012-12-31"}, gotQuery["coed"])
}

func TestGetObservations_SkipsMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, dgs10CSV)
	}, nil)

	obs, err := client.GetObservations(context.Background(), testutil.Date(2010, 1, 5), testutil.Date(2010, 1, 31))
	require.NoError(t, err)

	require.Len(t, obs, 2)
	assert.Equal(t, testutil.Date(2010, 1, 5), obs[0].Date)
	assert.Equal(t, 3.77, obs[0].Value)
	assert.Equal(t, testutil.Date(2010, 1, 7), obs[1].Date)
}

func TestGetRate_LegacyHeaderAndNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "DATE,DGS10\n2010-01-01,.\n")
	}, nil)

	_, err := client.GetRate(context.Background(), testutil.Date(2010, 1, 1), testutil.Date(2010, 1, 2))
	assert.ErrorIs(t, err, ErrNoObservation)
}

func TestGetRate_BadHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "<html>,oops\n")
	}, nil)

	_, err := client.GetRate(context.Background(), testutil.Date(2010, 1, 1), testutil.Date(2010, 1, 2))
	assert.Error(t, err)
}

func TestGetRate_CacheAndStaleFallback(t *testing.T) {
	db := testutil.NewTestDB(t, database.NameCache)
	cache := clientdata.NewRepository(db.Conn())

	var calls atomic.Int32
	var fail atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, dgs10CSV)
	}, cache)

	from, to := testutil.Date(2010, 1, 1), testutil.Date(2012, 12, 31)
	rate, err := client.GetRate(context.Background(), from, to)
	require.NoError(t, err)

	_, err = client.GetRate(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, cache.Store(clientdata.TableRiskFreeRates, "DGS10:2010-01-01:2012-12-31", rate, -time.Hour))
	fail.Store(true)

	stale, err := client.GetRate(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, rate, stale)
	assert.Equal(t, int32(2), calls.Load())
}
