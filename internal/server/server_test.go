package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/portfoliolab/internal/database"
	"github.com/aristath/portfoliolab/internal/metrics"
	"github.com/aristath/portfoliolab/internal/modules/optimization"
	"github.com/aristath/portfoliolab/internal/modules/reports"
	"github.com/aristath/portfoliolab/internal/modules/reports/handlers"
	"github.com/aristath/portfoliolab/internal/services"
	testutil "github.com/aristath/portfoliolab/internal/testing"
)

func newTestServer(t *testing.T) (*Server, *database.DB, *database.DB) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	resultsDB := testutil.NewTestDB(t, database.NameResults)
	cacheDB := testutil.NewTestDB(t, database.NameCache)

	repo := reports.NewRepository(resultsDB.Conn(), logger)
	reportHandler := handlers.NewHandler(repo, nil, services.SweepRequest{Sweep: optimization.DefaultSweepParams()}, logger)

	s := New(Config{
		Log:       logger,
		ResultsDB: resultsDB,
		CacheDB:   cacheDB,
		Reports:   reportHandler,
		Metrics:   metrics.NewRegistry(),
		DataDir:   t.TempDir(),
		Port:      0,
		DevMode:   true,
	})
	s.systemHandlers.systemStats = func() (float64, float64) { return 12.5, 40 }
	return s, resultsDB, cacheDB
}

func TestServer_Health(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Databases[database.NameResults])
	assert.Equal(t, "ok", resp.Databases[database.NameCache])
}

func TestServer_HealthDegraded(t *testing.T) {
	s, _, cacheDB := newTestServer(t)
	require.NoError(t, cacheDB.Close())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Databases[database.NameResults])
	assert.NotEqual(t, "ok", resp.Databases[database.NameCache])
}

func TestServer_SystemStats(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/stats", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp SystemStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12.5, resp.CPUPercent)
	assert.Equal(t, 40.0, resp.MemoryPercent)
	assert.Greater(t, resp.Goroutines, 0)
}

func TestServer_DatabaseStats(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/databases", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]database.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp, database.NameResults)
	assert.Greater(t, resp[database.NameResults].PageSize, int64(0))
}

func TestServer_MountsReportsAndMetrics(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data"`)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func TestServer_UnknownRoute(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
