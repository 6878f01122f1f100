// Package handlers provides HTTP handlers for stored runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/internal/modules/reports"
	"github.com/aristath/portfoliolab/internal/services"
)

// SweepRunner runs a sweep on demand.
type SweepRunner interface {
	RunSweep(ctx context.Context, req services.SweepRequest) (*services.SweepOutcome, error)
}

// Handler handles run report HTTP requests
type Handler struct {
	repo     *reports.Repository
	runner   SweepRunner
	defaults services.SweepRequest
	log      zerolog.Logger
}

// NewHandler creates a new reports handler. defaults fills fields missing
// from POST /api/sweeps bodies.
func NewHandler(
	repo *reports.Repository,
	runner SweepRunner,
	defaults services.SweepRequest,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		repo:     repo,
		runner:   runner,
		defaults: services.SweepRequest{
			Tickers:   slices.Clone(defaults.Tickers),
			Sweep:     defaults.Sweep,
			Lookahead: defaults.Lookahead,
		},
		log:      log.With().Str("handler", "reports").Logger(),
	}
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	}))
}

// HandleGetAllocations handles GET /api/runs/{id}/allocations
func (h *Handler) HandleGetAllocations(w http.ResponseWriter, r *http.Request, runID string) {
	run, ok := h.lookupRun(w, runID)
	if !ok {
		return
	}

	allocations, err := h.repo.GetAllocations(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get allocations")
		http.Error(w, "Failed to get allocations", http.StatusInternalServerError)
		return
	}
	stats, err := h.repo.GetWindowStats(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get window stats")
		http.Error(w, "Failed to get window stats", http.StatusInternalServerError)
		return
	}
	failures, err := h.repo.GetFailures(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get failures")
		http.Error(w, "Failed to get failures", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run":         run,
		"allocations": allocations,
		"windows":     stats,
		"failures":    failures,
	}))
}

// HandleGetBacktest handles GET /api/runs/{id}/backtest
func (h *Handler) HandleGetBacktest(w http.ResponseWriter, r *http.Request, runID string) {
	run, ok := h.lookupRun(w, runID)
	if !ok {
		return
	}

	records, err := h.repo.GetBacktest(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get backtest")
		http.Error(w, "Failed to get backtest", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run":     run,
		"records": records,
		"count":   len(records),
	}))
}

// HandleGetEquity handles GET /api/runs/{id}/equity
func (h *Handler) HandleGetEquity(w http.ResponseWriter, r *http.Request, runID string) {
	run, ok := h.lookupRun(w, runID)
	if !ok {
		return
	}

	equity, err := h.repo.GetEquity(runID)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get equity")
		http.Error(w, "Failed to get equity", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run":       run,
		"curves":    equity.Curves,
		"summaries": equity.Summaries,
	}))
}

// HandleRunSweep handles POST /api/sweeps
func (h *Handler) HandleRunSweep(w http.ResponseWriter, r *http.Request) {
	// Decoding reuses slice backing arrays, so each request gets its own tickers.
	req := h.defaults
	req.Tickers = slices.Clone(h.defaults.Tickers)
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	out, err := h.runner.RunSweep(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrPrecondition) {
			status = http.StatusBadRequest
		}
		h.log.Error().Err(err).Msg("Sweep failed")
		http.Error(w, "Sweep failed: "+err.Error(), status)
		return
	}

	skipped := make([]string, 0, len(out.Sweep.Skipped))
	for label := range out.Sweep.Skipped {
		skipped = append(skipped, label)
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"run_id":   out.RunID,
		"tickers":  out.Tickers,
		"missing":  out.Missing,
		"windows":  out.Sweep.Labels(),
		"skipped":  skipped,
		"backtest": out.Backtest != nil,
	}))
}

func (h *Handler) lookupRun(w http.ResponseWriter, runID string) (*reports.Run, bool) {
	run, err := h.repo.GetRun(runID)
	if errors.Is(err, reports.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
