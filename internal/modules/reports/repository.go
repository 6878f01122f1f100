package reports

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/portfoliolab/internal/database"
	"github.com/aristath/portfoliolab/internal/modules/optimization"
	"github.com/aristath/portfoliolab/internal/modules/simulation"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Repository stores runs in the results database
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new reports repository
// db parameter should be the results.db connection
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "reports").Logger(),
	}
}

// SaveSweep stores the allocations, window stats and failures of a sweep.
func (r *Repository) SaveSweep(tickers []string, params interface{}, sweep *optimization.SweepResult) (string, error) {
	if sweep == nil {
		return "", fmt.Errorf("nil sweep result")
	}
	return r.save(KindSweep, tickers, params, func(tx *sql.Tx, runID string) error {
		return insertSweep(tx, runID, sweep)
	})
}

// SaveBacktest stores the sweep the backtest was computed from together
// with its records.
func (r *Repository) SaveBacktest(tickers []string, params interface{}, sweep *optimization.SweepResult, report *optimization.BacktestReport) (string, error) {
	if sweep == nil || report == nil {
		return "", fmt.Errorf("nil sweep or backtest report")
	}
	return r.save(KindBacktest, tickers, params, func(tx *sql.Tx, runID string) error {
		if err := insertSweep(tx, runID, sweep); err != nil {
			return err
		}
		return insertBacktest(tx, runID, report)
	})
}

// SaveSimulation stores every equity curve of a simulation and its summaries.
func (r *Repository) SaveSimulation(tickers []string, params interface{}, result *simulation.Result) (string, error) {
	if result == nil || result.LongShort == nil {
		return "", fmt.Errorf("nil simulation result")
	}
	return r.save(KindSimulation, tickers, params, func(tx *sql.Tx, runID string) error {
		return insertSimulation(tx, runID, result)
	})
}

func (r *Repository) save(kind RunKind, tickers []string, params interface{}, fn func(*sql.Tx, string) error) (string, error) {
	tickersJSON, err := json.Marshal(tickers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tickers: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	runID := uuid.New().String()
	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			"INSERT INTO runs (id, kind, created_at, tickers, params) VALUES (?, ?, ?, ?, ?)",
			runID, string(kind), r.now().Unix(), string(tickersJSON), string(paramsJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return fn(tx, runID)
	})
	if err != nil {
		return "", err
	}

	r.log.Info().Str("run_id", runID).Str("kind", string(kind)).Msg("Stored run")
	return runID, nil
}

func insertSweep(tx *sql.Tx, runID string, sweep *optimization.SweepResult) error {
	allocStmt, err := tx.Prepare(`INSERT INTO allocations (run_id, window_label, position, method, ticker, weight)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare allocation insert: %w", err)
	}
	defer allocStmt.Close()

	for pos, wr := range sweep.Windows {
		label := wr.Window.Label()
		alloc := wr.Allocation

		for _, m := range optimization.Methods {
			weights, ok := alloc.Weights[m]
			if !ok {
				continue
			}
			for j, ticker := range alloc.Tickers {
				if _, err := allocStmt.Exec(runID, label, pos, string(m), ticker, weights[j]); err != nil {
					return fmt.Errorf("failed to insert allocation %s/%s: %w", label, m, err)
				}
			}
		}

		var minVar, maxSR sql.NullFloat64
		if alloc.Valid(optimization.MinVarSim) {
			minVar = sql.NullFloat64{Float64: alloc.MinVarSimVariance, Valid: true}
		}
		if alloc.Valid(optimization.MaxSRSim) {
			maxSR = sql.NullFloat64{Float64: alloc.MaxSRSimSharpe, Valid: true}
		}
		_, err := tx.Exec(`INSERT INTO window_stats
			(run_id, window_label, position, risk_free, months, min_var_sim_variance, max_sr_sim_sharpe)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, label, pos, wr.RiskFree, wr.Estimate.Months, minVar, maxSR)
		if err != nil {
			return fmt.Errorf("failed to insert window stats %s: %w", label, err)
		}

		for m, ferr := range alloc.Failures {
			if err := insertFailure(tx, runID, label, string(m), ferr); err != nil {
				return err
			}
		}
	}

	for label, reason := range sweep.Skipped {
		if err := insertFailure(tx, runID, label, "", reason); err != nil {
			return err
		}
	}
	return nil
}

func insertFailure(tx *sql.Tx, runID, label, method string, reason error) error {
	msg := "unknown"
	if reason != nil {
		msg = reason.Error()
	}
	_, err := tx.Exec("INSERT INTO failures (run_id, window_label, method, reason) VALUES (?, ?, ?, ?)",
		runID, label, method, msg)
	if err != nil {
		return fmt.Errorf("failed to insert failure %s: %w", label, err)
	}
	return nil
}

func insertBacktest(tx *sql.Tx, runID string, report *optimization.BacktestReport) error {
	for pos, rec := range report.Records {
		_, err := tx.Exec(`INSERT INTO backtest_records
			(run_id, position, training_window, investment_window, prev_max_sharpe_return, new_max_sharpe_return)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, pos, rec.TrainingWindow, rec.InvestmentWindow, rec.PrevMaxSharpeReturn, rec.NewMaxSharpeReturn)
		if err != nil {
			return fmt.Errorf("failed to insert backtest record %s: %w", rec.TrainingWindow, err)
		}
	}
	for label, reason := range report.Skipped {
		if err := insertFailure(tx, runID, label, "backtest", reason); err != nil {
			return err
		}
	}
	return nil
}

func insertSimulation(tx *sql.Tx, runID string, result *simulation.Result) error {
	stmt, err := tx.Prepare("INSERT INTO equity_points (run_id, curve, date, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare equity insert: %w", err)
	}
	defer stmt.Close()

	for _, curve := range []*simulation.EquityCurve{result.LongShort, result.BuyHold} {
		if curve == nil {
			continue
		}
		for i, d := range curve.Dates {
			if _, err := stmt.Exec(runID, curve.Name, d.Unix(), curve.Values[i]); err != nil {
				return fmt.Errorf("failed to insert equity point %s: %w", curve.Name, err)
			}
		}
	}

	for _, s := range result.Summaries() {
		_, err := tx.Exec(`INSERT INTO equity_summaries
			(run_id, curve, total_return, annualized_return, annualized_volatility, max_drawdown)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, s.Name, s.TotalReturn, s.AnnualizedReturn, s.AnnualizedVol, s.MaxDrawdown)
		if err != nil {
			return fmt.Errorf("failed to insert equity summary %s: %w", s.Name, err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (r *Repository) ListRuns(limit int) ([]Run, error) {
	query := "SELECT id, kind, created_at, tickers, params FROM runs ORDER BY created_at DESC, id"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run header or ErrRunNotFound.
func (r *Repository) GetRun(id string) (*Run, error) {
	row := r.db.QueryRow("SELECT id, kind, created_at, tickers, params FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var kind, tickersJSON, paramsJSON string
	var createdAt int64
	if err := s.Scan(&run.ID, &kind, &createdAt, &tickersJSON, &paramsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Kind = RunKind(kind)
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	run.Params = json.RawMessage(paramsJSON)
	if err := json.Unmarshal([]byte(tickersJSON), &run.Tickers); err != nil {
		return Run{}, fmt.Errorf("failed to unmarshal tickers of run %s: %w", run.ID, err)
	}
	return run, nil
}

// GetAllocations returns the allocation rows of a run in window order.
func (r *Repository) GetAllocations(runID string) ([]AllocationRow, error) {
	rows, err := r.db.Query(`SELECT window_label, position, method, ticker, weight
		FROM allocations WHERE run_id = ? ORDER BY position, method, ticker`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	out := make([]AllocationRow, 0)
	for rows.Next() {
		var a AllocationRow
		if err := rows.Scan(&a.Window, &a.Position, &a.Method, &a.Ticker, &a.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}
	return out, nil
}

// GetWindowStats returns the per-window stats of a run in window order.
func (r *Repository) GetWindowStats(runID string) ([]WindowStat, error) {
	rows, err := r.db.Query(`SELECT window_label, position, risk_free, months, min_var_sim_variance, max_sr_sim_sharpe
		FROM window_stats WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query window stats: %w", err)
	}
	defer rows.Close()

	out := make([]WindowStat, 0)
	for rows.Next() {
		var s WindowStat
		var minVar, maxSR sql.NullFloat64
		if err := rows.Scan(&s.Window, &s.Position, &s.RiskFree, &s.Months, &minVar, &maxSR); err != nil {
			return nil, fmt.Errorf("failed to scan window stats: %w", err)
		}
		if minVar.Valid {
			s.MinVarSimVariance = &minVar.Float64
		}
		if maxSR.Valid {
			s.MaxSRSimSharpe = &maxSR.Float64
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating window stats: %w", err)
	}
	return out, nil
}

// GetFailures returns the failed methods and skipped windows of a run.
func (r *Repository) GetFailures(runID string) ([]Failure, error) {
	rows, err := r.db.Query(`SELECT window_label, method, reason
		FROM failures WHERE run_id = ? ORDER BY window_label, method`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	out := make([]Failure, 0)
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Window, &f.Method, &f.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failures: %w", err)
	}
	return out, nil
}

// GetBacktest returns the backtest records of a run in training-window order.
func (r *Repository) GetBacktest(runID string) ([]BacktestRow, error) {
	rows, err := r.db.Query(`SELECT position, training_window, investment_window, prev_max_sharpe_return, new_max_sharpe_return
		FROM backtest_records WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest records: %w", err)
	}
	defer rows.Close()

	out := make([]BacktestRow, 0)
	for rows.Next() {
		var b BacktestRow
		if err := rows.Scan(&b.Position, &b.TrainingWindow, &b.InvestmentWindow, &b.PrevMaxSharpeReturn, &b.NewMaxSharpeReturn); err != nil {
			return nil, fmt.Errorf("failed to scan backtest record: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backtest records: %w", err)
	}
	return out, nil
}

// GetEquity returns the equity curves and summaries of a run.
func (r *Repository) GetEquity(runID string) (*Equity, error) {
	rows, err := r.db.Query(`SELECT curve, date, value FROM equity_points
		WHERE run_id = ? ORDER BY curve, date`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity points: %w", err)
	}
	defer rows.Close()

	eq := &Equity{Curves: make(map[string][]EquityPoint), Summaries: make([]CurveSummary, 0)}
	for rows.Next() {
		var curve string
		var date int64
		var value float64
		if err := rows.Scan(&curve, &date, &value); err != nil {
			return nil, fmt.Errorf("failed to scan equity point: %w", err)
		}
		eq.Curves[curve] = append(eq.Curves[curve], EquityPoint{Date: time.Unix(date, 0).UTC(), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity points: %w", err)
	}

	srows, err := r.db.Query(`SELECT curve, total_return, annualized_return, annualized_volatility, max_drawdown
		FROM equity_summaries WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity summaries: %w", err)
	}
	defer srows.Close()

	for srows.Next() {
		var s CurveSummary
		if err := srows.Scan(&s.Curve, &s.TotalReturn, &s.AnnualizedReturn, &s.AnnualizedVolatility, &s.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("failed to scan equity summary: %w", err)
		}
		eq.Summaries = append(eq.Summaries, s)
	}
	if err := srows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating equity summaries: %w", err)
	}
	sort.Slice(eq.Summaries, func(i, j int) bool {
		// long_short first, matching the simulator's output order
		return eq.Summaries[i].Curve > eq.Summaries[j].Curve
	})
	return eq, nil
}

// DeleteOlderThan removes runs created before cutoff. Child rows cascade.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM runs WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted runs: %w", err)
	}
	return n, nil
}
