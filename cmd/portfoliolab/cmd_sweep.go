package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/portfoliolab/internal/domain"
	"github.com/aristath/portfoliolab/internal/services"
	"github.com/aristath/portfoliolab/internal/utils"
)

// sweepCmd allocates every window without backtesting
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Allocate the universe over rolling calendar-year windows",
	Long: `Download daily closes, resample to month-end and compute the weights of
every allocation method for each window of the schedule. The run is stored in
the results database.

Examples:
  portfoliolab sweep
  portfoliolab sweep --tickers AAPL,MSFT,JNJ --start-year 2012 --end-year 2020
  portfoliolab sweep --simulations 5000 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd, 0)
	},
}

// backtestCmd sweeps and evaluates each window's allocation on a later window
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Sweep and backtest each allocation on a later window",
	Long: `Run the sweep, then pair each training window with the window shifted
forward by --lookahead steps and report the realized monthly returns of the
investment window together with the Max_SR_Act portfolio return under both
windows' weights.

Examples:
  portfoliolab backtest
  portfoliolab backtest --lookahead 2 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lookahead := cfg.Lookahead
		if cmd.Flags().Changed("lookahead") {
			lookahead = sweepLookahead
		}
		if lookahead < 1 {
			return fmt.Errorf("lookahead must be at least 1, got %d", lookahead)
		}
		return runSweep(cmd, lookahead)
	},
}

var (
	sweepTickers     string
	sweepStartYear   int
	sweepEndYear     int
	sweepWindow      int
	sweepSimulations int
	sweepSeed        uint64
	sweepMaxWeight   float64
	sweepRiskFree    float64
	sweepLookahead   int
	sweepFormat      string
)

func init() {
	for _, c := range []*cobra.Command{sweepCmd, backtestCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringVar(&sweepTickers, "tickers", "", "Comma-separated tickers (default: configured list, else Dow Jones constituents)")
		c.Flags().IntVar(&sweepStartYear, "start-year", 0, "First window start year")
		c.Flags().IntVar(&sweepEndYear, "end-year", 0, "Last window end year")
		c.Flags().IntVar(&sweepWindow, "window", 0, "Years between window start and end year")
		c.Flags().IntVar(&sweepSimulations, "simulations", 0, "Monte Carlo portfolios per window")
		c.Flags().Uint64Var(&sweepSeed, "seed", 0, "Random seed, reset at every window")
		c.Flags().Float64Var(&sweepMaxWeight, "max-weight", 0, "Per-asset weight cap for Max_SR_Constr")
		c.Flags().Float64Var(&sweepRiskFree, "risk-free", 0, "Fixed annual risk-free rate instead of the FRED series")
		c.Flags().StringVar(&sweepFormat, "format", "table", "Output format: table, json")
	}
	backtestCmd.Flags().IntVar(&sweepLookahead, "lookahead", 0, "Window steps between training and investment windows")
}

// applySweepFlags copies explicitly set flags over the loaded configuration.
func applySweepFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("tickers") {
		cfg.Tickers = utils.ParseTickers(sweepTickers)
	}
	if f.Changed("start-year") {
		cfg.StartYear = sweepStartYear
	}
	if f.Changed("end-year") {
		cfg.EndYear = sweepEndYear
	}
	if f.Changed("window") {
		cfg.WindowLength = sweepWindow
	}
	if f.Changed("simulations") {
		cfg.NumSimulations = sweepSimulations
	}
	if f.Changed("seed") {
		cfg.Seed = sweepSeed
	}
	if f.Changed("max-weight") {
		cfg.MaxWeight = sweepMaxWeight
	}
}

func riskFreeOverride(cmd *cobra.Command) domain.RateProvider {
	if cmd.Flags().Changed("risk-free") {
		return domain.FixedRate(sweepRiskFree)
	}
	return nil
}

func runSweep(cmd *cobra.Command, lookahead int) error {
	applySweepFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	a, err := newApp(cfg, log, riskFreeOverride(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := cfg.SweepRequest()
	req.Lookahead = lookahead
	out, err := a.analysis.RunSweep(ctx, req)
	if err != nil {
		return err
	}

	if sweepFormat == "json" {
		return writeJSON(os.Stdout, sweepJSON(out))
	}
	printSweep(os.Stdout, out)
	if out.Backtest != nil {
		printBacktest(os.Stdout, out.Backtest)
	}
	return nil
}

func sweepJSON(out *services.SweepOutcome) interface{} {
	type window struct {
		Window            string                        `json:"window"`
		RiskFree          float64                       `json:"risk_free"`
		Weights           map[string]map[string]float64 `json:"weights"`
		Failures          map[string]string             `json:"failures,omitempty"`
		MinVarSimVariance float64                       `json:"min_var_sim_variance"`
		MaxSRSimSharpe    float64                       `json:"max_sr_sim_sharpe"`
	}
	doc := struct {
		RunID    string            `json:"run_id"`
		Tickers  []string          `json:"tickers"`
		Missing  []string          `json:"missing,omitempty"`
		Windows  []window          `json:"windows"`
		Skipped  map[string]string `json:"skipped,omitempty"`
		Backtest interface{}       `json:"backtest,omitempty"`
	}{RunID: out.RunID, Tickers: out.Tickers, Missing: out.Missing, Skipped: errorStrings(out.Sweep.Skipped)}

	for _, wr := range out.Sweep.Windows {
		w := window{
			Window:            wr.Window.Label(),
			RiskFree:          wr.RiskFree,
			Weights:           make(map[string]map[string]float64),
			MinVarSimVariance: wr.Allocation.MinVarSimVariance,
			MaxSRSimSharpe:    wr.Allocation.MaxSRSimSharpe,
		}
		for m, weights := range wr.Allocation.Weights {
			byTicker := make(map[string]float64, len(weights))
			for j, t := range wr.Allocation.Tickers {
				byTicker[t] = weights[j]
			}
			w.Weights[string(m)] = byTicker
		}
		if len(wr.Allocation.Failures) > 0 {
			w.Failures = make(map[string]string, len(wr.Allocation.Failures))
			for m, err := range wr.Allocation.Failures {
				w.Failures[string(m)] = err.Error()
			}
		}
		doc.Windows = append(doc.Windows, w)
	}

	if out.Backtest != nil {
		doc.Backtest = struct {
			Lookahead int               `json:"lookahead"`
			Records   interface{}       `json:"records"`
			Skipped   map[string]string `json:"skipped,omitempty"`
		}{out.Backtest.Lookahead, out.Backtest.Records, errorStrings(out.Backtest.Skipped)}
	}
	return doc
}

func errorStrings(errs map[string]error) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for k, err := range errs {
		out[k] = err.Error()
	}
	return out
}
