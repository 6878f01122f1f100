package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/portfoliolab/internal/modules/features"
	"github.com/aristath/portfoliolab/internal/utils"
)

// simulateCmd runs the long-short pipeline for one base ticker
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a long-short strategy on predicted next-day direction",
	Long: `Pick the ticker whose daily returns correlate most with the base ticker,
engineer price and volume features for both, fit a direction classifier on
the training years and simulate the long-short strategy over the holdout year
against buy-and-hold.

Examples:
  portfoliolab simulate --base AAPL
  portfoliolab simulate --base MSFT --classifier logistic --holdout-year 2022 --train-end-year 2021`,
	RunE: runSimulate,
}

var (
	simBase           string
	simTickers        string
	simClassifier     string
	simLambda         float64
	simHoldoutYear    int
	simTrainStartYear int
	simTrainEndYear   int
	simCapital        float64
	simCostBP         float64
	simBorrowRate     float64
	simFormat         string
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.StringVar(&simBase, "base", "", "Base ticker (default from PORTFOLIOLAB_BASE_TICKER)")
	f.StringVar(&simTickers, "tickers", "", "Candidate partner tickers (default: configured list, else Dow Jones constituents)")
	f.StringVar(&simClassifier, "classifier", "momentum", "Direction classifier: momentum, logistic")
	f.Float64Var(&simLambda, "lambda", 1.0, "L2 penalty of the logistic classifier")
	f.IntVar(&simHoldoutYear, "holdout-year", 0, "Year simulated out of sample")
	f.IntVar(&simTrainStartYear, "train-start-year", 0, "First training year")
	f.IntVar(&simTrainEndYear, "train-end-year", 0, "Last training year")
	f.Float64Var(&simCapital, "capital", 0, "Starting capital")
	f.Float64Var(&simCostBP, "cost-bp", 0, "Transaction cost per trade leg in basis points")
	f.Float64Var(&simBorrowRate, "borrow-rate", 0, "Annual borrow rate charged on short days")
	f.StringVar(&simFormat, "format", "table", "Output format: table, json")
}

func newClassifier(name string, lambda float64) (features.Classifier, error) {
	switch strings.ToLower(name) {
	case "momentum":
		return features.MomentumClassifier{}, nil
	case "logistic":
		return features.NewLogisticClassifier(lambda), nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", name)
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	if f.Changed("base") {
		cfg.BaseTicker = strings.ToUpper(strings.TrimSpace(simBase))
	}
	if f.Changed("tickers") {
		cfg.Tickers = utils.ParseTickers(simTickers)
	}
	if f.Changed("holdout-year") {
		cfg.HoldoutYear = simHoldoutYear
	}
	if f.Changed("train-start-year") {
		cfg.TrainStartYear = simTrainStartYear
	}
	if f.Changed("train-end-year") {
		cfg.TrainEndYear = simTrainEndYear
	}
	if f.Changed("capital") {
		cfg.StartingCapital = simCapital
	}
	if f.Changed("cost-bp") {
		cfg.TransactionCostBP = simCostBP
	}
	if f.Changed("borrow-rate") {
		cfg.BorrowRate = simBorrowRate
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	classifier, err := newClassifier(simClassifier, simLambda)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := cfg.SimulationRequest()
	req.Classifier = classifier
	out, err := a.analysis.RunSimulation(ctx, req)
	if err != nil {
		return err
	}

	if simFormat == "json" {
		return writeJSON(os.Stdout, out)
	}
	printSimulation(os.Stdout, out)
	return nil
}
