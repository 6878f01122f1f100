package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/aristath/portfoliolab/internal/modules/optimization"
	"github.com/aristath/portfoliolab/internal/modules/simulation"
	"github.com/aristath/portfoliolab/internal/services"
)

// topHoldings is the number of largest weights shown per method in tables.
const topHoldings = 5

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSweep(w io.Writer, out *services.SweepOutcome) {
	fmt.Fprintf(w, "Run %s: %d tickers, %d windows\n", out.RunID, len(out.Tickers), len(out.Sweep.Windows))
	if len(out.Missing) > 0 {
		fmt.Fprintf(w, "No data for: %s\n", strings.Join(out.Missing, ", "))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tMETHOD\tTOP HOLDINGS")
	for _, wr := range out.Sweep.Windows {
		for _, m := range optimization.Methods {
			weights, ok := wr.Allocation.Weights[m]
			if !ok {
				fmt.Fprintf(tw, "%s\t%s\tfailed: %v\n", wr.Window.Label(), m, wr.Allocation.Failures[m])
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", wr.Window.Label(), m, formatHoldings(wr.Allocation.Tickers, weights))
		}
	}
	tw.Flush()

	if len(out.Sweep.Skipped) > 0 {
		fmt.Fprintln(w)
		for _, label := range sortedKeys(out.Sweep.Skipped) {
			fmt.Fprintf(w, "Skipped %s: %v\n", label, out.Sweep.Skipped[label])
		}
	}
}

func formatHoldings(tickers []string, weights []float64) string {
	idx := make([]int, len(weights))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return weights[idx[a]] > weights[idx[b]] })

	n := topHoldings
	if n > len(idx) {
		n = len(idx)
	}
	parts := make([]string, 0, n)
	for _, i := range idx[:n] {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", tickers[i], 100*weights[i]))
	}
	return strings.Join(parts, ", ")
}

func printBacktest(w io.Writer, report *optimization.BacktestReport) {
	fmt.Fprintf(w, "\nBacktest (lookahead %d)\n", report.Lookahead)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRAINING\tINVESTMENT\tPREV MAX SR\tNEW MAX SR\tBEST TICKER")
	for _, r := range report.Records {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%s\n",
			r.TrainingWindow, r.InvestmentWindow, r.PrevMaxSharpeReturn, r.NewMaxSharpeReturn, bestTicker(report.Tickers, r.RealizedReturns))
	}
	tw.Flush()

	for _, label := range sortedKeys(report.Skipped) {
		fmt.Fprintf(w, "Skipped %s: %v\n", label, report.Skipped[label])
	}
}

func printSimulation(w io.Writer, out *services.SimulationOutcome) {
	fmt.Fprintf(w, "Run %s: %s paired with %s (correlation %.3f)\n", out.RunID, out.Base, out.Partner, out.Correlation)
	fmt.Fprintf(w, "Classifier %s: accuracy %.3f, precision %.3f, mse %.3f\n\n",
		out.Classifier, out.Metrics.Accuracy, out.Metrics.Precision, out.Metrics.MSE)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CURVE\tTOTAL\tANN. RETURN\tANN. VOL\tMAX DD")
	for _, s := range out.Summaries {
		fmt.Fprintf(tw, "%s\t%.2f%%\t%.2f%%\t%.2f%%\t%.2f%%\n",
			s.Name, 100*s.TotalReturn, 100*s.AnnualizedReturn, 100*s.AnnualizedVol, 100*s.MaxDrawdown)
	}
	tw.Flush()

	if ls := out.Result.LongShort; ls != nil && ls.Len() > 0 {
		fmt.Fprintf(w, "\nFinal %s value: %.2f\n", simulation.CurveLongShort, ls.Final())
	}
}

func bestTicker(tickers []string, returns []float64) string {
	best := -1
	for i, r := range returns {
		if best < 0 || r > returns[best] {
			best = i
		}
	}
	if best < 0 || best >= len(tickers) {
		return ""
	}
	return fmt.Sprintf("%s %+.1f%%", tickers[best], 100*returns[best])
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
