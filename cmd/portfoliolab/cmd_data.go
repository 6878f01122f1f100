package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/portfoliolab/internal/modules/marketdata"
	"github.com/aristath/portfoliolab/internal/utils"
)

// dataCmd is the parent command for the external data sources
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Inspect the external data sources",
	Long: `Query the ticker list, price and risk-free rate sources directly. Results
go through the same cache as the analysis commands.`,
}

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "List the current Dow Jones constituents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), dataTimeout)
		defer cancel()

		tickers, err := a.tickers.GetDowJonesTickers(ctx)
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(tickers, "\n"))
		return nil
	},
}

var pricesCmd = &cobra.Command{
	Use:   "prices TICKER[,TICKER...]",
	Short: "Download daily closes aligned on common dates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tickers := utils.ParseTickers(args[0])
		from, to, err := parseRange()
		if err != nil {
			return err
		}

		a, err := newApp(cfg, log, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), dataTimeout)
		defer cancel()

		res, err := marketdata.NewLoader(a.yahoo, cfg.FetchConcurrency, log).Load(ctx, tickers, from, to)
		if err != nil {
			return err
		}
		if len(res.Missing) > 0 {
			fmt.Fprintf(os.Stderr, "No data for: %s\n", strings.Join(res.Missing, ", "))
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "DATE\t%s\n", strings.Join(res.Frame.Tickers, "\t"))
		for t, d := range res.Frame.Dates {
			cols := make([]string, len(res.Frame.Tickers))
			for j := range cols {
				cols[j] = fmt.Sprintf("%.2f", res.Frame.Closes[t][j])
			}
			fmt.Fprintf(tw, "%s\t%s\n", d.Format("2006-01-02"), strings.Join(cols, "\t"))
		}
		return tw.Flush()
	},
}

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Show the risk-free rate series over a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := parseRange()
		if err != nil {
			return err
		}

		a, err := newApp(cfg, log, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), dataTimeout)
		defer cancel()

		obs, err := a.fred.GetObservations(ctx, from, to)
		if err != nil {
			return err
		}
		rate, err := a.fred.GetRate(ctx, from, to)
		if err != nil {
			return err
		}

		fmt.Printf("%s risk-free rate for %s..%s: %.4f (%d observations)\n",
			cfg.FredSeries, from.Format("2006-01-02"), to.Format("2006-01-02"), rate, len(obs))
		return nil
	},
}

var (
	dataFrom    string
	dataTo      string
	dataTimeout = 2 * time.Minute
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(tickersCmd, pricesCmd, rateCmd)

	for _, c := range []*cobra.Command{pricesCmd, rateCmd} {
		c.Flags().StringVar(&dataFrom, "from", "", "Start date YYYY-MM-DD (default: one year ago)")
		c.Flags().StringVar(&dataTo, "to", "", "End date YYYY-MM-DD (default: today)")
	}
}

func parseRange() (time.Time, time.Time, error) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	if dataTo != "" {
		t, err := time.Parse("2006-01-02", dataTo)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = t
	}
	from := to.AddDate(-1, 0, 0)
	if dataFrom != "" {
		t, err := time.Parse("2006-01-02", dataFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s after --to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return from, to, nil
}
