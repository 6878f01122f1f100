package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aristath/portfoliolab/internal/services"
	"github.com/aristath/portfoliolab/internal/utils"
)

// filingsCmd is the parent command for the annual report analyses
var filingsCmd = &cobra.Command{
	Use:   "filings",
	Short: "Analyze annual report filings",
	Long: `Select each ticker's first annual report of a year from the EDGAR full
index, store the documents, and measure the return variance after filing and
the readability, uncertainty and tone of the text.

Text metrics need the Loughran-McDonald word lists LM_Uncertainty.txt,
LM_Positive.txt and LM_Negative.txt in PORTFOLIOLAB_DICTIONARY_DIR.

Examples:
  portfoliolab filings index --year 2023
  portfoliolab filings download --tickers AAPL,MSFT
  portfoliolab filings variance --days 20
  portfoliolab filings metrics --format json`,
}

var filingsIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Show the filing selected for each ticker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResearch(cmd, func(ctx context.Context, svc *services.ResearchService) error {
			sel, err := svc.SelectFilings(ctx, researchTickerList(), cfg.FilingYear)
			if err != nil {
				return err
			}
			if researchFormat == "json" {
				return writeJSON(os.Stdout, sel)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICKER\tCIK\tFILED\tFILENAME")
			for _, tf := range sel.Found {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", tf.Ticker, tf.Filing.CIK, tf.Filing.DateFiled.Format("2006-01-02"), tf.Filing.Filename)
			}
			tw.Flush()
			printMissing(sel.Missing)
			return nil
		})
	},
}

var filingsDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Store the selected filings for text analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResearch(cmd, func(ctx context.Context, svc *services.ResearchService) error {
			sel, err := svc.SelectFilings(ctx, researchTickerList(), cfg.FilingYear)
			if err != nil {
				return err
			}
			paths, err := svc.DownloadFilings(ctx, sel)
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(paths, "\n"))
			printMissing(sel.Missing)
			return nil
		})
	},
}

var filingsVarianceCmd = &cobra.Command{
	Use:   "variance",
	Short: "Measure daily return variance after each filing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResearch(cmd, func(ctx context.Context, svc *services.ResearchService) error {
			sel, err := svc.SelectFilings(ctx, researchTickerList(), cfg.FilingYear)
			if err != nil {
				return err
			}
			variances, err := svc.PostFilingVariance(ctx, sel)
			if err != nil {
				return err
			}
			if researchFormat == "json" {
				return writeJSON(os.Stdout, variances)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICKER\tFILED\tRETURNS\tVARIANCE")
			for _, v := range variances {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.6f\n", v.Ticker, v.DateFiled.Format("2006-01-02"), v.Returns, v.Variance)
			}
			tw.Flush()
			printMissing(sel.Missing)
			return nil
		})
	},
}

var filingsMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Score stored filings for uncertainty, tone and readability",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResearch(cmd, func(ctx context.Context, svc *services.ResearchService) error {
			metrics, missing, err := svc.TextMetrics(ctx, researchTickerList())
			if err != nil {
				return err
			}
			if researchFormat == "json" {
				return writeJSON(os.Stdout, metrics)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TICKER\tUNCERTAINTY\tTONE\tFOG\tFLESCH")
			for _, m := range metrics {
				fmt.Fprintf(tw, "%s\t%.4f\t%+.4f\t%.2f\t%.2f\n", m.Ticker, m.Uncertainty, m.Tone, m.FOG, m.Readability)
			}
			tw.Flush()
			printMissing(missing)
			return nil
		})
	},
}

// newsCmd scores current headlines
var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Score current headlines and average them per ticker",
	Long: `Scrape each ticker's quote page headlines and score every title with the
Loughran-McDonald tone lists, (positive - negative) / (positive + negative).

Examples:
  portfoliolab news --tickers AAPL,MSFT
  portfoliolab news --headlines`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResearch(cmd, func(ctx context.Context, svc *services.ResearchService) error {
			scored, averages, err := svc.NewsSentiment(ctx, researchTickerList())
			if err != nil {
				return err
			}
			if researchFormat == "json" {
				if newsShowHeadlines {
					return writeJSON(os.Stdout, scored)
				}
				return writeJSON(os.Stdout, averages)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			if newsShowHeadlines {
				fmt.Fprintln(tw, "TICKER\tPUBLISHED\tSCORE\tTITLE")
				for _, s := range scored {
					published := ""
					if !s.Published.IsZero() {
						published = s.Published.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(tw, "%s\t%s\t%+.2f\t%s\n", s.Ticker, published, s.Score, s.Title)
				}
				fmt.Fprintln(tw)
			}
			fmt.Fprintln(tw, "TICKER\tHEADLINES\tAVERAGE")
			for _, a := range averages {
				fmt.Fprintf(tw, "%s\t%d\t%+.3f\n", a.Ticker, a.Headlines, a.Average)
			}
			return tw.Flush()
		})
	},
}

var (
	researchTickers   string
	researchYear      int
	researchDays      int
	researchFormat    string
	newsShowHeadlines bool
)

func init() {
	rootCmd.AddCommand(filingsCmd, newsCmd)
	filingsCmd.AddCommand(filingsIndexCmd, filingsDownloadCmd, filingsVarianceCmd, filingsMetricsCmd)

	for _, c := range []*cobra.Command{filingsIndexCmd, filingsDownloadCmd, filingsVarianceCmd, filingsMetricsCmd, newsCmd} {
		c.Flags().StringVar(&researchTickers, "tickers", "", "Comma-separated tickers (default: configured list, else Dow Jones constituents)")
		c.Flags().StringVar(&researchFormat, "format", "table", "Output format: table, json")
	}
	for _, c := range []*cobra.Command{filingsIndexCmd, filingsDownloadCmd, filingsVarianceCmd} {
		c.Flags().IntVar(&researchYear, "year", 0, "Filing year (default from PORTFOLIOLAB_FILING_YEAR)")
	}
	filingsVarianceCmd.Flags().IntVar(&researchDays, "days", 0, "Calendar days after filing (default from PORTFOLIOLAB_DAYS_AFTER_FILING)")
	newsCmd.Flags().BoolVar(&newsShowHeadlines, "headlines", false, "List every scored headline")
}

// withResearch applies the research flags, wires the app and runs fn with
// an interruptible context.
func withResearch(cmd *cobra.Command, fn func(ctx context.Context, svc *services.ResearchService) error) error {
	f := cmd.Flags()
	if f.Changed("year") {
		cfg.FilingYear = researchYear
	}
	if f.Changed("days") {
		cfg.DaysAfterFiling = researchDays
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	a, err := newApp(cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a.research)
}

func researchTickerList() []string {
	if researchTickers != "" {
		return utils.ParseTickers(researchTickers)
	}
	return cfg.Tickers
}

func printMissing(missing []string) {
	if len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "No data for: %s\n", strings.Join(missing, ", "))
	}
}
