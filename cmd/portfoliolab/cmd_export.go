package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/portfoliolab/internal/export"
)

// runsCmd is the parent command for stored runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List, archive and export stored runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.reports.ListRuns(runsLimit)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tCREATED\tTICKERS")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ID, r.Kind, r.CreatedAt.Format(time.RFC3339), len(r.Tickers))
		}
		return tw.Flush()
	},
}

var runsArchiveCmd = &cobra.Command{
	Use:   "archive RUN_ID FILE",
	Short: "Write a run as a local tar.gz archive",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("failed to create archive file: %w", err)
		}
		defer f.Close()

		svc := export.NewService(nil, a.reports, cfg.Export.Prefix, log)
		if err := svc.WriteArchive(f, args[0]); err != nil {
			return err
		}
		return f.Close()
	},
}

var runsExportCmd = &cobra.Command{
	Use:   "export RUN_ID",
	Short: "Upload a run archive to the configured bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		svc, err := newExportService(ctx, a)
		if err != nil {
			return err
		}
		key, err := svc.ExportRun(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

var runsExportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List uploaded run archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, log, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		svc, err := newExportService(ctx, a)
		if err != nil {
			return err
		}
		exports, err := svc.ListExports(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tUPLOADED\tSIZE\tKEY")
		for _, e := range exports {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.RunID, e.Timestamp.Format(time.RFC3339), e.SizeBytes, e.Key)
		}
		return tw.Flush()
	},
}

var runsLimit int

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsArchiveCmd, runsExportCmd, runsExportsCmd)
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs")
}

// newExportService connects to the configured bucket.
func newExportService(ctx context.Context, a *app) (*export.Service, error) {
	if !cfg.Export.Enabled() {
		return nil, fmt.Errorf("export disabled: set EXPORT_BUCKET")
	}
	client, err := export.NewS3Client(ctx, cfg.Export.S3Config(), log)
	if err != nil {
		return nil, err
	}
	return export.NewService(client, a.reports, cfg.Export.Prefix, log), nil
}
