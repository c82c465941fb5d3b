package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle over the watched markets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.newTracker()
		if err != nil {
			return err
		}

		summary, err := t.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		a.console.PrintScanSummary(summary)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan continuously until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		t, err := a.newTracker()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a.serveMetrics(ctx)

		if err := t.Run(ctx, a.console.PrintScanSummary); err != nil {
			return err
		}
		slog.Info("polywatch stopped cleanly")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd, watchCmd)
}
