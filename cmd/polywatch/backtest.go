package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polywatch/internal/backtest"
	"github.com/spf13/cobra"
)

var (
	backtestSeed   uint64
	backtestDays   int
	backtestNoSave bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest stored alerts on the chronological test split",
	Long: `Sorts the stored alerts by time, keeps the last 30% as test set and simulates
entering each alert with drift and slippage, exiting at the configured horizon.

Examples:
  polywatch backtest
  polywatch backtest --seed 42 --days 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		lookback := a.cfg.Lookback()
		if backtestDays > 0 {
			lookback = time.Duration(backtestDays) * 24 * time.Hour
		}
		alerts, err := a.store.RecentAlerts(ctx, time.Now().Add(-lookback))
		if err != nil {
			return err
		}

		seed := a.cfg.Backtest.Seed
		if cmd.Flags().Changed("seed") {
			seed = backtestSeed
		}

		report, results, err := a.newHarness(seed).Run(ctx, alerts)
		if errors.Is(err, backtest.ErrInsufficientSamples) {
			slog.Warn("not enough alerts to backtest", "alerts", len(alerts), "min", a.cfg.Backtest.MinSamples)
			return nil
		}
		if err != nil {
			return err
		}

		for _, r := range results {
			a.metrics.BacktestResult(r.ROI)
		}
		a.console.PrintBacktest(report, results)

		if backtestNoSave {
			return nil
		}
		if err := a.store.SaveBacktest(ctx, report, results); err != nil {
			return err
		}
		slog.Info("backtest saved", "run_id", report.RunID, "results", len(results))
		return nil
	},
}

func init() {
	backtestCmd.Flags().Uint64Var(&backtestSeed, "seed", 0, "drift seed (overrides config; 0 = time-seeded)")
	backtestCmd.Flags().IntVar(&backtestDays, "days", 0, "alert lookback in days (overrides config)")
	backtestCmd.Flags().BoolVar(&backtestNoSave, "no-save", false, "do not persist the run")
	rootCmd.AddCommand(backtestCmd)
}
