package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/tracker"
	"github.com/spf13/cobra"
)

var (
	statsRecent  time.Duration
	labelPending int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show alert statistics and recent alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		st, err := a.store.AlertStats(ctx)
		if err != nil {
			return err
		}
		a.console.PrintStats(st)

		if statsRecent <= 0 {
			return nil
		}
		recent, err := a.store.RecentAlerts(ctx, time.Now().Add(-statsRecent))
		if err != nil {
			return err
		}
		a.console.PrintAlerts(recent)
		return nil
	},
}

var qualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Report detection precision from labeled alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		alerts, err := a.store.LabeledAlerts(cmd.Context())
		if err != nil {
			return err
		}
		a.console.PrintQuality(tracker.EvaluateQuality(alerts))
		return nil
	},
}

var labelCmd = &cobra.Command{
	Use:   "label [alert-id insider|false_positive|unsure]",
	Short: "Label an alert, or list unlabeled alerts when called without arguments",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("expected 0 or 2 arguments, got %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if len(args) == 0 {
			pending, err := a.store.UnlabeledAlerts(ctx, labelPending)
			if err != nil {
				return err
			}
			a.console.PrintAlerts(pending)
			return nil
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid alert id %q", args[0])
		}
		label, ok := domain.ParseLabel(args[1])
		if !ok {
			return fmt.Errorf("invalid label %q: use insider, false_positive or unsure", args[1])
		}
		if err := a.store.LabelAlert(ctx, id, label); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "alert %d labeled %s\n", id, label)
		return nil
	},
}

func init() {
	statsCmd.Flags().DurationVar(&statsRecent, "recent", 24*time.Hour, "also list alerts newer than this (0 disables)")
	labelCmd.Flags().IntVar(&labelPending, "limit", 20, "unlabeled alerts to list")
	rootCmd.AddCommand(statsCmd, qualityCmd, labelCmd)
}
