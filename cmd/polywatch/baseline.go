package main

import (
	"github.com/alejandrodnm/polywatch/internal/detector"
	"github.com/spf13/cobra"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Compute the wallet population baseline from stored trades",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		b := detector.NewBaselineTracker().Refresh(cmd.Context(), a.store)
		a.console.PrintBaseline(b)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(baselineCmd)
}
