package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polywatch/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	logFormat  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "polywatch",
	Short: "Watch Polymarket trades for insider activity",
	Long: `polywatch scores every new trade on the watched Polymarket markets,
stores alerts for suspicious wallets and backtests the alerts out-of-sample.

Examples:
  polywatch scan
  polywatch watch --config config/config.yaml
  polywatch backtest --seed 42
  polywatch label 17 insider`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		if logFormat != "" {
			loaded.Log.Format = logFormat
		}
		setupLogger(loaded.Log)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "set log level to debug")
	rootCmd.PersistentFlags().StringVar(&logFormat, "format", "", "log format: text|json (overrides config)")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		slog.Error("polywatch failed", "err", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
