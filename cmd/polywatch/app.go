package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/polywatch/config"
	"github.com/alejandrodnm/polywatch/internal/adapters/notify"
	"github.com/alejandrodnm/polywatch/internal/adapters/polymarket"
	"github.com/alejandrodnm/polywatch/internal/adapters/storage"
	"github.com/alejandrodnm/polywatch/internal/backtest"
	"github.com/alejandrodnm/polywatch/internal/detector"
	"github.com/alejandrodnm/polywatch/internal/execution"
	"github.com/alejandrodnm/polywatch/internal/metrics"
	"github.com/alejandrodnm/polywatch/internal/ports"
	"github.com/alejandrodnm/polywatch/internal/tracker"
	"github.com/sony/gobreaker"
)

// app agrupa las dependencias compartidas por los subcomandos.
type app struct {
	cfg     *config.Config
	store   *storage.SQLiteStorage
	client  *polymarket.Client
	metrics *metrics.Metrics
	console *notify.Console
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage %q: %w", cfg.Storage.DSN, err)
	}

	m := metrics.New()
	client := polymarket.NewClient(polymarket.Config{
		CLOBBase:        cfg.API.CLOBBase,
		GammaBase:       cfg.API.GammaBase,
		DataBase:        cfg.API.DataBase,
		BreakerFailures: cfg.API.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout(),
		OnBreakerChange: func(name string, _, to gobreaker.State) {
			m.SetBreakerState(name, breakerGauge(to))
		},
	})

	return &app{
		cfg:     cfg,
		store:   store,
		client:  client,
		metrics: m,
		console: notify.NewConsole(),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("close storage", "err", err)
	}
}

func (a *app) simulator() *execution.Simulator {
	return execution.NewSimulator(execution.Config{
		SlippageBps: a.cfg.Execution.SlippageBps,
		FeeBps:      a.cfg.Execution.FeeBps,
		Latency:     a.cfg.Latency(),
	}, a.client)
}

func (a *app) newTracker() (*tracker.Tracker, error) {
	d := a.cfg.Detection
	w := a.cfg.Wash
	wash := detector.NewWashClassifier(detector.WashThresholds{
		MinPLVolumeRatio:      w.MinPLVolumeRatio,
		MaxHoldingTimeSec:     w.MaxHoldingTimeSec,
		ExtremePriceThreshold: w.ExtremePriceThreshold,
		WinRateSuspicious:     w.WinRateSuspicious,
		EntropyLowLimit:       w.EntropyLowLimit,
		ConcentrationLimit:    w.ConcentrationLimit,
	})
	boost, err := detector.NewRiskBoost(d.RiskBoost, wash)
	if err != nil {
		return nil, err
	}
	scorer := detector.NewScorer(detector.Thresholds{
		FreshWalletDays:        d.FreshWalletDays,
		MinBetSize:             d.MinBetSize,
		LargeBetMultiplier:     d.LargeBetMultiplier,
		MinWalletConcentration: d.MinWalletConcentration,
		NicheMarketVolume:      d.NicheMarketVolumeThreshold,
	}, boost)

	s := a.cfg.Strategy
	copier := execution.NewCopyTrader(execution.StrategyConfig{
		Enabled:        s.Enabled,
		MinScore:       s.MinScore,
		MinWinRate:     s.MinWinRate,
		MaxConcurrent:  s.MaxConcurrent,
		MaxPositionUSD: s.MaxPositionUSD,
	}, a.simulator())

	notifiers := []ports.Notifier{a.console}
	if slack := notify.NewSlack(a.cfg.Slack.Enabled, a.cfg.Slack.WebhookURL); slack.Enabled() {
		notifiers = append(notifiers, slack)
	}

	return tracker.New(tracker.Config{
		Interval:        a.cfg.ScanInterval(),
		TagIDs:          a.cfg.Scanner.TagIDs,
		TradesPerMarket: a.cfg.Scanner.TradesPerMarket,
		Workers:         a.cfg.Scanner.Workers,
		AlertThreshold:  d.AlertThreshold,
		FetchHistory:    d.RiskBoost != detector.BoostBaseline,
		Filter: tracker.FilterConfig{
			MinVolume:  a.cfg.Scanner.MinVolume,
			MaxMarkets: a.cfg.Scanner.MaxMarkets,
		},
	}, tracker.Deps{
		Markets:   a.client,
		Trades:    a.client,
		Store:     a.store,
		Scorer:    scorer,
		Baseline:  detector.NewBaselineTracker(),
		Notifiers: notifiers,
		Copier:    copier,
		Metrics:   a.metrics,
	}), nil
}

func (a *app) newHarness(seed uint64) *backtest.Harness {
	b := a.cfg.Backtest
	return backtest.NewHarness(backtest.Config{
		TrainRatio:         b.TrainRatio,
		EntryDriftMean:     b.EntryDriftMean,
		EntryDriftStd:      b.EntryDriftStd,
		ExitDriftMean:      b.ExitDriftMean,
		ExitDriftStd:       b.ExitDriftStd,
		ExitHorizon:        a.cfg.ExitHorizon(),
		ExitWindow:         a.cfg.ExitWindow(),
		SlippageMultiplier: b.SlippageMultiplier,
		MinSamples:         b.MinSamples,
		Workers:            b.Workers,
	}, a.client, backtest.NewRandSampler(seed))
}

// serveMetrics expone /metrics hasta que ctx se cancele. No hace nada si está desactivado.
func (a *app) serveMetrics(ctx context.Context) {
	if !a.cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("metrics server listening", "addr", a.cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func breakerGauge(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}
