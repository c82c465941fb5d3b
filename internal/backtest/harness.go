package backtest

// harness.go: backtest out-of-sample de las alertas guardadas.
//
// Las alertas se ordenan por timestamp y se parten en train/test. Solo el
// sufijo cronológico (test) se simula: entrada con drift y slippage, salida
// al horizonte con el TWAP de trades reales o, si no hay, con un segundo drift.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/ports"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientSamples indica que no hay alertas suficientes para un run.
var ErrInsufficientSamples = errors.New("insufficient samples")

// Config son los parámetros del backtest.
type Config struct {
	TrainRatio         float64
	EntryDriftMean     float64
	EntryDriftStd      float64
	ExitDriftMean      float64
	ExitDriftStd       float64
	ExitHorizon        time.Duration
	ExitWindow         time.Duration // ± alrededor del horizonte
	SlippageMultiplier float64
	MinSamples         int
	Workers            int // 0 = NumCPU
}

// DefaultConfig devuelve 70/30, drift 2% (4% en la salida), salida a 24h ±1h.
func DefaultConfig() Config {
	return Config{
		TrainRatio:         0.7,
		EntryDriftMean:     0,
		EntryDriftStd:      0.02,
		ExitDriftMean:      0,
		ExitDriftStd:       0.04,
		ExitHorizon:        24 * time.Hour,
		ExitWindow:         time.Hour,
		SlippageMultiplier: 1.002,
		MinSamples:         5,
	}
}

// Harness ejecuta backtests. history puede ser nil: toda salida será simulada.
type Harness struct {
	cfg     Config
	history ports.TradeHistory
	sampler Sampler
	now     func() time.Time
}

// NewHarness crea un Harness. Con sampler nil usa un RandSampler sembrado por reloj.
func NewHarness(cfg Config, history ports.TradeHistory, sampler Sampler) *Harness {
	if sampler == nil {
		sampler = NewRandSampler(0)
	}
	return &Harness{cfg: cfg, history: history, sampler: sampler, now: time.Now}
}

// Split ordena por timestamp y parte en ⌈ratio×n⌉. No modifica alerts.
func Split(alerts []domain.Alert, ratio float64) (train, test []domain.Alert) {
	sorted := make([]domain.Alert, len(alerts))
	copy(sorted, alerts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	ratio = math.Max(0, math.Min(1, ratio))
	// el epsilon evita que 0.7×10 = 7.000000000000001 suba a 8
	idx := int(math.Ceil(ratio*float64(len(sorted)) - 1e-9))
	if idx > len(sorted) {
		idx = len(sorted)
	}
	return sorted[:idx], sorted[idx:]
}

// draws fija los drifts de una alerta antes de paralelizar, para que un seed
// dé el mismo run con cualquier número de workers.
type draws struct {
	entry float64
	exit  float64
}

// Run hace el backtest de las alertas. Devuelve ErrInsufficientSamples sin
// resultados parciales si hay menos de MinSamples alertas.
func (h *Harness) Run(ctx context.Context, alerts []domain.Alert) (domain.BacktestReport, []domain.BacktestResult, error) {
	if len(alerts) < h.cfg.MinSamples {
		return domain.BacktestReport{}, nil, fmt.Errorf("backtest.Run: %w: have %d alerts, need %d",
			ErrInsufficientSamples, len(alerts), h.cfg.MinSamples)
	}

	train, test := Split(alerts, h.cfg.TrainRatio)
	slog.Info("backtest split",
		"train", len(train),
		"test", len(test),
		"ratio", h.cfg.TrainRatio,
	)

	plan := make([]draws, len(test))
	for i := range test {
		plan[i] = draws{
			entry: h.sampler.Normal(h.cfg.EntryDriftMean, h.cfg.EntryDriftStd),
			exit:  h.sampler.Normal(h.cfg.ExitDriftMean, h.cfg.ExitDriftStd),
		}
	}

	slots := h.simulateAll(ctx, test, plan)
	if err := ctx.Err(); err != nil {
		return domain.BacktestReport{}, nil, fmt.Errorf("backtest.Run: %w", err)
	}

	results := make([]domain.BacktestResult, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}

	report := Summarize(results)
	report.RunID = uuid.NewString()
	report.StartedAt = h.now().UTC()
	report.TrainSize = len(train)
	report.TestSize = len(test)
	report.Horizon = h.cfg.ExitHorizon
	return report, results, nil
}

// simulateAll reparte las alertas entre workers. El orden cronológico se
// conserva escribiendo cada resultado en su índice.
func (h *Harness) simulateAll(ctx context.Context, test []domain.Alert, plan []draws) []*domain.BacktestResult {
	workers := h.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(test) {
		workers = len(test)
	}

	out := make([]*domain.BacktestResult, len(test))
	workCh := make(chan int, len(test))
	for i := range test {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					return
				}
				res, ok := h.simulate(ctx, test[i], plan[i])
				if ok {
					out[i] = &res
				}
			}
		}()
	}
	wg.Wait()
	return out
}

// simulate calcula entrada y salida de una alerta. false si el registro no es válido.
func (h *Harness) simulate(ctx context.Context, alert domain.Alert, d draws) (domain.BacktestResult, bool) {
	if err := alert.Validate(); err != nil {
		slog.Warn("skipping malformed alert", "alert_id", alert.ID, "err", err)
		return domain.BacktestResult{}, false
	}

	alertPrice := alert.CurrentPrice
	execPrice := alertPrice * (1 + d.entry)
	entry := execPrice * h.cfg.SlippageMultiplier
	if entry <= 0 {
		slog.Warn("skipping alert with non-positive entry", "alert_id", alert.ID, "entry", entry)
		return domain.BacktestResult{}, false
	}

	exit, source := h.exitPrice(ctx, alert, d.exit)
	pnl := exit - entry

	return domain.BacktestResult{
		AlertID:   alert.ID,
		Timestamp: alert.Timestamp,
		Score:     alert.Score,
		Execution: domain.EntryDetails{
			AlertPrice:     alertPrice,
			ExecutionPrice: execPrice,
			EntryPrice:     entry,
			ExitPrice:      exit,
			Drift:          d.entry,
			ExitSource:     source,
		},
		Horizon: h.cfg.ExitHorizon,
		PnL:     pnl,
		ROI:     pnl / entry,
	}, true
}

// exitPrice usa el TWAP de la ventana alrededor del horizonte; si no hay
// trades (o falla el fetch) simula con el drift de salida.
func (h *Harness) exitPrice(ctx context.Context, alert domain.Alert, exitDrift float64) (float64, domain.ExitSource) {
	if h.history != nil && alert.ConditionID != "" {
		at := alert.Timestamp.Add(h.cfg.ExitHorizon)
		trades, err := h.history.FetchTradesInRange(ctx, alert.ConditionID, at.Add(-h.cfg.ExitWindow), at.Add(h.cfg.ExitWindow))
		if err != nil {
			slog.Debug("exit trades unavailable, simulating", "alert_id", alert.ID, "err", err)
		} else if twap, ok := TWAP(trades); ok {
			return twap, domain.ExitFromTrades
		}
	}
	return alert.CurrentPrice * (1 + exitDrift), domain.ExitFromSimulate
}

// TWAP es la media de los precios positivos observados.
func TWAP(trades []domain.Trade) (float64, bool) {
	var sum float64
	var n int
	for _, t := range trades {
		if t.Price > 0 {
			sum += t.Price
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Summarize agrega los ROI de un run.
func Summarize(results []domain.BacktestResult) domain.BacktestReport {
	report := domain.BacktestReport{ValidResults: len(results)}
	if len(results) == 0 {
		return report
	}

	rois := make([]float64, len(results))
	wins := 0
	for i, r := range results {
		rois[i] = r.ROI
		if r.ROI > 0 {
			wins++
		}
	}

	report.AvgROI = stat.Mean(rois, nil)
	report.WinRate = float64(wins) / float64(len(rois))
	report.Best = rois[0]
	report.Worst = rois[0]
	for _, roi := range rois[1:] {
		report.Best = math.Max(report.Best, roi)
		report.Worst = math.Min(report.Worst, roi)
	}
	return report
}
