package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polywatch/internal/detector"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/execution"
	"github.com/alejandrodnm/polywatch/internal/metrics"
	"github.com/alejandrodnm/polywatch/internal/ports"
)

// maxSeenTrades acota el set de trades procesados; al superarlo se reinicia.
// Los trades ya guardados se ignoran igualmente en el store.
const maxSeenTrades = 50000

// Config contiene la configuración del loop de escaneo.
type Config struct {
	Interval        time.Duration
	TagIDs          []int
	TradesPerMarket int
	Workers         int // goroutines por ciclo (0 = NumCPU*2)
	AlertThreshold  float64
	HistoryLimit    int
	FetchHistory    bool // la estrategia de wash necesita el historial del wallet vía API
	Filter          FilterConfig
}

// Store es lo que el tracker necesita del almacenamiento.
type Store interface {
	ports.WalletStore
	ports.AlertStore
}

// Deps agrupa las dependencias inyectadas desde cmd/.
type Deps struct {
	Markets   ports.MarketProvider
	Trades    ports.TradeProvider
	Store     Store
	Scorer    *detector.Scorer
	Baseline  *detector.BaselineTracker
	Notifiers []ports.Notifier
	Copier    *execution.CopyTrader // opcional
	Metrics   *metrics.Metrics      // opcional
}

// Tracker vigila los mercados activos y levanta alertas sobre trades sospechosos.
type Tracker struct {
	cfg Config
	Deps

	filter *Filter

	mu   sync.Mutex
	seen map[string]struct{}
	now  func() time.Time
}

// New crea un Tracker.
func New(cfg Config, deps Deps) *Tracker {
	if cfg.TradesPerMarket <= 0 {
		cfg.TradesPerMarket = 100
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if deps.Baseline == nil {
		deps.Baseline = detector.NewBaselineTracker()
	}
	return &Tracker{
		cfg:    cfg,
		Deps:   deps,
		filter: NewFilter(cfg.Filter),
		seen:   make(map[string]struct{}),
		now:    time.Now,
	}
}

// Run ejecuta ciclos hasta que el contexto se cancele. onCycle recibe el resumen
// de cada ciclo completado y puede ser nil.
func (t *Tracker) Run(ctx context.Context, onCycle func(domain.ScanSummary)) error {
	slog.Info("tracker starting",
		"interval", t.cfg.Interval,
		"tags", t.cfg.TagIDs,
		"workers", t.cfg.Workers,
		"threshold", t.cfg.AlertThreshold,
	)

	t.runCycle(ctx, onCycle)

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("tracker stopped")
			return nil
		case <-ticker.C:
			t.runCycle(ctx, onCycle)
		}
	}
}

func (t *Tracker) runCycle(ctx context.Context, onCycle func(domain.ScanSummary)) {
	summary, err := t.RunOnce(ctx)
	if err != nil {
		slog.Error("scan cycle failed", "err", err)
		return
	}
	if onCycle != nil {
		onCycle(summary)
	}
}

// RunOnce ejecuta exactamente un ciclo: refresca el baseline, pide los mercados
// y procesa sus trades en paralelo.
func (t *Tracker) RunOnce(ctx context.Context) (domain.ScanSummary, error) {
	start := t.now()
	summary := domain.ScanSummary{StartedAt: start}

	baseline := t.Baseline.Refresh(ctx, t.Store)

	markets, err := t.Markets.FetchActiveMarkets(ctx, t.cfg.TagIDs)
	if err != nil {
		t.Metrics.ScanError("fetch_markets")
		return summary, fmt.Errorf("tracker.RunOnce: fetch markets: %w", err)
	}
	markets = t.filter.Apply(markets)
	summary.Markets = len(markets)

	for _, r := range processMarketsConcurrent(ctx, t, markets, baseline, t.cfg.Workers) {
		summary.Trades += r.trades
		summary.Skipped += r.skipped
		summary.Alerts += r.alerts
		summary.Coordinated += r.coordinated
		summary.Errors += r.errors
	}
	summary.Duration = t.now().Sub(start)

	t.Metrics.ScanCompleted()
	slog.Info("scan cycle complete",
		"markets", summary.Markets,
		"trades", summary.Trades,
		"alerts", summary.Alerts,
		"errors", summary.Errors,
		"duration", summary.Duration.Round(time.Millisecond),
	)
	return summary, nil
}

// marketResult es el resultado de procesar un mercado.
type marketResult struct {
	trades      int
	skipped     int
	alerts      int
	coordinated int
	errors      int
}

// processMarket puntúa los trades nuevos de un mercado.
// Un fallo en un trade se cuenta y se registra, pero no corta el resto del batch.
func (t *Tracker) processMarket(ctx context.Context, m domain.Market, baseline detector.Baseline) marketResult {
	var res marketResult

	raw, err := t.Trades.FetchMarketTrades(ctx, m.ConditionID, t.cfg.TradesPerMarket)
	if err != nil {
		slog.Warn("fetch trades failed", "condition_id", m.ConditionID, "err", err)
		t.Metrics.ScanError("fetch_trades")
		res.errors++
		return res
	}

	valid := make([]domain.Trade, 0, len(raw))
	for _, tr := range raw {
		if err := tr.Validate(); err != nil {
			slog.Debug("skipping malformed trade", "condition_id", m.ConditionID, "err", err)
			res.skipped++
			continue
		}
		valid = append(valid, tr)
	}

	stats := domain.ComputeMarketStats(valid)

	for _, g := range detector.DetectCoordinated(valid) {
		res.coordinated++
		slog.Warn("coordinated activity",
			"market", m.Title(),
			"window", g.Window.Format(time.RFC3339),
			"pattern", g.Pattern,
			"trades", g.Count(),
		)
	}

	batch := make(map[string]struct{}, len(valid))
	for _, tr := range valid {
		if _, dup := batch[tr.ID]; dup || t.isSeen(tr.ID) {
			continue
		}
		batch[tr.ID] = struct{}{}
		res.trades++

		alerted, err := t.scoreTrade(ctx, m, tr, stats, baseline)
		if err != nil {
			// sin markSeen: el próximo ciclo lo reintenta
			slog.Warn("trade processing failed", "trade_id", tr.ID, "wallet", tr.Wallet, "err", err)
			t.Metrics.ScanError("store")
			res.errors++
			continue
		}
		t.markSeen(tr.ID)
		if alerted {
			res.alerts++
		}
	}
	return res
}

// scoreTrade registra el trade, lo puntúa y crea la alerta si supera el umbral.
func (t *Tracker) scoreTrade(ctx context.Context, m domain.Market, tr domain.Trade, stats domain.MarketStats, baseline detector.Baseline) (bool, error) {
	if err := t.Store.RegisterTrade(ctx, tr, m.Title()); err != nil {
		return false, fmt.Errorf("tracker.scoreTrade: register: %w", err)
	}

	ws, err := t.Store.WalletStats(ctx, tr.Wallet)
	if err != nil {
		return false, fmt.Errorf("tracker.scoreTrade: wallet stats: %w", err)
	}

	in := detector.Input{
		Trade:    tr,
		Wallet:   ws,
		Market:   stats,
		Baseline: baseline,
	}
	if t.Scorer.NeedsHistory() {
		in.History = t.walletHistory(ctx, tr.Wallet)
	}
	score := t.Scorer.Score(in)
	t.Metrics.TradeScored(score.Value)

	if isWashVeto(score) {
		t.Metrics.WashFlagged()
		slog.Info("wash trading veto", "wallet", tr.Wallet, "market", m.Title())
		return false, nil
	}
	if score.Value < t.cfg.AlertThreshold {
		return false, nil
	}

	alert := domain.NewAlert(m, tr, score, ws, t.now())
	id, err := t.Store.SaveAlert(ctx, alert)
	if err != nil {
		return false, fmt.Errorf("tracker.scoreTrade: save alert: %w", err)
	}
	alert.ID = id
	t.Metrics.AlertRaised(alert.Severity())

	slog.Warn("suspicious trade",
		"alert_id", id,
		"score", fmt.Sprintf("%.1f", score.Value),
		"wallet", tr.Wallet,
		"market", m.Title(),
		"value_usd", fmt.Sprintf("%.0f", tr.Notional()),
	)

	t.notify(ctx, alert)
	t.follow(ctx, alert)
	return true, nil
}

// walletHistory devuelve el historial usado por el veto de wash trading.
// Con FetchHistory se pide a la API; si falla, o sin FetchHistory, sale del store.
func (t *Tracker) walletHistory(ctx context.Context, wallet string) []domain.Trade {
	if t.cfg.FetchHistory {
		history, err := t.Trades.FetchUserTrades(ctx, wallet, t.cfg.HistoryLimit)
		if err == nil {
			return history
		}
		slog.Debug("fetch user trades failed, using stored history", "wallet", wallet, "err", err)
	}

	history, err := t.Store.WalletHistory(ctx, wallet, t.cfg.HistoryLimit)
	if err != nil {
		slog.Debug("wallet history unavailable", "wallet", wallet, "err", err)
		return nil
	}
	return history
}

func (t *Tracker) notify(ctx context.Context, alert domain.Alert) {
	for _, n := range t.Notifiers {
		if err := n.NotifyAlert(ctx, alert); err != nil {
			slog.Warn("notifier error", "alert_id", alert.ID, "err", err)
			t.Metrics.ScanError("notify")
		}
	}
}

// follow cotiza el copy-trade de la alerta si pasa los filtros de riesgo.
func (t *Tracker) follow(ctx context.Context, alert domain.Alert) {
	if t.Copier == nil || !t.Copier.ShouldFollow(alert) {
		return
	}

	quote, err := t.Copier.Quote(ctx, alert)
	if err != nil {
		slog.Warn("copy quote failed", "alert_id", alert.ID, "err", err)
		return
	}
	if !t.Copier.Open() {
		return
	}
	slog.Info("copy trade simulated",
		"alert_id", alert.ID,
		"side", quote.Side,
		"size_usd", fmt.Sprintf("%.2f", quote.SizeUSD),
		"final_price", fmt.Sprintf("%.4f", quote.FinalPrice),
		"impact", fmt.Sprintf("%.4f", quote.MarketImpact),
		"active", t.Copier.Active(),
	)
}

// isSeen indica si el trade ya se procesó con éxito en un ciclo anterior.
func (t *Tracker) isSeen(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[id]
	return ok
}

func (t *Tracker) markSeen(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.seen) >= maxSeenTrades {
		slog.Debug("resetting processed trade set", "size", len(t.seen))
		t.seen = make(map[string]struct{})
	}
	t.seen[id] = struct{}{}
}

func isWashVeto(s domain.SuspicionScore) bool {
	return s.Value == 0 && len(s.Reasons) == 1 && s.Reasons[0] == detector.WashVetoReason
}
