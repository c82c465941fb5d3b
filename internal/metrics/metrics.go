package metrics

// metrics.go: contadores Prometheus del watcher, en un registry propio.

import (
	"net/http"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "polywatch"

// Estados del breaker tal como se exportan en el gauge.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// Metrics agrupa los collectors. Un valor nil es válido y no registra nada.
type Metrics struct {
	registry *prometheus.Registry

	Scans          prometheus.Counter
	TradesAnalyzed prometheus.Counter
	Alerts         *prometheus.CounterVec
	WashFlags      prometheus.Counter
	ScanErrors     *prometheus.CounterVec
	SuspicionScore prometheus.Histogram
	BacktestROI    prometheus.Histogram
	BreakerState   *prometheus.GaugeVec
}

// New crea y registra todos los collectors en un registry nuevo.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed scan cycles.",
		}),
		TradesAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_analyzed_total",
			Help:      "Trades scored by the suspicion scorer.",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised, by severity.",
		}, []string{"severity"}),
		WashFlags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wash_flags_total",
			Help:      "Wallets classified as wash traders.",
		}),
		ScanErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Errors during scans, by stage.",
		}, []string{"stage"}),
		SuspicionScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suspicion_score",
			Help:      "Distribution of suspicion scores.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		BacktestROI: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_roi",
			Help:      "ROI of backtested alerts.",
			Buckets:   prometheus.LinearBuckets(-0.2, 0.05, 9),
		}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		m.Scans,
		m.TradesAnalyzed,
		m.Alerts,
		m.WashFlags,
		m.ScanErrors,
		m.SuspicionScore,
		m.BacktestROI,
		m.BreakerState,
	)
	return m
}

// Handler sirve el registry en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry expone el registry (tests y exporters adicionales).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ScanCompleted() {
	if m == nil {
		return
	}
	m.Scans.Inc()
}

func (m *Metrics) TradeScored(score float64) {
	if m == nil {
		return
	}
	m.TradesAnalyzed.Inc()
	m.SuspicionScore.Observe(score)
}

func (m *Metrics) AlertRaised(sev domain.Severity) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(string(sev)).Inc()
}

func (m *Metrics) WashFlagged() {
	if m == nil {
		return
	}
	m.WashFlags.Inc()
}

// ScanError cuenta un error en la etapa dada (markets, trades, store, notify...).
func (m *Metrics) ScanError(stage string) {
	if m == nil {
		return
	}
	m.ScanErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) BacktestResult(roi float64) {
	if m == nil {
		return
	}
	m.BacktestROI.Observe(roi)
}

// SetBreakerState publica el estado del breaker con nombre name.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
