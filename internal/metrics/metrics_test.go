package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.ScanCompleted()
	m.ScanCompleted()
	m.TradeScored(3)
	m.AlertRaised(domain.SeverityHigh)
	m.AlertRaised(domain.SeverityCritical)
	m.AlertRaised(domain.SeverityHigh)
	m.WashFlagged()
	m.ScanError("trades")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Scans))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesAnalyzed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Alerts.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alerts.WithLabelValues("critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WashFlags))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScanErrors.WithLabelValues("trades")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SuspicionScore))
}

func TestMetrics_BreakerGauge(t *testing.T) {
	m := metrics.New()
	m.SetBreakerState("data-api", metrics.BreakerOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("data-api")))

	m.SetBreakerState("data-api", metrics.BreakerClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("data-api")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ScanCompleted()
		m.TradeScored(1)
		m.AlertRaised(domain.SeverityInfo)
		m.WashFlagged()
		m.ScanError("x")
		m.BacktestResult(0.1)
		m.SetBreakerState("x", 1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.BacktestResult(0.03)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "polywatch_backtest_roi_count 1")
}
