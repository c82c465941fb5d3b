package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/polywatch/internal/adapters/notify"
	"github.com/alejandrodnm/polywatch/internal/detector"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeAlert(id int64, score float64) domain.Alert {
	return domain.Alert{
		ID:          id,
		Timestamp:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Wallet:      "0x1234567890abcdef1234567890abcdef12345678",
		MarketTitle: "Will the Fed cut rates in March?",
		MarketSlug:  "fed-cut-march",
		ConditionID: "0xcond",
		Trade:       domain.AlertTrade{Side: domain.SideBuy, Price: 0.12, Size: 20000, ValueUSD: 2400},
		Score:       score,
		Reasons: []string{
			"Fresh wallet: 0.5 days old",
			"Large position: $2,400",
			"Concentrated: 100% in one market",
			"Low odds bet: 0.12",
		},
		WalletStats:  domain.WalletStats{AgeDays: 0.5, TotalTrades: 1, UniqueMarkets: 1},
		CurrentPrice: 0.12,
	}
}

func TestConsole_NotifyAlert(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	require.NoError(t, c.NotifyAlert(context.Background(), makeAlert(1, 9.2)))

	out := buf.String()
	assert.Contains(t, out, "score 9.2/10")
	assert.Contains(t, out, "[critical]")
	assert.Contains(t, out, "0x123456...345678")
	assert.Contains(t, out, "BUY $2,400 @ 0.120")
	assert.Contains(t, out, "Concentrated")
	assert.NotContains(t, out, "Low odds bet", "muestra hasta tres razones")
	assert.Contains(t, out, "https://polymarket.com/event/fed-cut-march")
}

func TestConsole_PrintAlerts(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	a := makeAlert(7, 7.5)
	a.Label = domain.LabelInsider
	c.PrintAlerts([]domain.Alert{a, makeAlert(8, 6)})

	out := buf.String()
	assert.Contains(t, out, "insider")
	assert.Contains(t, out, "7.5")
	assert.Contains(t, out, "$2,400")
}

func TestConsole_EmptyOutputs(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintAlerts(nil)
	c.PrintStats(domain.AlertStats{})
	c.PrintQuality(domain.QualityReport{})

	out := buf.String()
	assert.Contains(t, out, "No alerts.")
	assert.Contains(t, out, "No alerts recorded yet.")
	assert.Contains(t, out, "No labeled alerts")
}

func TestConsole_PrintBacktest(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	report := domain.BacktestReport{
		RunID: "run-1", TrainSize: 7, TestSize: 3, ValidResults: 1,
		AvgROI: 0.05, WinRate: 1, Best: 0.05, Worst: 0.05, Horizon: 24 * time.Hour,
	}
	results := []domain.BacktestResult{{
		AlertID: 9,
		Score:   8,
		Execution: domain.EntryDetails{
			AlertPrice: 0.5, EntryPrice: 0.5, ExitPrice: 0.525, ExitSource: domain.ExitFromTrades,
		},
		ROI: 0.05,
	}}
	c.PrintBacktest(report, results)

	out := buf.String()
	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "+5.00%")
	assert.Contains(t, out, "twap")
	assert.Contains(t, out, "100.0%")
}

func TestConsole_PrintQualityListsFalsePositives(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintQuality(domain.QualityReport{
		Labeled: 4, TruePositives: 3, FalsePositives: 1, Precision: 0.75,
		TopFalse: []domain.Alert{makeAlert(3, 8.8)},
	})

	out := buf.String()
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "#3")
	assert.Contains(t, out, "Fresh wallet")
}

func TestConsole_PrintBaseline(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintBaseline(detector.DefaultBaseline())
	assert.Contains(t, buf.String(), "defaults")

	buf.Reset()
	b := detector.DefaultBaseline()
	b.Wallets = 42
	c.PrintBaseline(b)
	assert.Contains(t, buf.String(), "42 wallets")
}

func TestConsole_PrintScanSummary(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintScanSummary(domain.ScanSummary{Markets: 12, Trades: 340, Alerts: 2, Duration: 1500 * time.Millisecond})
	assert.Contains(t, buf.String(), "12 mkts | 340 trades")
	assert.Contains(t, buf.String(), "2 alerts")
	assert.Contains(t, buf.String(), "1.5s")
}
