package backtest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/polywatch/internal/backtest"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func alertAt(id int64, hours int, price float64) domain.Alert {
	return domain.Alert{
		ID:           id,
		Timestamp:    t0.Add(time.Duration(hours) * time.Hour),
		Wallet:       "0xw",
		ConditionID:  "0xc",
		TokenID:      "tok",
		Score:        8,
		CurrentPrice: price,
	}
}

// shuffled devuelve n alertas con ids 1..n en orden temporal, entregadas desordenadas.
func shuffled(n int) []domain.Alert {
	alerts := make([]domain.Alert, 0, n)
	for i := n; i >= 1; i-- {
		alerts = append(alerts, alertAt(int64(i), i, 0.5))
	}
	return alerts
}

type mockHistory struct {
	mu     sync.Mutex
	trades []domain.Trade
	err    error
	calls  [][2]time.Time
}

func (m *mockHistory) FetchTradesInRange(_ context.Context, _ string, from, to time.Time) ([]domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, [2]time.Time{from, to})
	return m.trades, m.err
}

func TestSplit_ChronologicalSevenThree(t *testing.T) {
	train, test := backtest.Split(shuffled(10), 0.7)

	require.Len(t, train, 7)
	require.Len(t, test, 3)
	for i, a := range train {
		assert.Equal(t, int64(i+1), a.ID)
	}
	for i, a := range test {
		assert.Equal(t, int64(8+i), a.ID)
	}
	assert.True(t, train[len(train)-1].Timestamp.Before(test[0].Timestamp))
}

func TestSplit_CeilAndBounds(t *testing.T) {
	train, test := backtest.Split(shuffled(5), 0.7)
	assert.Len(t, train, 4) // ⌈3.5⌉
	assert.Len(t, test, 1)

	train, test = backtest.Split(shuffled(3), 1)
	assert.Len(t, train, 3)
	assert.Empty(t, test)

	train, test = backtest.Split(nil, 0.7)
	assert.Empty(t, train)
	assert.Empty(t, test)
}

func TestSplit_DoesNotMutateInput(t *testing.T) {
	in := shuffled(4)
	backtest.Split(in, 0.5)
	assert.Equal(t, int64(4), in[0].ID)
}

func TestRun_EntryPriceWithForcedDrift(t *testing.T) {
	h := backtest.NewHarness(backtest.DefaultConfig(), nil, backtest.FixedSampler(0.01))

	report, results, err := h.Run(context.Background(), shuffled(10))
	require.NoError(t, err)
	require.Len(t, results, 3)

	r := results[0]
	assert.InDelta(t, 0.5, r.Execution.AlertPrice, 1e-12)
	assert.InDelta(t, 0.505, r.Execution.ExecutionPrice, 1e-12)
	assert.InDelta(t, 0.50601, r.Execution.EntryPrice, 1e-12)
	assert.Greater(t, r.Execution.EntryPrice, r.Execution.ExecutionPrice)
	assert.Equal(t, domain.ExitFromSimulate, r.Execution.ExitSource)
	// salida simulada con el mismo drift sobre el precio de la alerta
	assert.InDelta(t, 0.505, r.Execution.ExitPrice, 1e-12)
	assert.InDelta(t, (0.505-0.50601)/0.50601, r.ROI, 1e-12)

	assert.Equal(t, 7, report.TrainSize)
	assert.Equal(t, 3, report.TestSize)
	assert.Equal(t, 3, report.ValidResults)
	assert.Equal(t, 0.0, report.WinRate)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 24*time.Hour, report.Horizon)
}

func TestRun_ResultsFollowTestOrder(t *testing.T) {
	cfg := backtest.DefaultConfig()
	cfg.Workers = 4
	h := backtest.NewHarness(cfg, nil, backtest.FixedSampler(0))

	_, results, err := h.Run(context.Background(), shuffled(20))
	require.NoError(t, err)
	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, int64(15+i), r.AlertID)
	}
}

func TestRun_ExitFromTWAP(t *testing.T) {
	hist := &mockHistory{trades: []domain.Trade{
		{Price: 0.60}, {Price: 0.70}, {Price: 0}, {Price: 0.80},
	}}
	h := backtest.NewHarness(backtest.DefaultConfig(), hist, backtest.FixedSampler(0))

	_, results, err := h.Run(context.Background(), shuffled(5))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, domain.ExitFromTrades, r.Execution.ExitSource)
	assert.InDelta(t, 0.70, r.Execution.ExitPrice, 1e-12)
	assert.Greater(t, r.ROI, 0.0)

	// alerta 5 → ventana [t0+5h+23h, t0+5h+25h]
	require.Len(t, hist.calls, 1)
	assert.Equal(t, t0.Add(28*time.Hour), hist.calls[0][0])
	assert.Equal(t, t0.Add(30*time.Hour), hist.calls[0][1])
}

func TestRun_FallsBackWhenHistoryFails(t *testing.T) {
	hist := &mockHistory{err: errors.New("api down")}
	h := backtest.NewHarness(backtest.DefaultConfig(), hist, backtest.FixedSampler(0.02))

	_, results, err := h.Run(context.Background(), shuffled(5))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ExitFromSimulate, results[0].Execution.ExitSource)
	assert.InDelta(t, 0.51, results[0].Execution.ExitPrice, 1e-12)
}

func TestRun_FallsBackWhenNoPositivePrices(t *testing.T) {
	hist := &mockHistory{trades: []domain.Trade{{Price: 0}}}
	h := backtest.NewHarness(backtest.DefaultConfig(), hist, backtest.FixedSampler(0))

	_, results, err := h.Run(context.Background(), shuffled(5))
	require.NoError(t, err)
	assert.Equal(t, domain.ExitFromSimulate, results[0].Execution.ExitSource)
}

func TestRun_InsufficientSamples(t *testing.T) {
	h := backtest.NewHarness(backtest.DefaultConfig(), nil, backtest.FixedSampler(0))

	report, results, err := h.Run(context.Background(), shuffled(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, backtest.ErrInsufficientSamples)
	assert.Nil(t, results)
	assert.Empty(t, report.RunID)
}

func TestRun_SkipsMalformedAlerts(t *testing.T) {
	alerts := shuffled(10)
	for i := range alerts {
		if alerts[i].ID == 9 {
			alerts[i].CurrentPrice = 0
		}
		if alerts[i].ID == 10 {
			alerts[i].ConditionID = ""
		}
	}
	h := backtest.NewHarness(backtest.DefaultConfig(), nil, backtest.FixedSampler(0))

	report, results, err := h.Run(context.Background(), alerts)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(8), results[0].AlertID)
	assert.Equal(t, 3, report.TestSize)
	assert.Equal(t, 1, report.ValidResults)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := backtest.NewHarness(backtest.DefaultConfig(), nil, backtest.FixedSampler(0))

	_, _, err := h.Run(ctx, shuffled(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_SeededSamplerIsReproducible(t *testing.T) {
	cfg := backtest.DefaultConfig()
	cfg.Workers = 3

	_, a, err := backtest.NewHarness(cfg, nil, backtest.NewRandSampler(42)).Run(context.Background(), shuffled(30))
	require.NoError(t, err)
	_, b, err := backtest.NewHarness(cfg, nil, backtest.NewRandSampler(42)).Run(context.Background(), shuffled(30))
	require.NoError(t, err)

	require.Len(t, a, len(b))
	for i := range a {
		assert.Equal(t, a[i].ROI, b[i].ROI)
	}
}

func TestSummarize(t *testing.T) {
	report := backtest.Summarize([]domain.BacktestResult{
		{ROI: 0.10}, {ROI: -0.05}, {ROI: 0.01}, {ROI: 0},
	})

	assert.Equal(t, 4, report.ValidResults)
	assert.InDelta(t, 0.015, report.AvgROI, 1e-12)
	assert.InDelta(t, 0.5, report.WinRate, 1e-12)
	assert.Equal(t, 0.10, report.Best)
	assert.Equal(t, -0.05, report.Worst)

	assert.Equal(t, 0, backtest.Summarize(nil).ValidResults)
}

func TestTWAP(t *testing.T) {
	_, ok := backtest.TWAP(nil)
	assert.False(t, ok)

	v, ok := backtest.TWAP([]domain.Trade{{Price: 0.2}, {Price: 0.4}})
	require.True(t, ok)
	assert.InDelta(t, 0.3, v, 1e-12)
}
