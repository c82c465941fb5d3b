package execution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBooks struct {
	book  domain.OrderBook
	err   error
	calls int
}

func (m *mockBooks) FetchOrderBook(_ context.Context, _ string) (domain.OrderBook, error) {
	m.calls++
	return m.book, m.err
}

func noLatency() execution.Config {
	cfg := execution.DefaultConfig()
	cfg.Latency = 0
	return cfg
}

func TestPrice_SmallBuyHasNoImpact(t *testing.T) {
	sim := execution.NewSimulator(noLatency(), nil)
	book := domain.OrderBook{
		Asks: []domain.BookEntry{{Price: 0.50, Size: 1000}, {Price: 0.51, Size: 1000}},
		Bids: []domain.BookEntry{{Price: 0.49, Size: 1000}},
	}

	res, err := sim.Price(book, domain.SideBuy, 50)
	require.NoError(t, err)

	assert.Equal(t, 0.50, res.BasePrice)
	assert.Equal(t, 0.0, res.MarketImpact)
	assert.InDelta(t, 0.001, res.Slippage, 1e-12)
	assert.InDelta(t, 0.0005, res.Fee, 1e-12)
	assert.InDelta(t, 0.501, res.FinalPrice, 1e-12)
	assert.Equal(t, domain.SideBuy, res.Side)
	assert.Equal(t, 50.0, res.SizeUSD)
}

func TestPrice_LargeBuyWalksLevels(t *testing.T) {
	sim := execution.NewSimulator(noLatency(), nil)
	book := domain.OrderBook{Asks: []domain.BookEntry{
		{Price: 0.50, Size: 100},
		{Price: 0.55, Size: 100},
		{Price: 0.60, Size: 1000},
	}}

	res, err := sim.Price(book, domain.SideBuy, 105)
	require.NoError(t, err)

	// $50 → 100 shares @0.50, $55 → 100 shares @0.55: 105/200
	assert.InDelta(t, 0.525, res.AvgExecPrice, 1e-12)
	assert.InDelta(t, 0.025, res.MarketImpact, 1e-12)
	assert.InDelta(t, 0.50+0.025+0.001, res.FinalPrice, 1e-12)
}

func TestPrice_PartialFillOnSecondLevel(t *testing.T) {
	sim := execution.NewSimulator(noLatency(), nil)
	book := domain.OrderBook{Asks: []domain.BookEntry{
		{Price: 0.50, Size: 100},
		{Price: 0.60, Size: 1000},
	}}

	res, err := sim.Price(book, domain.SideBuy, 80)
	require.NoError(t, err)

	// 100 shares por $50 + 50 shares por $30: 80/150
	assert.InDelta(t, 80.0/150.0, res.AvgExecPrice, 1e-12)
}

func TestPrice_SellWalksBids(t *testing.T) {
	sim := execution.NewSimulator(noLatency(), nil)
	book := domain.OrderBook{Bids: []domain.BookEntry{
		{Price: 0.50, Size: 100},
		{Price: 0.40, Size: 100},
	}}

	res, err := sim.Price(book, domain.SideSell, 90)
	require.NoError(t, err)

	assert.InDelta(t, 0.45, res.AvgExecPrice, 1e-12)
	assert.InDelta(t, 0.05, res.MarketImpact, 1e-12)
	assert.InDelta(t, 0.449, res.FinalPrice, 1e-12)
}

func TestPrice_ZeroSizeFallsBackToBase(t *testing.T) {
	sim := execution.NewSimulator(noLatency(), nil)
	book := domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.3, Size: 10}}}

	res, err := sim.Price(book, domain.SideBuy, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.3, res.AvgExecPrice)
	assert.Equal(t, 0.0, res.MarketImpact)
}

func TestPrice_BudgetBeyondBookUsesFilledShares(t *testing.T) {
	sim := execution.NewSimulator(noLatency(), nil)
	book := domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.4, Size: 10}, {Price: 0.5, Size: 10}}}

	res, err := sim.Price(book, domain.SideBuy, 1000)
	require.NoError(t, err)
	// el book se agota: 9 USD por 20 shares
	assert.InDelta(t, 0.45, res.AvgExecPrice, 1e-12)
}

func TestPrice_EmptySideIsNoLiquidity(t *testing.T) {
	sim := execution.NewSimulator(noLatency(), nil)
	book := domain.OrderBook{TokenID: "tok", Bids: []domain.BookEntry{{Price: 0.5, Size: 10}}}

	_, err := sim.Price(book, domain.SideBuy, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, execution.ErrNoLiquidity)
	assert.Contains(t, err.Error(), "BUY side of token tok")
}

func TestPrice_InvalidSide(t *testing.T) {
	sim := execution.NewSimulator(noLatency(), nil)
	_, err := sim.Price(domain.OrderBook{}, "HOLD", 10)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, execution.ErrNoLiquidity))
}

func TestGetExecutablePrice_FetchesBook(t *testing.T) {
	books := &mockBooks{book: domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.5, Size: 1000}}}}
	sim := execution.NewSimulator(noLatency(), books)

	res, err := sim.GetExecutablePrice(context.Background(), "tok", domain.SideBuy, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.501, res.FinalPrice, 1e-12)
	assert.Equal(t, 1, books.calls)
}

func TestGetExecutablePrice_FetchErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	sim := execution.NewSimulator(noLatency(), &mockBooks{err: boom})

	_, err := sim.GetExecutablePrice(context.Background(), "tok", domain.SideBuy, 50)
	assert.ErrorIs(t, err, boom)
}

func TestGetExecutablePrice_LatencyIsCancelable(t *testing.T) {
	cfg := execution.DefaultConfig()
	cfg.Latency = time.Hour
	books := &mockBooks{book: domain.OrderBook{Asks: []domain.BookEntry{{Price: 0.5, Size: 1000}}}}
	sim := execution.NewSimulator(cfg, books)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := sim.GetExecutablePrice(ctx, "tok", domain.SideBuy, 50)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, books.calls, "book no se pide si se cancela durante la latencia")
}
