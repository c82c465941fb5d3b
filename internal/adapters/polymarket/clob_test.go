package polymarket_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/polywatch/internal/adapters/polymarket"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookJSON = `{
  "market": "0xcond",
  "asset_id": "token_yes_001",
  "bids": [{"price": "0.48", "size": "100"}, {"price": "0.50", "size": "200"}, {"price": "0.10", "size": "0"}],
  "asks": [{"price": "0.55", "size": "50"}, {"price": "0.52", "size": "300"}]
}`

func newTestClient(srv *httptest.Server, cfg polymarket.Config) *polymarket.Client {
	cfg.CLOBBase = srv.URL
	cfg.GammaBase = srv.URL
	cfg.DataBase = srv.URL
	c := polymarket.NewClient(cfg)
	c.SetRetryWait(time.Millisecond)
	return c
}

func TestFetchOrderBook_SortedBestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "token_yes_001", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(bookJSON))
	}))
	defer srv.Close()

	book, err := newTestClient(srv, polymarket.Config{}).FetchOrderBook(context.Background(), "token_yes_001")
	require.NoError(t, err)

	assert.Equal(t, "token_yes_001", book.TokenID)
	require.Len(t, book.Bids, 2, "size 0 descartado")
	assert.Equal(t, 0.50, book.BestBid())
	assert.Equal(t, 0.48, book.Bids[1].Price)
	assert.Equal(t, 0.52, book.BestAsk())
	assert.Equal(t, 0.55, book.Asks[1].Price)
	assert.Equal(t, book.Asks, book.Levels(domain.SideBuy))
}

func TestFetchOrderBook_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"No orderbook exists"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, polymarket.Config{}).FetchOrderBook(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(bookJSON))
	}))
	defer srv.Close()

	book, err := newTestClient(srv, polymarket.Config{}).FetchOrderBook(context.Background(), "token_yes_001")
	require.NoError(t, err)
	assert.Equal(t, 0.52, book.BestAsk())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var transitions []gobreaker.State
	client := newTestClient(srv, polymarket.Config{
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
		OnBreakerChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.FetchOrderBook(ctx, "tok")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	before := calls.Load()
	_, err := client.FetchOrderBook(ctx, "tok")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, before, calls.Load(), "con el breaker abierto no se llama al servidor")
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv, polymarket.Config{BreakerFailures: 1})
	for i := 0; i < 3; i++ {
		_, err := client.FetchOrderBook(context.Background(), "tok")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState())
}
