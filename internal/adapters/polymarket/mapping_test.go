package polymarket_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alejandrodnm/polywatch/internal/adapters/polymarket"
	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventsJSON = `[
  {
    "id": "901",
    "title": "Fed decision in March?",
    "slug": "fed-decision-in-march",
    "markets": [
      {
        "conditionId": "0xaaa",
        "question": "Fed cuts 25bps?",
        "slug": "fed-cuts-25",
        "volume": "48211.5",
        "clobTokenIds": "[\"tok_yes_a\", \"tok_no_a\"]",
        "outcomes": "[\"Yes\", \"No\"]",
        "outcomePrices": "[\"0.12\", \"0.88\"]",
        "active": true,
        "closed": false
      },
      {
        "conditionId": "0xbbb",
        "question": "Fed holds?",
        "slug": "fed-holds",
        "volume": "1000",
        "active": true,
        "closed": true
      }
    ]
  },
  {
    "id": "902",
    "title": "Election",
    "slug": "election",
    "markets": [
      {"conditionId": "0xccc", "question": "", "slug": "x", "volume": 250000, "active": true, "closed": false},
      {"conditionId": "", "question": "broken"}
    ]
  }
]`

const tradesJSON = `[
  {"proxyWallet": "0xw1", "side": "BUY", "asset": "tok_yes_a", "conditionId": "0xaaa",
   "size": 2500, "price": 0.12, "timestamp": 1735732800, "transactionHash": "0xh1"},
  {"proxyWallet": "0xw2", "side": "sell", "asset": "tok_no_a", "conditionId": "0xaaa",
   "size": "10.5", "price": "0.88", "timestamp": 1735729200000, "transactionHash": "0xh2"},
  {"proxyWallet": "", "side": "BUY", "asset": "tok_yes_a", "conditionId": "0xaaa",
   "size": 1, "price": 0.1, "timestamp": 1735732800}
]`

func TestFetchActiveMarkets_FlattensEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("tag_id"))
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "false", r.URL.Query().Get("closed"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(eventsJSON))
	}))
	defer srv.Close()

	markets, err := newTestClient(srv, polymarket.Config{}).FetchActiveMarkets(context.Background(), []int{2})
	require.NoError(t, err)
	require.Len(t, markets, 2)

	m := markets[0]
	assert.Equal(t, "0xaaa", m.ConditionID)
	assert.Equal(t, "Fed cuts 25bps?", m.Title())
	assert.Equal(t, "Fed decision in March?", m.EventTitle)
	assert.InDelta(t, 48211.5, m.Volume, 1e-9)
	require.Len(t, m.Tokens, 2)
	assert.Equal(t, domain.Token{TokenID: "tok_yes_a", Outcome: "Yes", Price: 0.12}, m.Tokens[0])

	assert.Equal(t, "Election", markets[1].Title(), "sin pregunta usa el título del evento")
	assert.Equal(t, 250000.0, markets[1].Volume)
}

func TestFetchActiveMarkets_DedupesAcrossTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(eventsJSON))
	}))
	defer srv.Close()

	markets, err := newTestClient(srv, polymarket.Config{}).FetchActiveMarkets(context.Background(), []int{2, 100})
	require.NoError(t, err)
	assert.Len(t, markets, 2)
}

func TestFetchMarketTrades_MapsAndDropsIncomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades", r.URL.Path)
		assert.Equal(t, "0xaaa", r.URL.Query().Get("market"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Write([]byte(tradesJSON))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv, polymarket.Config{}).FetchMarketTrades(context.Background(), "0xaaa", 100)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	tr := trades[0]
	assert.Equal(t, "0xw1", tr.Wallet)
	assert.Equal(t, "0xaaa", tr.Market)
	assert.Equal(t, "tok_yes_a", tr.TokenID)
	assert.Equal(t, domain.SideBuy, tr.Side)
	assert.Equal(t, 0.12, tr.Price)
	assert.Equal(t, 2500.0, tr.Size)
	assert.Equal(t, time.Unix(1735732800, 0).UTC(), tr.Timestamp)
	assert.NotEmpty(t, tr.ID)
	assert.NoError(t, tr.Validate())

	assert.Equal(t, domain.SideSell, trades[1].Side)
	assert.Equal(t, time.Unix(1735729200, 0).UTC(), trades[1].Timestamp, "milisegundos")
	assert.NotEqual(t, tr.ID, trades[1].ID)
}

func TestFetchMarketTrades_StableIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(tradesJSON))
	}))
	defer srv.Close()

	client := newTestClient(srv, polymarket.Config{})
	a, err := client.FetchMarketTrades(context.Background(), "0xaaa", 100)
	require.NoError(t, err)
	b, err := client.FetchMarketTrades(context.Background(), "0xaaa", 100)
	require.NoError(t, err)
	assert.Equal(t, a[0].ID, b[0].ID)
}

func TestFetchUserTrades_QueriesByUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0xw1", r.URL.Query().Get("user"))
		w.Write([]byte(tradesJSON))
	}))
	defer srv.Close()

	trades, err := newTestClient(srv, polymarket.Config{}).FetchUserTrades(context.Background(), "0xw1", 50)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

// minuteTape sirve páginas de 500 trades, uno por minuto hacia atrás desde base.
func minuteTape(base time.Time, pages *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*pages++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		w.Write([]byte("["))
		for i := 0; i < 500; i++ {
			if i > 0 {
				w.Write([]byte(","))
			}
			ts := base.Add(-time.Duration(offset+i) * time.Minute).Unix()
			fmt.Fprintf(w, `{"proxyWallet":"0xw","side":"BUY","asset":"t","conditionId":"0xc","size":1,"price":0.5,"timestamp":%d,"transactionHash":"0x%d"}`, ts, offset+i)
		}
		w.Write([]byte("]"))
	}))
}

func TestFetchTradesInRange_FiltersAndStopsPaging(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	pages := 0
	srv := minuteTape(base, &pages)
	defer srv.Close()

	from := base.Add(-10 * time.Hour)
	to := base.Add(-9 * time.Hour)
	trades, err := newTestClient(srv, polymarket.Config{}).FetchTradesInRange(context.Background(), "0xc", from, to)
	require.NoError(t, err)

	assert.Len(t, trades, 61)
	for _, tr := range trades {
		assert.False(t, tr.Timestamp.Before(from))
		assert.False(t, tr.Timestamp.After(to))
	}
	assert.Equal(t, 2, pages, "se deja de paginar al pasar from")
}

func TestFetchTradesInRange_PageCapReturnsTruncated(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	pages := 0
	srv := minuteTape(base, &pages)
	defer srv.Close()

	// 6 páginas cubren 50h; la ventana empieza a 100h
	from := base.Add(-100 * time.Hour)
	trades, err := newTestClient(srv, polymarket.Config{}).FetchTradesInRange(context.Background(), "0xc", from, base)
	require.ErrorIs(t, err, polymarket.ErrRangeTruncated)
	assert.Empty(t, trades)
	assert.Equal(t, 6, pages)
}
