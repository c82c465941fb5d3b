package polymarket

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/google/uuid"
)

// tradeNamespace es el namespace de los IDs derivados de trades.
var tradeNamespace = uuid.MustParse("6f1c2a52-3b7e-4d8a-9a51-5c0e7b9d2f13")

// mapEvents aplana los eventos de Gamma a mercados, saltando los cerrados o sin condition_id.
func mapEvents(events []gammaEvent) []domain.Market {
	var markets []domain.Market
	for _, e := range events {
		for _, gm := range e.Markets {
			if gm.ConditionID == "" || gm.Closed {
				continue
			}
			m := mapGammaMarket(gm)
			m.EventTitle = e.Title
			m.EventSlug = e.Slug
			markets = append(markets, m)
		}
	}
	return markets
}

// mapGammaMarket convierte un gammaMarket DTO a domain.Market.
func mapGammaMarket(gm gammaMarket) domain.Market {
	m := domain.Market{
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		Active:      gm.Active,
		Closed:      gm.Closed,
	}
	if v, err := gm.Volume.Float64(); err == nil {
		m.Volume = v
	}

	ids := decodeStringArray(gm.ClobTokenIDs)
	outcomes := decodeStringArray(gm.Outcomes)
	prices := decodeStringArray(gm.OutcomePrices)
	for i, id := range ids {
		tok := domain.Token{TokenID: id}
		if i < len(outcomes) {
			tok.Outcome = outcomes[i]
		}
		if i < len(prices) {
			tok.Price = domain.ParsePrice(prices[i])
		}
		m.Tokens = append(m.Tokens, tok)
	}
	return m
}

// decodeStringArray decodifica los campos de Gamma tipo "[\"a\",\"b\"]".
func decodeStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// mapTrades convierte trades de la Data API. Los que no traen wallet o
// timestamp se descartan aquí; el resto de validación la hace el dominio.
func mapTrades(raw []rawDataTrade) []domain.Trade {
	trades := make([]domain.Trade, 0, len(raw))
	for _, rt := range raw {
		t, ok := mapTrade(rt)
		if !ok {
			continue
		}
		trades = append(trades, t)
	}
	return trades
}

func mapTrade(rt rawDataTrade) (domain.Trade, bool) {
	ts := parseTradeTimestamp(rt.Timestamp)
	if rt.ProxyWallet == "" || ts.IsZero() {
		return domain.Trade{}, false
	}
	price, _ := rt.Price.Float64()
	size, _ := rt.Size.Float64()

	return domain.Trade{
		ID:        tradeID(rt, ts),
		Wallet:    rt.ProxyWallet,
		Market:    rt.ConditionID,
		TokenID:   rt.Asset,
		Side:      domain.ParseSide(rt.Side),
		Price:     price,
		Size:      size,
		Timestamp: ts.UTC(),
	}, true
}

// tradeID deriva un ID estable: la Data API no expone uno y un mismo
// transactionHash puede contener varios fills.
func tradeID(rt rawDataTrade, ts time.Time) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d",
		rt.TransactionHash, rt.ProxyWallet, rt.Asset, rt.Side,
		rt.Size.String(), rt.Price.String(), ts.Unix())
	return uuid.NewSHA1(tradeNamespace, []byte(key)).String()
}

// mapOrderBook convierte la respuesta de /book.
func mapOrderBook(tokenID string, r orderBookResponse) domain.OrderBook {
	if r.AssetID != "" {
		tokenID = r.AssetID
	}
	return domain.OrderBook{
		TokenID: tokenID,
		Bids:    mapBookEntries(r.Bids, false),
		Asks:    mapBookEntries(r.Asks, true),
	}
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	return entries
}

func parseTradeTimestamp(n json.Number) time.Time {
	s := n.String()
	if s == "" {
		return time.Time{}
	}
	// unix en segundos o milisegundos
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec > 1e12 {
			return time.Unix(sec/1000, (sec%1000)*int64(time.Millisecond))
		}
		return time.Unix(sec, 0)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec)
	}
	for _, layout := range []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05Z",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
