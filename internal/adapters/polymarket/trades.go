package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const (
	tradesPath     = "/trades"
	tradesPerPage  = 500
	tradesMaxPages = 6
)

// ErrRangeTruncated indica que el tope de páginas cortó la ventana antes de llegar a from.
var ErrRangeTruncated = errors.New("trade range truncated by page cap")

// FetchMarketTrades obtiene los trades más recientes de un mercado por condition_id.
func (c *Client) FetchMarketTrades(ctx context.Context, conditionID string, limit int) ([]domain.Trade, error) {
	url := fmt.Sprintf("%s%s?market=%s&limit=%d", c.dataBase, tradesPath, conditionID, limit)

	var resp []rawDataTrade
	if err := c.get(ctx, c.dataLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("data-api.FetchMarketTrades: %w", err)
	}
	return mapTrades(resp), nil
}

// FetchUserTrades obtiene el historial reciente de un wallet.
func (c *Client) FetchUserTrades(ctx context.Context, address string, limit int) ([]domain.Trade, error) {
	url := fmt.Sprintf("%s%s?user=%s&limit=%d", c.dataBase, tradesPath, address, limit)

	var resp []rawDataTrade
	if err := c.get(ctx, c.dataLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("data-api.FetchUserTrades: %w", err)
	}
	return mapTrades(resp), nil
}

// FetchTradesInRange obtiene los trades de un mercado con timestamp en [from, to].
// La Data API devuelve los más recientes primero: se pagina hasta pasar from.
// Si el tope de páginas corta antes, devuelve ErrRangeTruncated y ningún trade:
// un TWAP sobre media ventana es peor que la salida simulada.
func (c *Client) FetchTradesInRange(ctx context.Context, conditionID string, from, to time.Time) ([]domain.Trade, error) {
	var in []domain.Trade

	for page := 0; ; page++ {
		if page == tradesMaxPages {
			slog.Warn("trade range truncated",
				"market", conditionID,
				"pages", tradesMaxPages,
				"from", from.Format(time.RFC3339),
				"in_range", len(in),
			)
			return nil, fmt.Errorf("data-api.FetchTradesInRange: %w", ErrRangeTruncated)
		}

		url := fmt.Sprintf("%s%s?market=%s&limit=%d&offset=%d",
			c.dataBase, tradesPath, conditionID, tradesPerPage, page*tradesPerPage)

		var resp []rawDataTrade
		if err := c.get(ctx, c.dataLimiter, url, &resp); err != nil {
			return nil, fmt.Errorf("data-api.FetchTradesInRange: %w", err)
		}
		if len(resp) == 0 {
			break
		}

		reachedFrom := false
		for _, t := range mapTrades(resp) {
			if t.Timestamp.Before(from) {
				reachedFrom = true
				continue
			}
			if t.Timestamp.After(to) {
				continue
			}
			in = append(in, t)
		}

		slog.Debug("fetched trades page",
			"market", conditionID[:min(10, len(conditionID))]+"...",
			"page", page,
			"count", len(resp),
			"in_range", len(in),
		)

		if reachedFrom || len(resp) < tradesPerPage {
			break
		}
	}

	return in, nil
}
