package polymarket

// clob.go: orderbooks del CLOB de Polymarket.

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const bookPath = "/book"

// FetchOrderBook devuelve el book de un token con cada lado ordenado best-first.
// Los niveles con precio o size no positivos se descartan.
func (c *Client) FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	u := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, bookPath, url.QueryEscape(tokenID))

	var resp orderBookResponse
	if err := c.get(ctx, c.booksLimiter, u, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("clob.FetchOrderBook: %w", err)
	}
	return mapOrderBook(tokenID, resp), nil
}
