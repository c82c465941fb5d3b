package ports

import (
	"context"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// BookProvider obtiene orderbooks del CLOB.
type BookProvider interface {
	// FetchOrderBook devuelve el book de un token con cada lado ordenado best-first.
	FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}
