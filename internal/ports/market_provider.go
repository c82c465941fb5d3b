package ports

import (
	"context"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// MarketProvider obtiene los mercados activos a vigilar.
type MarketProvider interface {
	// FetchActiveMarkets devuelve los mercados abiertos de los eventos con los tags dados.
	FetchActiveMarkets(ctx context.Context, tagIDs []int) ([]domain.Market, error)
}
