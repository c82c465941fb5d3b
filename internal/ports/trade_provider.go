package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// TradeProvider obtiene trades de la Data API.
type TradeProvider interface {
	// FetchMarketTrades devuelve los trades más recientes de un mercado (condition_id).
	FetchMarketTrades(ctx context.Context, conditionID string, limit int) ([]domain.Trade, error)

	// FetchUserTrades devuelve el historial reciente de un wallet.
	FetchUserTrades(ctx context.Context, address string, limit int) ([]domain.Trade, error)
}

// TradeHistory obtiene trades de un mercado en una ventana temporal.
// El backtest la usa para el TWAP de salida.
type TradeHistory interface {
	FetchTradesInRange(ctx context.Context, conditionID string, from, to time.Time) ([]domain.Trade, error)
}
