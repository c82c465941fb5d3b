package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// PopulationSource entrega las filas de población para el baseline.
type PopulationSource interface {
	BaselinePopulation(ctx context.Context) ([]domain.WalletRow, error)
}

// WalletStore persiste trades observados y deriva los agregados por wallet.
type WalletStore interface {
	PopulationSource

	// RegisterTrade guarda el trade (idempotente por ID) y actualiza el agregado del wallet.
	RegisterTrade(ctx context.Context, trade domain.Trade, marketTitle string) error

	// WalletStats devuelve el agregado actual del wallet.
	WalletStats(ctx context.Context, address string) (domain.WalletStats, error)

	// WalletHistory devuelve los últimos trades del wallet, más recientes primero.
	WalletHistory(ctx context.Context, address string, limit int) ([]domain.Trade, error)
}

// AlertStore persiste alertas y sus labels.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert domain.Alert) (int64, error)
	RecentAlerts(ctx context.Context, since time.Time) ([]domain.Alert, error)
	AlertStats(ctx context.Context) (domain.AlertStats, error)
	LabelAlert(ctx context.Context, id int64, label domain.Label) error
	LabeledAlerts(ctx context.Context) ([]domain.Alert, error)
	UnlabeledAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
}

// BacktestStore persiste los runs del backtest.
type BacktestStore interface {
	SaveBacktest(ctx context.Context, report domain.BacktestReport, results []domain.BacktestResult) error
}
