package domain

import "time"

// WalletStats es el agregado de un wallet derivado del store.
// No pertenece al core: se calcula fuera y se pasa en cada llamada.
type WalletStats struct {
	Address                string  `json:"address"`
	AgeDays                float64 `json:"age_days"`
	TotalVolume            float64 `json:"total_volume"`
	TotalTrades            int     `json:"total_trades"`
	UniqueMarkets          int     `json:"unique_markets"`
	AvgBetSize             float64 `json:"avg_bet_size"`
	MaxMarketConcentration float64 `json:"max_market_concentration"` // fracción en el mercado top, [0,1]
	WinRate                float64 `json:"win_rate"`
}

// WalletRow es una fila de población usada para construir el baseline.
type WalletRow struct {
	Address     string
	FirstSeen   time.Time
	TotalVolume float64
	TotalTrades int
}

// AgeDays devuelve la antigüedad del wallet en días respecto a now.
func (r WalletRow) AgeDays(now time.Time) float64 {
	if r.FirstSeen.IsZero() || now.Before(r.FirstSeen) {
		return 0
	}
	return now.Sub(r.FirstSeen).Hours() / 24
}
