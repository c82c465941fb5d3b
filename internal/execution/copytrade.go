package execution

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// StrategyConfig son los límites de riesgo del copy-trading.
type StrategyConfig struct {
	Enabled        bool
	MinScore       float64
	MinWinRate     float64
	MaxConcurrent  int
	MaxPositionUSD float64
}

// DefaultStrategyConfig devuelve los límites por defecto. Desactivado salvo opt-in.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Enabled:        false,
		MinScore:       7.0,
		MinWinRate:     0.55,
		MaxConcurrent:  5,
		MaxPositionUSD: 500,
	}
}

// CopyTrader decide si seguir el trade de un wallet marcado y lo cotiza con el Simulator.
// Solo lleva la cuenta de posiciones simuladas; nunca envía órdenes.
type CopyTrader struct {
	cfg StrategyConfig
	sim *Simulator

	mu     sync.Mutex
	active int
}

// NewCopyTrader crea un CopyTrader.
func NewCopyTrader(cfg StrategyConfig, sim *Simulator) *CopyTrader {
	return &CopyTrader{cfg: cfg, sim: sim}
}

// ShouldFollow aplica los filtros de score, win rate y posiciones abiertas.
func (c *CopyTrader) ShouldFollow(alert domain.Alert) bool {
	if !c.cfg.Enabled {
		return false
	}
	if alert.Score < c.cfg.MinScore {
		slog.Debug("copy: score below threshold", "score", alert.Score, "min", c.cfg.MinScore)
		return false
	}
	if alert.WalletStats.WinRate < c.cfg.MinWinRate {
		slog.Debug("copy: win rate below threshold", "win_rate", alert.WalletStats.WinRate, "min", c.cfg.MinWinRate)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active >= c.cfg.MaxConcurrent {
		slog.Warn("copy: max concurrent positions reached", "active", c.active, "max", c.cfg.MaxConcurrent)
		return false
	}
	return true
}

// Open registra una posición. Devuelve false si ya se está en el límite.
func (c *CopyTrader) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active >= c.cfg.MaxConcurrent {
		return false
	}
	c.active++
	return true
}

// Close libera una posición.
func (c *CopyTrader) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active > 0 {
		c.active--
	}
}

// Active devuelve las posiciones abiertas.
func (c *CopyTrader) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Size devuelve el notional a seguir, acotado por MaxPositionUSD.
func (c *CopyTrader) Size(alert domain.Alert) float64 {
	return math.Min(alert.Trade.ValueUSD, c.cfg.MaxPositionUSD)
}

// Quote cotiza el trade que se seguiría contra el book actual del token.
func (c *CopyTrader) Quote(ctx context.Context, alert domain.Alert) (domain.ExecutionResult, error) {
	if alert.TokenID == "" {
		return domain.ExecutionResult{}, fmt.Errorf("execution.Quote: alert %d has no token id", alert.ID)
	}
	side := alert.Trade.Side
	if side == "" {
		side = domain.SideBuy
	}
	res, err := c.sim.GetExecutablePrice(ctx, alert.TokenID, side, c.Size(alert))
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("execution.Quote: %w", err)
	}
	return res, nil
}
