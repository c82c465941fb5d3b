package execution

// simulator.go: precio ejecutable realista recorriendo la profundidad del book.
//
// El recorrido se hace en decimal para que un nivel que encaja justo con el
// presupuesto (p.ej. $55 a 0.55) se consuma entero y no quede como fill parcial
// por error de redondeo.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
	"github.com/alejandrodnm/polywatch/internal/ports"
	"github.com/shopspring/decimal"
)

// ErrNoLiquidity indica que el lado del book necesario está vacío.
var ErrNoLiquidity = errors.New("no liquidity")

var bpsDivisor = decimal.NewFromInt(10000)

// Config son las fricciones de ejecución.
type Config struct {
	SlippageBps float64
	FeeBps      float64
	Latency     time.Duration
}

// DefaultConfig devuelve 20 bps de slippage, 10 bps de fee y 2s de latencia.
func DefaultConfig() Config {
	return Config{
		SlippageBps: 20,
		FeeBps:      10,
		Latency:     2 * time.Second,
	}
}

// Simulator calcula lo que pagaría o recibiría un taker. No envía órdenes.
type Simulator struct {
	cfg   Config
	books ports.BookProvider
}

// NewSimulator crea un Simulator. books puede ser nil si solo se usa Price.
func NewSimulator(cfg Config, books ports.BookProvider) *Simulator {
	return &Simulator{cfg: cfg, books: books}
}

// GetExecutablePrice espera la latencia simulada, pide el book y lo recorre.
// La espera se cancela con ctx; no se muta nada antes de que termine.
func (s *Simulator) GetExecutablePrice(ctx context.Context, tokenID string, side domain.Side, sizeUSD float64) (domain.ExecutionResult, error) {
	if s.books == nil {
		return domain.ExecutionResult{}, errors.New("execution.GetExecutablePrice: no book provider")
	}
	if err := wait(ctx, s.cfg.Latency); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("execution.GetExecutablePrice: latency: %w", err)
	}

	book, err := s.books.FetchOrderBook(ctx, tokenID)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("execution.GetExecutablePrice: fetch book: %w", err)
	}
	if book.TokenID == "" {
		book.TokenID = tokenID
	}
	return s.Price(book, side, sizeUSD)
}

// Price recorre un book ya obtenido. Función pura.
func (s *Simulator) Price(book domain.OrderBook, side domain.Side, sizeUSD float64) (domain.ExecutionResult, error) {
	if side != domain.SideBuy && side != domain.SideSell {
		return domain.ExecutionResult{}, fmt.Errorf("execution.Price: invalid side %q", side)
	}
	levels := book.Levels(side)
	if len(levels) == 0 {
		return domain.ExecutionResult{}, fmt.Errorf("execution.Price: %w: %s side of token %s", ErrNoLiquidity, side, book.TokenID)
	}

	base := decimal.NewFromFloat(levels[0].Price)
	avg := walkBook(levels, decimal.NewFromFloat(sizeUSD), base)
	impact := avg.Sub(base).Abs()
	slippage := base.Mul(decimal.NewFromFloat(s.cfg.SlippageBps)).Div(bpsDivisor)
	fee := base.Mul(decimal.NewFromFloat(s.cfg.FeeBps)).Div(bpsDivisor)

	final := base.Add(impact).Add(slippage)
	if side == domain.SideSell {
		final = base.Sub(impact).Sub(slippage)
	}

	res := domain.ExecutionResult{
		BasePrice:    base.InexactFloat64(),
		AvgExecPrice: avg.InexactFloat64(),
		MarketImpact: impact.InexactFloat64(),
		Slippage:     slippage.InexactFloat64(),
		Fee:          fee.InexactFloat64(),
		FinalPrice:   final.InexactFloat64(),
		Side:         side,
		SizeUSD:      sizeUSD,
	}

	if depth := book.DepthUSD(side); sizeUSD > depth {
		slog.Debug("size exceeds book depth", "token", book.TokenID, "size_usd", sizeUSD, "depth_usd", depth)
	}
	slog.Debug("executable price",
		"token", book.TokenID,
		"side", side,
		"size_usd", sizeUSD,
		"final", res.FinalPrice,
		"impact", res.MarketImpact,
		"spread", book.Spread(),
	)
	return res, nil
}

// walkBook devuelve el precio medio ponderado (gastado / shares).
// Sin shares (p.ej. size 0) devuelve el precio base.
func walkBook(levels []domain.BookEntry, budget, base decimal.Decimal) decimal.Decimal {
	remaining := budget
	shares := decimal.Zero
	spent := decimal.Zero

	for _, l := range levels {
		if !remaining.IsPositive() {
			break
		}
		price := decimal.NewFromFloat(l.Price)
		if !price.IsPositive() {
			continue
		}
		size := decimal.NewFromFloat(l.Size)
		value := price.Mul(size)

		if remaining.GreaterThanOrEqual(value) {
			shares = shares.Add(size)
			spent = spent.Add(value)
			remaining = remaining.Sub(value)
			continue
		}

		shares = shares.Add(remaining.Div(price))
		spent = spent.Add(remaining)
		remaining = decimal.Zero
	}

	if !shares.IsPositive() {
		return base
	}
	return spent.Div(shares)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
