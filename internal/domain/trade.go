package domain

import "time"

// Side es la dirección de un trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normaliza el side que devuelve la API ("buy", "Sell", ...).
// Devuelve "" si no es reconocible.
func ParseSide(s string) Side {
	switch s {
	case "BUY", "buy", "Buy":
		return SideBuy
	case "SELL", "sell", "Sell":
		return SideSell
	}
	return ""
}

// Trade representa un trade observado en el tape de un mercado.
type Trade struct {
	ID        string    `validate:"required"`
	Wallet    string    `validate:"required"` // maker address
	Market    string    `validate:"required"` // condition_id
	TokenID   string
	Side      Side      `validate:"oneof=BUY SELL"`
	Price     float64   `validate:"gt=0,lte=1"` // probabilidad, (0,1]
	Size      float64   `validate:"gte=0"`      // shares
	Timestamp time.Time `validate:"required"`
	PnL       *float64  // P&L realizado, solo si la fuente lo reporta
}

// Notional devuelve el valor en USD del trade (price × size).
func (t Trade) Notional() float64 {
	return t.Price * t.Size
}

// RealizedPnL devuelve el P&L del trade, 0 si no se conoce.
func (t Trade) RealizedPnL() float64 {
	if t.PnL == nil {
		return 0
	}
	return *t.PnL
}

// Validate comprueba los campos requeridos antes de entrar a la lógica de detección.
func (t Trade) Validate() error {
	return validateRecord("trade", t)
}
