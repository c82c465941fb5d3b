package domain

import "time"

// Label es la clasificación manual de una alerta.
type Label string

const (
	LabelNone          Label = ""
	LabelInsider       Label = "insider"
	LabelFalsePositive Label = "false_positive"
	LabelUnsure        Label = "unsure"
)

// ParseLabel valida un label introducido por el usuario.
func ParseLabel(s string) (Label, bool) {
	switch l := Label(s); l {
	case LabelInsider, LabelFalsePositive, LabelUnsure:
		return l, true
	}
	return LabelNone, false
}

// Severity agrupa scores para presentación.
type Severity string

const (
	SeverityCritical Severity = "critical" // >= 9
	SeverityHigh     Severity = "high"     // >= 7
	SeverityInfo     Severity = "info"
)

// SeverityOf devuelve la severidad de un score.
func SeverityOf(score float64) Severity {
	switch {
	case score >= 9:
		return SeverityCritical
	case score >= 7:
		return SeverityHigh
	default:
		return SeverityInfo
	}
}

// AlertTrade es el snapshot del trade que disparó la alerta.
type AlertTrade struct {
	ID        string    `json:"id"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	ValueUSD  float64   `json:"value_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert es una alerta persistida. El backtest la lee sin modificarla.
type Alert struct {
	ID           int64
	Timestamp    time.Time `validate:"required"`
	Wallet       string    `validate:"required"`
	MarketTitle  string
	MarketSlug   string
	ConditionID  string `validate:"required"`
	TokenID      string
	Trade        AlertTrade
	Score        float64 `validate:"gte=0,lte=10"`
	Reasons      []string
	WalletStats  WalletStats
	CurrentPrice float64 `validate:"gt=0,lte=1"`
	Label        Label
}

// NewAlert construye una alerta a partir del trade puntuado.
// El precio observado es el del propio trade.
func NewAlert(market Market, trade Trade, score SuspicionScore, stats WalletStats, now time.Time) Alert {
	return Alert{
		Timestamp:   now.UTC(),
		Wallet:      trade.Wallet,
		MarketTitle: market.Title(),
		MarketSlug:  market.Slug,
		ConditionID: trade.Market,
		TokenID:     trade.TokenID,
		Trade: AlertTrade{
			ID:        trade.ID,
			Side:      trade.Side,
			Price:     trade.Price,
			Size:      trade.Size,
			ValueUSD:  trade.Notional(),
			Timestamp: trade.Timestamp,
		},
		Score:        score.Value,
		Reasons:      score.Reasons,
		WalletStats:  stats,
		CurrentPrice: trade.Price,
	}
}

// Severity devuelve la severidad de la alerta.
func (a Alert) Severity() Severity {
	return SeverityOf(a.Score)
}

// Validate comprueba que la alerta sea utilizable por el backtest.
func (a Alert) Validate() error {
	return validateRecord("alert", a)
}

// AlertStats es el resumen agregado de alertas del store.
type AlertStats struct {
	Total         int
	Last24h       int
	UniqueWallets int
	AvgScore      float64
	Labeled       int
	MostFlagged   string // wallet con más alertas
}
