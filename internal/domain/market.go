package domain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Market representa un mercado de predicción activo, aplanado desde un evento de Gamma.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	EventTitle  string
	EventSlug   string
	Volume      float64 // volumen total en USDC reportado por Gamma
	Tokens      []Token
	Active      bool
	Closed      bool
}

// Token es uno de los outcomes del mercado.
type Token struct {
	TokenID string
	Outcome string // "Yes" | "No"
	Price   float64
}

// Title devuelve la pregunta, o el título del evento si la pregunta viene vacía.
func (m Market) Title() string {
	if m.Question != "" {
		return m.Question
	}
	return m.EventTitle
}

// MarketStats resume el tape de un mercado. Sin identidad persistida:
// se recalcula en cada llamada de scoring.
type MarketStats struct {
	TotalVolume     float64
	AvgTradeSize    float64
	MedianTradeSize float64
	StdTradeSize    float64 // 0 con menos de 2 muestras
	NumTrades       int
	UniqueTraders   int
}

// Empty indica que las stats vienen de un batch vacío.
func (s MarketStats) Empty() bool {
	return s.NumTrades == 0
}

// Liquidity devuelve el volumen total, o +Inf si no hay datos del mercado.
// Un mercado sin tape nunca cuenta como nicho.
func (s MarketStats) Liquidity() float64 {
	if s.Empty() {
		return math.Inf(1)
	}
	return s.TotalVolume
}

// ComputeMarketStats reduce un batch de trades a sus estadísticas de tamaño.
// Función pura: no modifica trades.
func ComputeMarketStats(trades []Trade) MarketStats {
	if len(trades) == 0 {
		return MarketStats{}
	}

	sizes := make([]float64, len(trades))
	traders := make(map[string]struct{}, len(trades))
	var total float64
	for i, t := range trades {
		sizes[i] = t.Notional()
		total += sizes[i]
		traders[t.Wallet] = struct{}{}
	}

	st := MarketStats{
		TotalVolume:     total,
		AvgTradeSize:    stat.Mean(sizes, nil),
		MedianTradeSize: median(sizes),
		NumTrades:       len(trades),
		UniqueTraders:   len(traders),
	}
	if len(sizes) > 1 {
		st.StdTradeSize = stat.StdDev(sizes, nil)
	}
	return st
}

// median devuelve la mediana; con cantidad par promedia los dos centrales.
func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
