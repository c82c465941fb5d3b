package detector

// wash.go: clasificador de wash trading en 8 dimensiones independientes.
//
// Cada check devuelve su métrica y si está marcado; el score compuesto es
// marcados/8 × 100 y el veredicto es sospechoso a partir de 60.

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const (
	minWashTrades         = 5
	washSuspiciousScore   = 60.0
	roundTripLookahead    = 4
	roundTripMaxSeconds   = 900
	roundTripSizeTol      = 0.05
	roundTripShare        = 0.3
	reversalMinMove       = 0.1
	reversalMaxCount      = 2
	entropyBucketSeconds  = 10
	noIntervalHoldingTime = 9999
)

// WashThresholds son los 6 umbrales configurables del clasificador.
type WashThresholds struct {
	MinPLVolumeRatio      float64
	MaxHoldingTimeSec     float64
	ExtremePriceThreshold float64
	WinRateSuspicious     float64
	EntropyLowLimit       float64
	ConcentrationLimit    float64
}

// DefaultWashThresholds devuelve los umbrales por defecto.
func DefaultWashThresholds() WashThresholds {
	return WashThresholds{
		MinPLVolumeRatio:      0.005,
		MaxHoldingTimeSec:     300,
		ExtremePriceThreshold: 0.05,
		WinRateSuspicious:     0.90,
		EntropyLowLimit:       1.5,
		ConcentrationLimit:    0.85,
	}
}

// WashClassifier es puro y sin estado.
type WashClassifier struct {
	th WashThresholds
}

// NewWashClassifier crea un clasificador con los umbrales dados.
func NewWashClassifier(th WashThresholds) *WashClassifier {
	return &WashClassifier{th: th}
}

// IsSuspiciousScore aplica el corte del veredicto compuesto.
func IsSuspiciousScore(score float64) bool {
	return score >= washSuspiciousScore
}

// Detect evalúa el historial de un wallet. Con menos de 5 trades se abstiene.
// Los trades se evalúan en orden cronológico; el slice de entrada no se modifica.
func (c *WashClassifier) Detect(address string, trades []domain.Trade) domain.WashVerdict {
	if len(trades) < minWashTrades {
		return domain.WashVerdict{
			Address: address,
			Reason:  fmt.Sprintf("insufficient sample: %d trades, need %d", len(trades), minWashTrades),
		}
	}

	ts := make([]domain.Trade, len(trades))
	copy(ts, trades)
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Timestamp.Before(ts[j].Timestamp) })

	details := map[string]domain.WashCheck{
		"pl_vol_ratio":          c.plVolumeRatio(ts),
		"holding_time":          c.holdingTime(ts),
		"extreme_prices":        c.extremePrices(ts),
		"win_rate":              c.winRate(ts),
		"cycle_patterns":        roundTrips(ts),
		"entropy":               c.temporalEntropy(ts),
		"market_concentration":  c.marketConcentration(ts),
		"price_impact_reversal": priceReversals(ts),
	}

	flagged := 0
	for _, d := range details {
		if d.Flagged {
			flagged++
		}
	}
	score := math.Round(float64(flagged)/float64(len(details))*100*100) / 100

	return domain.WashVerdict{
		Address:      address,
		IsSuspicious: IsSuspiciousScore(score),
		Score:        math.Min(score, 100),
		Details:      details,
	}
}

// plVolumeRatio: mucho volumen con P&L neto casi nulo.
func (c *WashClassifier) plVolumeRatio(ts []domain.Trade) domain.WashCheck {
	var vol, pnl float64
	for _, t := range ts {
		vol += t.Notional()
		pnl += t.RealizedPnL()
	}
	ratio := 1.0
	if vol > 0 {
		ratio = math.Abs(pnl) / vol
	}
	return domain.WashCheck{Value: ratio, Flagged: ratio < c.th.MinPLVolumeRatio}
}

// holdingTime: media de los gaps entre trades consecutivos del mismo mercado.
func (c *WashClassifier) holdingTime(ts []domain.Trade) domain.WashCheck {
	var sum float64
	var n int
	for i := 1; i < len(ts); i++ {
		if ts[i].Market == ts[i-1].Market {
			sum += seconds(ts[i-1], ts[i])
			n++
		}
	}
	avg := float64(noIntervalHoldingTime)
	if n > 0 {
		avg = sum / float64(n)
	}
	return domain.WashCheck{Value: avg, Flagged: avg < c.th.MaxHoldingTimeSec}
}

func (c *WashClassifier) extremePrices(ts []domain.Trade) domain.WashCheck {
	extreme := 0
	for _, t := range ts {
		if t.Price < 0.05 || t.Price > 0.95 {
			extreme++
		}
	}
	ratio := float64(extreme) / float64(len(ts))
	return domain.WashCheck{Value: ratio, Flagged: ratio > c.th.ExtremePriceThreshold}
}

func (c *WashClassifier) winRate(ts []domain.Trade) domain.WashCheck {
	wins := 0
	for _, t := range ts {
		if t.RealizedPnL() > 0 {
			wins++
		}
	}
	rate := float64(wins) / float64(len(ts))
	return domain.WashCheck{Value: rate, Flagged: rate > c.th.WinRateSuspicious}
}

// roundTrips cuenta pares del mismo mercado dentro de 15 minutos con tamaño casi igual,
// mirando como mucho los 4 trades siguientes.
func roundTrips(ts []domain.Trade) domain.WashCheck {
	matches := 0
	for i := range ts {
		if ts[i].Size == 0 {
			continue
		}
		for j := i + 1; j < len(ts) && j <= i+roundTripLookahead; j++ {
			if ts[i].Market != ts[j].Market {
				continue
			}
			dt := seconds(ts[i], ts[j])
			diff := math.Abs(ts[i].Size-ts[j].Size) / ts[i].Size
			if dt < roundTripMaxSeconds && diff < roundTripSizeTol {
				matches++
			}
		}
	}
	return domain.WashCheck{
		Value:   float64(matches),
		Flagged: float64(matches) > float64(len(ts))*roundTripShare,
	}
}

// temporalEntropy: entropía de Shannon (bits) de los intervalos en buckets de 10s.
// Intervalos muy regulares delatan un bot.
func (c *WashClassifier) temporalEntropy(ts []domain.Trade) domain.WashCheck {
	if len(ts) < 2 {
		return domain.WashCheck{}
	}
	counts := make(map[float64]int)
	n := len(ts) - 1
	for i := 1; i < len(ts); i++ {
		bucket := math.RoundToEven(seconds(ts[i-1], ts[i]) / entropyBucketSeconds)
		counts[bucket]++
	}
	var h float64
	for _, cnt := range counts {
		p := float64(cnt) / float64(n)
		h -= p * math.Log2(p)
	}
	return domain.WashCheck{Value: h, Flagged: h < c.th.EntropyLowLimit}
}

func (c *WashClassifier) marketConcentration(ts []domain.Trade) domain.WashCheck {
	counts := make(map[string]int)
	top := 0
	for _, t := range ts {
		counts[t.Market]++
		top = max(top, counts[t.Market])
	}
	share := float64(top) / float64(len(ts))
	return domain.WashCheck{Value: share, Flagged: share > c.th.ConcentrationLimit}
}

// priceReversals cuenta ventanas de 3 trades donde el precio se mueve >10% y luego revierte.
func priceReversals(ts []domain.Trade) domain.WashCheck {
	moves := 0
	for i := 2; i < len(ts); i++ {
		p1, p2, p3 := ts[i-2].Price, ts[i-1].Price, ts[i].Price
		if p1 == 0 {
			continue
		}
		if math.Abs(p2-p1)/p1 > reversalMinMove && (p3-p2)*(p2-p1) < 0 {
			moves++
		}
	}
	return domain.WashCheck{Value: float64(moves), Flagged: moves > reversalMaxCount}
}

func seconds(a, b domain.Trade) float64 {
	return b.Timestamp.Sub(a.Timestamp).Seconds()
}
