package detector

// scorer.go: score de sospecha 0-10 para un trade.
//
// Reglas aditivas sobre el trade, el wallet y el mercado, cada una con su razón
// legible, más un RiskBoost intercambiable elegido por config. El scorer no guarda
// estado y se puede compartir entre goroutines.

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// Thresholds son los umbrales configurables de las reglas.
type Thresholds struct {
	FreshWalletDays        float64
	MinBetSize             float64
	LargeBetMultiplier     float64
	MinWalletConcentration float64
	NicheMarketVolume      float64
}

// DefaultThresholds devuelve los umbrales de producción.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FreshWalletDays:        30,
		MinBetSize:             1000,
		LargeBetMultiplier:     3,
		MinWalletConcentration: 0.6,
		NicheMarketVolume:      50000,
	}
}

// Input agrupa todo lo que necesita una llamada de scoring.
type Input struct {
	Trade    domain.Trade
	Wallet   domain.WalletStats
	Market   domain.MarketStats
	Baseline Baseline
	History  []domain.Trade // historial del wallet, solo lo usa el veto de wash trading
}

// Scorer combina las reglas con un RiskBoost.
type Scorer struct {
	th    Thresholds
	boost RiskBoost
}

// NewScorer crea un Scorer. Si boost es nil no se aplica ajuste.
func NewScorer(th Thresholds, boost RiskBoost) *Scorer {
	if boost == nil {
		boost = NoBoost{}
	}
	return &Scorer{th: th, boost: boost}
}

// NeedsHistory indica si hay que cargar Input.History antes de Score.
func (s *Scorer) NeedsHistory() bool {
	return NeedsHistory(s.boost)
}

// Score devuelve el score de sospecha acotado a [0,10] con sus razones.
func (s *Scorer) Score(in Input) domain.SuspicionScore {
	if vetoed, reason := s.boost.Veto(in); vetoed {
		return domain.SuspicionScore{Value: 0, Reasons: []string{reason}}
	}

	value, reasons := s.rules(in)
	value = math.Min(value, domain.MaxSuspicionScore)

	pts, extra := s.boost.Boost(in)
	value += pts
	reasons = append(reasons, extra...)

	return domain.SuspicionScore{Value: clampScore(value), Reasons: reasons}
}

// rules evalúa las reglas heurísticas en orden fijo.
func (s *Scorer) rules(in Input) (float64, []string) {
	var score float64
	var reasons []string
	add := func(pts float64, reason string) {
		if pts > 0 {
			score += pts
			reasons = append(reasons, reason)
		}
	}

	add(s.walletAge(in.Wallet))
	add(s.betSize(in.Trade, in.Market))
	add(s.concentration(in.Wallet))
	add(s.liquidity(in.Market))
	add(repetition(in.Wallet))

	return score, reasons
}

func (s *Scorer) walletAge(w domain.WalletStats) (float64, string) {
	switch {
	case w.AgeDays < 1:
		return 2, "Brand new wallet (< 1 day old)"
	case w.AgeDays < s.th.FreshWalletDays:
		return 1, fmt.Sprintf("Fresh wallet (%.1f days old)", w.AgeDays)
	}
	return 0, ""
}

// betSize aplica las tres bandas, mutuamente excluyentes y en orden de prioridad.
func (s *Scorer) betSize(t domain.Trade, m domain.MarketStats) (float64, string) {
	size := t.Notional()
	if size <= s.th.MinBetSize {
		return 0, ""
	}
	avg := m.AvgTradeSize
	switch {
	case avg > 0 && size > avg*s.th.LargeBetMultiplier:
		return 3, fmt.Sprintf("Unusually large bet: $%.0f (avg: $%.0f)", size, avg)
	case size > s.th.MinBetSize*10:
		return 2, fmt.Sprintf("Very large bet: $%.0f", size)
	case size > s.th.MinBetSize*5:
		return 1, fmt.Sprintf("Large bet: $%.0f", size)
	}
	return 0, ""
}

func (s *Scorer) concentration(w domain.WalletStats) (float64, string) {
	c := w.MaxMarketConcentration
	switch {
	case c >= s.th.MinWalletConcentration:
		return 2, fmt.Sprintf("High market concentration: %.0f%% of trades in one market", c*100)
	case c >= s.th.MinWalletConcentration*0.7:
		return 1, fmt.Sprintf("Moderate market concentration: %.0f%%", c*100)
	}
	return 0, ""
}

func (s *Scorer) liquidity(m domain.MarketStats) (float64, string) {
	vol := m.Liquidity()
	switch {
	case vol < s.th.NicheMarketVolume/5:
		return 2, fmt.Sprintf("Very low liquidity market: $%.0f volume", vol)
	case vol < s.th.NicheMarketVolume:
		return 1, fmt.Sprintf("Niche market: $%.0f volume", vol)
	}
	return 0, ""
}

func repetition(w domain.WalletStats) (float64, string) {
	if w.TotalTrades > 5 && w.UniqueMarkets < 3 {
		return 1, fmt.Sprintf("Repeated entries: %d trades in %d markets", w.TotalTrades, w.UniqueMarkets)
	}
	return 0, ""
}

// AnomalyZScore es la media de los z-scores positivos de edad y volumen.
// El volumen pesa la mitad: hay ballenas legítimas.
func AnomalyZScore(w domain.WalletStats, b Baseline) float64 {
	var sum float64
	var n int

	if z := (b.AgeMean - w.AgeDays) / floorStd(b.AgeStd); z > 0 {
		sum += z
		n++
	}
	if z := (w.TotalVolume - b.VolumeMean) / floorStd(b.VolumeStd); z > 0 {
		sum += z * 0.5
		n++
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func floorStd(v float64) float64 {
	return math.Max(v, minBaselineStd)
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(v, domain.MaxSuspicionScore))
}
