package detector

import (
	"fmt"
	"math"
)

// WashVetoReason es la razón única de un score vetado por wash trading.
const WashVetoReason = "Wash Trading Detected"

// RiskBoost ajusta el score de reglas. Veto corre antes de las reglas y,
// si devuelve true, el score queda en 0. Boost corre después y suma puntos.
type RiskBoost interface {
	Veto(in Input) (bool, string)
	Boost(in Input) (float64, []string)
}

// historyUser lo implementan las estrategias que leen Input.History.
type historyUser interface {
	NeedsHistory() bool
}

// NeedsHistory indica si la estrategia lee el historial del wallet.
func NeedsHistory(b RiskBoost) bool {
	h, ok := b.(historyUser)
	return ok && h.NeedsHistory()
}

// Nombres de estrategia aceptados en config.
const (
	BoostBaseline = "baseline"
	BoostWash     = "wash"
	BoostBoth     = "both"
)

// NewRiskBoost construye la estrategia por nombre.
func NewRiskBoost(name string, wash *WashClassifier) (RiskBoost, error) {
	switch name {
	case "", BoostBaseline:
		return BaselineBoost{}, nil
	case BoostWash:
		return WashVeto{Classifier: wash}, nil
	case BoostBoth:
		return Composite{WashVeto{Classifier: wash}, BaselineBoost{}}, nil
	}
	return nil, fmt.Errorf("detector.NewRiskBoost: unknown strategy %q", name)
}

// NoBoost no ajusta nada.
type NoBoost struct{}

func (NoBoost) Veto(Input) (bool, string)        { return false, "" }
func (NoBoost) Boost(Input) (float64, []string) { return 0, nil }

// BaselineBoost suma hasta +2 cuando el z-score del wallet supera 2.
type BaselineBoost struct{}

func (BaselineBoost) Veto(Input) (bool, string) { return false, "" }

func (BaselineBoost) Boost(in Input) (float64, []string) {
	z := AnomalyZScore(in.Wallet, in.Baseline)
	if z <= 2.0 {
		return 0, nil
	}
	return math.Min(z-2.0, 2.0), []string{fmt.Sprintf("Statistically anomalous (Z-Score: %.1f)", z)}
}

// WashVeto corre el clasificador sobre el historial del wallet y anula el score
// si el wallet parece hacer wash trading.
type WashVeto struct {
	Classifier *WashClassifier
}

func (w WashVeto) Veto(in Input) (bool, string) {
	c := w.Classifier
	if c == nil {
		c = NewWashClassifier(DefaultWashThresholds())
	}
	if v := c.Detect(in.Trade.Wallet, in.History); v.IsSuspicious {
		return true, WashVetoReason
	}
	return false, ""
}

func (WashVeto) Boost(Input) (float64, []string) { return 0, nil }

func (WashVeto) NeedsHistory() bool { return true }

// Composite aplica varias estrategias: cualquier veto gana y los boosts se suman.
type Composite []RiskBoost

func (c Composite) Veto(in Input) (bool, string) {
	for _, b := range c {
		if ok, reason := b.Veto(in); ok {
			return true, reason
		}
	}
	return false, ""
}

func (c Composite) NeedsHistory() bool {
	for _, b := range c {
		if NeedsHistory(b) {
			return true
		}
	}
	return false
}

func (c Composite) Boost(in Input) (float64, []string) {
	var total float64
	var reasons []string
	for _, b := range c {
		pts, rs := b.Boost(in)
		total += pts
		reasons = append(reasons, rs...)
	}
	return total, reasons
}
