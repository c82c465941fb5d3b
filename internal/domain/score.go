package domain

// MaxSuspicionScore es el techo del score de sospecha.
const MaxSuspicionScore = 10.0

// SuspicionScore es el resultado inmutable del scorer.
type SuspicionScore struct {
	Value   float64  // [0,10]
	Reasons []string // en el orden en que se evaluaron las reglas
}

// WashCheck es el resultado de una dimensión del clasificador de wash trading.
type WashCheck struct {
	Value   float64 `json:"value"`
	Flagged bool    `json:"flagged"`
}

// WashVerdict es el veredicto compuesto del clasificador.
type WashVerdict struct {
	Address      string
	IsSuspicious bool
	Score        float64 // [0,100]
	Details      map[string]WashCheck
	Reason       string // solo cuando el clasificador se abstiene
}

// FlaggedChecks devuelve los nombres de las dimensiones marcadas.
func (v WashVerdict) FlaggedChecks() []string {
	var out []string
	for _, name := range WashCheckOrder {
		if c, ok := v.Details[name]; ok && c.Flagged {
			out = append(out, name)
		}
	}
	return out
}

// WashCheckOrder es el orden estable de las 8 dimensiones.
var WashCheckOrder = []string{
	"pl_vol_ratio",
	"holding_time",
	"extreme_prices",
	"win_rate",
	"cycle_patterns",
	"entropy",
	"market_concentration",
	"price_impact_reversal",
}
