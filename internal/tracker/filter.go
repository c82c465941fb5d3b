package tracker

import (
	"sort"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

// FilterConfig contiene los parámetros de filtrado de mercados.
type FilterConfig struct {
	// MinVolume descarta mercados con menos volumen reportado por Gamma.
	MinVolume float64
	// MaxMarkets limita los mercados vigilados por ciclo (0 = sin límite).
	// Se quedan los de mayor volumen.
	MaxMarkets int
}

// Filter decide qué mercados se procesan en un ciclo.
type Filter struct {
	cfg FilterConfig
}

// NewFilter crea un Filter con la configuración dada.
func NewFilter(cfg FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Apply devuelve los mercados que pasan los filtros, ordenados por volumen descendente.
// No modifica markets.
func (f *Filter) Apply(markets []domain.Market) []domain.Market {
	result := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if f.passes(m) {
			result = append(result, m)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Volume > result[j].Volume
	})
	if f.cfg.MaxMarkets > 0 && len(result) > f.cfg.MaxMarkets {
		result = result[:f.cfg.MaxMarkets]
	}
	return result
}

func (f *Filter) passes(m domain.Market) bool {
	if m.Closed || m.ConditionID == "" {
		return false
	}
	return m.Volume >= f.cfg.MinVolume
}
