package detector

import (
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const (
	coordinatedWindow    = 300 * time.Second
	coordinatedMinTrades = 3
	coordinatedSizeTol   = 0.1
)

// CoordinatedGroup es un grupo de trades de tamaño parecido dentro de la misma ventana de 5 minutos.
type CoordinatedGroup struct {
	Window  time.Time
	Pattern string
	Trades  []domain.Trade
}

// Count devuelve el número de trades del grupo.
func (g CoordinatedGroup) Count() int {
	return len(g.Trades)
}

// DetectCoordinated busca ventanas de 300s con al menos 3 trades cuyo tamaño
// (shares) está a menos de un 10% de la media de la ventana.
func DetectCoordinated(trades []domain.Trade) []CoordinatedGroup {
	windows := make(map[int64][]domain.Trade)
	step := int64(coordinatedWindow / time.Second)
	for _, t := range trades {
		key := floorDiv(t.Timestamp.Unix(), step) * step
		windows[key] = append(windows[key], t)
	}

	keys := make([]int64, 0, len(windows))
	for k := range windows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var groups []CoordinatedGroup
	for _, k := range keys {
		wt := windows[k]
		if len(wt) < coordinatedMinTrades {
			continue
		}
		var sum float64
		for _, t := range wt {
			sum += t.Size
		}
		avg := sum / float64(len(wt))
		if avg <= 0 {
			continue
		}

		var similar []domain.Trade
		for _, t := range wt {
			if math.Abs(t.Size-avg)/avg < coordinatedSizeTol {
				similar = append(similar, t)
			}
		}
		if len(similar) >= coordinatedMinTrades {
			groups = append(groups, CoordinatedGroup{
				Window:  time.Unix(k, 0).UTC(),
				Pattern: "similar_sizing",
				Trades:  similar,
			})
		}
	}
	return groups
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
