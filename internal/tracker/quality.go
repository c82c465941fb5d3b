package tracker

import (
	"sort"

	"github.com/alejandrodnm/polywatch/internal/domain"
)

const maxTopFalsePositives = 5

// EvaluateQuality calcula la precisión de la detección a partir de las alertas etiquetadas.
// precision = insider / (insider + false_positive); 0 si no hay ninguna de las dos.
func EvaluateQuality(alerts []domain.Alert) domain.QualityReport {
	var q domain.QualityReport
	var falsePositives []domain.Alert

	for _, a := range alerts {
		switch a.Label {
		case domain.LabelInsider:
			q.TruePositives++
		case domain.LabelFalsePositive:
			q.FalsePositives++
			falsePositives = append(falsePositives, a)
		case domain.LabelUnsure:
			q.Unsure++
		default:
			continue
		}
		q.Labeled++
	}

	if decided := q.TruePositives + q.FalsePositives; decided > 0 {
		q.Precision = float64(q.TruePositives) / float64(decided)
	}

	sort.SliceStable(falsePositives, func(i, j int) bool {
		return falsePositives[i].Score > falsePositives[j].Score
	})
	if len(falsePositives) > maxTopFalsePositives {
		falsePositives = falsePositives[:maxTopFalsePositives]
	}
	q.TopFalse = falsePositives
	return q
}
