package analytics

import "perfdash-service/internal/models"

// HealthScore интегральная оценка 0-100 по последней строке.
// Итог нормируется на сумму весов показателей, присутствующих в строке;
// если таких нет или таблица пуста, возвращается NeutralHealthScore.
func (d *Detector) HealthScore(t *models.Table) float64 {
	return HealthScore(t, d.weights)
}

// HealthScore вычисляет оценку с явной таблицей весов
func HealthScore(t *models.Table, weights WeightTable) float64 {
	last := t.Latest()
	if last < 0 {
		return NeutralHealthScore
	}

	var weighted, used float64
	for _, w := range weights {
		if !t.HasField(w.Indicator) {
			continue
		}
		v, ok := t.Value(last, w.Indicator)
		if !ok {
			continue
		}
		weighted += subScore(v, w.Scale) * w.Weight
		used += w.Weight
	}

	if used <= 0 {
		return NeutralHealthScore
	}
	return round(clamp(weighted/used, 0, 100), 1)
}

func subScore(v float64, scale Scale) float64 {
	switch scale {
	case ScalePercent:
		return clamp(v, 0, 100)
	case ScaleTenPoint:
		return clamp(v*10, 0, 100)
	default:
		return NeutralHealthScore
	}
}
