package analytics

import (
	"math"

	"perfdash-service/internal/models"
)

// DetectTrendBreaks ищет точки, резко отклоняющиеся от скользящего окна
// предыдущих window значений. Пропуски исключаются из ряда.
// window <= 0 означает окно из настроек.
func (d *Detector) DetectTrendBreaks(t *models.Table, field string, window int) ([]models.TrendBreak, error) {
	if !t.HasField(field) {
		return nil, &MissingFieldError{Detector: "trend", Field: field}
	}
	if window <= 0 {
		window = d.settings.TrendWindow
	}

	values, positions := t.Series(field)
	if len(values) < 2*window {
		return nil, nil
	}

	var out []models.TrendBreak
	sw := NewSlidingWindow(window)
	for i, v := range values {
		if sw.Full() {
			if sw.StdDev() > 0 {
				prior := sw.Mean()
				z := math.Abs(sw.ZScore(v))
				if z > d.settings.TrendThreshold {
					severity := models.SeverityMedium
					if z > d.settings.TrendHigh {
						severity = models.SeverityHigh
					}
					out = append(out, models.TrendBreak{
						Period:           t.Rows[positions[i]].Period,
						Field:            field,
						Value:            v,
						PriorMean:        prior,
						LocalZ:           z,
						PercentVariation: percentVariation(v, prior),
						Severity:         severity,
					})
				}
			}
		}
		sw.Add(v)
	}
	return out, nil
}

// percentVariation изменение относительно модуля предыдущего среднего, в процентах.
// Для нулевого среднего не вычисляется.
func percentVariation(current, prior float64) *float64 {
	if prior == 0 {
		return nil
	}
	pct := (current - prior) / math.Abs(prior) * 100
	return &pct
}
