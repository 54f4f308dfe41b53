package analytics

import (
	"math"

	"perfdash-service/internal/models"
)

// DetectIQR находит выбросы за пределами [Q1 - k*IQR, Q3 + k*IQR].
// Серьезность high, если отклонение от среднего больше IQRHighSigma стандартных отклонений.
func (d *Detector) DetectIQR(t *models.Table, fields ...string) ([]models.Outlier, error) {
	cols, err := resolveFields("iqr", t, fields)
	if err != nil {
		return nil, err
	}

	var out []models.Outlier
	for _, field := range cols {
		values, positions := t.Series(field)
		if len(values) == 0 {
			continue
		}

		q1 := Quantile(values, 0.25)
		q3 := Quantile(values, 0.75)
		iqr := q3 - q1
		lower := q1 - d.settings.IQRMultiplier*iqr
		upper := q3 + d.settings.IQRMultiplier*iqr

		m := mean(values)
		sd := stdDev(values, 1)

		for i, v := range values {
			if v >= lower && v <= upper {
				continue
			}
			severity := models.SeverityMedium
			if !math.IsNaN(sd) && math.Abs(v-m) > d.settings.IQRHighSigma*sd {
				severity = models.SeverityHigh
			}
			lo, hi := lower, upper
			out = append(out, models.Outlier{
				Period:   t.Rows[positions[i]].Period,
				Field:    field,
				Value:    v,
				Lower:    &lo,
				Upper:    &hi,
				Category: models.CategoryIQR,
				Severity: severity,
			})
		}
	}
	return out, nil
}

// DetectZScore находит значения с |z| > ZScoreThreshold.
// Показатели с нулевым отклонением пропускаются. Z-score считается только
// по присутствующим значениям и сопоставляется с исходными строками по позиции.
func (d *Detector) DetectZScore(t *models.Table, fields ...string) ([]models.Outlier, error) {
	cols, err := resolveFields("zscore", t, fields)
	if err != nil {
		return nil, err
	}

	var out []models.Outlier
	for _, field := range cols {
		values, positions := t.Series(field)
		if sd := stdDev(values, 1); math.IsNaN(sd) || sd == 0 {
			continue
		}

		m := mean(values)
		sd := stdDev(values, 0)

		for i, v := range values {
			z := math.Abs(v-m) / sd
			if z <= d.settings.ZScoreThreshold {
				continue
			}
			severity := models.SeverityMedium
			if z > d.settings.ZScoreHigh {
				severity = models.SeverityHigh
			}
			out = append(out, models.Outlier{
				Period:   t.Rows[positions[i]].Period,
				Field:    field,
				Value:    v,
				ZScore:   &z,
				Category: models.CategoryZScore,
				Severity: severity,
			})
		}
	}
	return out, nil
}
