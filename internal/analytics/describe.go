package analytics

import (
	"math"

	"perfdash-service/internal/models"
)

// Describe возвращает описательную статистику по каждому показателю таблицы.
// Значения округляются до двух знаков; показатели без данных пропускаются.
func Describe(t *models.Table) []models.FieldStats {
	out := make([]models.FieldStats, 0, len(t.Fields))
	for _, field := range t.Fields {
		values, _ := t.Series(field)
		if len(values) == 0 {
			continue
		}
		lo, hi := values[0], values[0]
		for _, v := range values[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		sd := stdDev(values, 1)
		if math.IsNaN(sd) {
			sd = 0
		}
		out = append(out, models.FieldStats{
			Field:  field,
			Count:  len(values),
			Mean:   round(mean(values), 2),
			Median: round(Quantile(values, 0.5), 2),
			StdDev: round(sd, 2),
			Min:    round(lo, 2),
			Max:    round(hi, 2),
			Q1:     round(Quantile(values, 0.25), 2),
			Q3:     round(Quantile(values, 0.75), 2),
		})
	}
	return out
}
