package analytics

import (
	"perfdash-service/internal/isoforest"
	"perfdash-service/internal/models"
)

// DetectMultivariate обучает isolation forest на стандартизированных полных строках
// и возвращает помеченные моделью строки. Меньше MinFields показателей или
// MinRows полных строк - пустой результат, не ошибка.
func (d *Detector) DetectMultivariate(t *models.Table, fields ...string) ([]models.MultivariateAnomaly, error) {
	cols, err := resolveFields("multivariate", t, fields)
	if err != nil {
		return nil, err
	}
	if len(cols) < d.settings.MinFields {
		return nil, nil
	}

	var (
		x       [][]float64
		periods []string
	)
	for i := range t.Rows {
		row := make([]float64, 0, len(cols))
		for _, field := range cols {
			v, ok := t.Value(i, field)
			if !ok {
				break
			}
			row = append(row, v)
		}
		if len(row) != len(cols) {
			continue
		}
		x = append(x, row)
		periods = append(periods, t.Rows[i].Period)
	}
	if len(x) < d.settings.MinRows {
		return nil, nil
	}

	var scaler isoforest.Scaler
	scaled := scaler.FitTransform(x)

	forest := isoforest.New(isoforest.Config{
		Trees:         d.settings.Trees,
		MaxSamples:    d.settings.MaxSamples,
		Contamination: d.settings.Contamination,
		Seed:          d.settings.Seed,
	})
	labels, decision, err := forest.FitPredict(scaled)
	if err != nil {
		return nil, err
	}

	var out []models.MultivariateAnomaly
	for i, label := range labels {
		if label != -1 {
			continue
		}
		severity := models.SeverityMedium
		if decision[i] < d.settings.ForestHighCutoff {
			severity = models.SeverityHigh
		}
		snapshot := make(map[string]float64, len(cols))
		for j, field := range cols {
			snapshot[field] = x[i][j]
		}
		out = append(out, models.MultivariateAnomaly{
			Period:   periods[i],
			Score:    -decision[i],
			Severity: severity,
			Values:   snapshot,
		})
	}
	return out, nil
}
