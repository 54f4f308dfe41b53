package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"perfdash-service/internal/models"
)

// EvaluateThresholds проверяет последнюю строку таблицы по таблице порогов.
// Значение ниже min - critical, выше max - warning. Порядок алертов - порядок правил.
func (d *Detector) EvaluateThresholds(t *models.Table) []models.Alert {
	last := t.Latest()
	if last < 0 {
		return nil
	}

	var alerts []models.Alert
	for _, rule := range d.thresholds {
		column := rule.Column()
		if !t.HasField(column) {
			continue
		}
		v, ok := t.Value(last, column)
		if !ok {
			continue
		}

		name := humanize(column)
		switch {
		case v < rule.Min:
			alerts = append(alerts, models.Alert{
				Level:     models.AlertCritical,
				Indicator: column,
				Value:     v,
				Bound:     rule.Min,
				Unit:      rule.Unit,
				Color:     d.AlertColor(v, rule.Min, rule.Max),
				Message:   fmt.Sprintf("%s is below the minimum threshold (%.1f < %s)", name, v, formatBound(rule.Min)),
			})
		case v > rule.Max:
			alerts = append(alerts, models.Alert{
				Level:     models.AlertWarning,
				Indicator: column,
				Value:     v,
				Bound:     rule.Max,
				Unit:      rule.Unit,
				Color:     d.AlertColor(v, rule.Min, rule.Max),
				Message:   fmt.Sprintf("%s exceeds the maximum threshold (%.1f > %s)", name, v, formatBound(rule.Max)),
			})
		}
	}
	return alerts
}

// AlertColor возвращает цвет статуса: danger ниже min, warning выше max, иначе success
func (d *Detector) AlertColor(value, min, max float64) string {
	switch {
	case value < min:
		return d.palette.Danger
	case value > max:
		return d.palette.Warning
	default:
		return d.palette.Success
	}
}

func humanize(field string) string {
	words := strings.Fields(strings.ReplaceAll(field, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
