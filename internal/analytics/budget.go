package analytics

import (
	"math"

	"perfdash-service/internal/models"
)

// Пороги бюджетного контроля, в процентах отклонения
const (
	BudgetSignificantPct = 10.0
	BudgetHighPct        = 15.0
	BudgetCriticalPct    = 20.0
)

// AnalyzeBudget возвращает строки, где факт отклоняется от бюджета больше чем на 10%.
// Строки с нулевым бюджетом пропускаются.
func AnalyzeBudget(lines []models.BudgetLine) []models.BudgetVariance {
	var out []models.BudgetVariance
	for _, line := range lines {
		if line.Budget == 0 || math.IsNaN(line.Budget) || math.IsNaN(line.Actual) {
			continue
		}
		variance := line.Actual - line.Budget
		pct := variance / line.Budget * 100
		abs := math.Abs(pct)
		if abs <= BudgetSignificantPct {
			continue
		}

		severity := models.SeverityMedium
		switch {
		case abs > BudgetCriticalPct:
			severity = models.SeverityCritical
		case abs > BudgetHighPct:
			severity = models.SeverityHigh
		}
		out = append(out, models.BudgetVariance{
			BudgetLine:      line,
			Variance:        variance,
			VariancePercent: pct,
			Severity:        severity,
		})
	}
	return out
}
