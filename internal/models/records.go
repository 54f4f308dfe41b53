package models

import (
	"sort"
	"strconv"
)

// Severity уровень серьезности аномалии
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertLevel класс порогового алерта
type AlertLevel string

const (
	AlertCritical AlertLevel = "critical"
	AlertWarning  AlertLevel = "warning"
)

// Категории аномалий
const (
	CategoryIQR          = "outlier_iqr"
	CategoryZScore       = "outlier_zscore"
	CategoryMultivariate = "isolation_forest"
	CategoryTrendBreak   = "trend_break"
	CategoryBudget       = "budget_variance"
)

// Outlier результат одномерного детектора (IQR или Z-score)
type Outlier struct {
	Period   string   `json:"period"`
	Field    string   `json:"field"`
	Value    float64  `json:"value"`
	Lower    *float64 `json:"lower_bound,omitempty"`
	Upper    *float64 `json:"upper_bound,omitempty"`
	ZScore   *float64 `json:"z_score,omitempty"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
}

// MultivariateAnomaly строка, помеченная моделью isolation forest
type MultivariateAnomaly struct {
	Period   string             `json:"period"`
	Score    float64            `json:"anomaly_score"`
	Severity Severity           `json:"severity"`
	Values   map[string]float64 `json:"values"`
}

// TrendBreak резкое отклонение от скользящего среднего.
// PercentVariation равен nil, если предыдущее среднее равно нулю.
type TrendBreak struct {
	Period           string   `json:"period"`
	Field            string   `json:"field"`
	Value            float64  `json:"value"`
	PriorMean        float64  `json:"prior_mean"`
	LocalZ           float64  `json:"local_z"`
	PercentVariation *float64 `json:"percent_variation"`
	Severity         Severity `json:"severity"`
}

// Alert нарушение порога по последнему наблюдению
type Alert struct {
	Level     AlertLevel `json:"level"`
	Indicator string     `json:"indicator"`
	Value     float64    `json:"value"`
	Bound     float64    `json:"bound"`
	Unit      string     `json:"unit"`
	Color     string     `json:"color,omitempty"`
	Message   string     `json:"message"`
}

// BudgetLine строка бюджетного контроля: факт против бюджета по категории
type BudgetLine struct {
	Period   string  `json:"period"`
	Category string  `json:"category"`
	Actual   float64 `json:"actual"`
	Budget   float64 `json:"budget"`
}

// BudgetVariance значимое отклонение от бюджета
type BudgetVariance struct {
	BudgetLine
	Variance        float64  `json:"variance"`
	VariancePercent float64  `json:"variance_percent"`
	Severity        Severity `json:"severity"`
}

// FieldStats описательная статистика показателя
type FieldStats struct {
	Field  string  `json:"field"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
