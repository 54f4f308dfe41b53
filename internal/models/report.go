package models

import (
	"strconv"
	"strings"
	"time"
)

// Summary количество найденных записей по категориям
type Summary struct {
	IQROutliers           int `json:"iqr_outliers"`
	ZScoreOutliers        int `json:"zscore_outliers"`
	MultivariateAnomalies int `json:"multivariate_anomalies"`
	TrendBreaks           int `json:"trend_breaks"`
	Alerts                int `json:"alerts"`
}

// Total возвращает общее количество находок
func (s Summary) Total() int {
	return s.IQROutliers + s.ZScoreOutliers + s.MultivariateAnomalies + s.TrendBreaks + s.Alerts
}

// FieldTrendBreaks разрывы тренда по одному показателю
type FieldTrendBreaks struct {
	Field  string       `json:"field"`
	Breaks []TrendBreak `json:"breaks"`
}

// DetectorError ошибка отдельного детектора, не прерывающая сборку отчета
type DetectorError struct {
	Detector string `json:"detector"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// Report сводный отчет об аномалиях за один проход
type Report struct {
	ID             string                `json:"id"`
	GeneratedAt    time.Time             `json:"generated_at"`
	Rows           int                   `json:"rows"`
	Fields         []string              `json:"fields"`
	Summary        Summary               `json:"summary"`
	IQROutliers    []Outlier             `json:"iqr_outliers"`
	ZScoreOutliers []Outlier             `json:"zscore_outliers"`
	Multivariate   []MultivariateAnomaly `json:"multivariate_anomalies"`
	TrendBreaks    []FieldTrendBreaks    `json:"trend_breaks"`
	Alerts         []Alert               `json:"alerts"`
	HealthScore    float64               `json:"health_score"`
	Errors         []DetectorError       `json:"errors,omitempty"`
}

// Section табличное представление одной коллекции отчета
type Section struct {
	Name    string
	Header  []string
	Records [][]string
}

// Sections возвращает коллекции отчета в табличном виде для вывода и экспорта
func (r *Report) Sections() []Section {
	return []Section{
		outlierSection("iqr_outliers", r.IQROutliers),
		outlierSection("zscore_outliers", r.ZScoreOutliers),
		r.multivariateSection(),
		r.trendSection(),
		AlertSection(r.Alerts),
		r.summarySection(),
	}
}

func outlierSection(name string, outliers []Outlier) Section {
	s := Section{
		Name:   name,
		Header: []string{"period", "field", "value", "lower_bound", "upper_bound", "z_score", "category", "severity"},
	}
	for _, o := range outliers {
		s.Records = append(s.Records, []string{
			o.Period, o.Field, formatFloat(o.Value),
			formatOptional(o.Lower), formatOptional(o.Upper), formatOptional(o.ZScore),
			o.Category, string(o.Severity),
		})
	}
	return s
}

func (r *Report) multivariateSection() Section {
	s := Section{
		Name:   "multivariate_anomalies",
		Header: []string{"period", "anomaly_score", "severity", "values"},
	}
	for _, a := range r.Multivariate {
		parts := make([]string, 0, len(a.Values))
		for _, k := range sortedKeys(a.Values) {
			parts = append(parts, k+"="+formatFloat(a.Values[k]))
		}
		s.Records = append(s.Records, []string{
			a.Period, formatFloat(a.Score), string(a.Severity), strings.Join(parts, ";"),
		})
	}
	return s
}

func (r *Report) trendSection() Section {
	s := Section{
		Name:   "trend_breaks",
		Header: []string{"period", "field", "value", "prior_mean", "local_z", "percent_variation", "severity"},
	}
	for _, group := range r.TrendBreaks {
		for _, b := range group.Breaks {
			s.Records = append(s.Records, []string{
				b.Period, b.Field, formatFloat(b.Value), formatFloat(b.PriorMean),
				formatFloat(b.LocalZ), formatOptional(b.PercentVariation), string(b.Severity),
			})
		}
	}
	return s
}

// AlertSection табличное представление списка алертов
func AlertSection(alerts []Alert) Section {
	s := Section{
		Name:   "alerts",
		Header: []string{"level", "indicator", "value", "bound", "unit", "message"},
	}
	for _, a := range alerts {
		s.Records = append(s.Records, []string{
			string(a.Level), a.Indicator, formatFloat(a.Value), formatFloat(a.Bound), a.Unit, a.Message,
		})
	}
	return s
}

func (r *Report) summarySection() Section {
	return Section{
		Name:   "summary",
		Header: []string{"iqr_outliers", "zscore_outliers", "multivariate_anomalies", "trend_breaks", "alerts", "health_score"},
		Records: [][]string{{
			strconv.Itoa(r.Summary.IQROutliers),
			strconv.Itoa(r.Summary.ZScoreOutliers),
			strconv.Itoa(r.Summary.MultivariateAnomalies),
			strconv.Itoa(r.Summary.TrendBreaks),
			strconv.Itoa(r.Summary.Alerts),
			strconv.FormatFloat(r.HealthScore, 'f', 1, 64),
		}},
	}
}
