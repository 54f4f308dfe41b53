package models

import "time"

// ReportOptions переопределяет пороги детекторов для одного запроса.
// Незаданные поля берутся из конфигурации сервиса.
type ReportOptions struct {
	IQRMultiplier   *float64 `json:"iqr_multiplier,omitempty"`
	ZScoreThreshold *float64 `json:"zscore_threshold,omitempty"`
	TrendWindow     *int     `json:"trend_window,omitempty"`
	TrendThreshold  *float64 `json:"trend_threshold,omitempty"`
	Contamination   *float64 `json:"contamination,omitempty"`
	Seed            *int64   `json:"seed,omitempty"`
}

// ReportRequest тело запроса на построение отчета
type ReportRequest struct {
	Fields  []string       `json:"fields,omitempty"`
	Rows    []Row          `json:"rows"`
	Options *ReportOptions `json:"options,omitempty"`
}

// Table собирает таблицу наблюдений из запроса
func (r ReportRequest) Table() *Table {
	t := &Table{Rows: r.Rows}
	t.InferFields()
	return t
}

// BudgetRequest строки бюджетного контроля
type BudgetRequest struct {
	Lines []BudgetLine `json:"lines"`
}

// JobAccepted ответ на асинхронный запрос отчета
type JobAccepted struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	ReportsGenerated int64  `json:"reports_generated"`
	AnomaliesFound   int64  `json:"anomalies_found"`
	QueueDepth       int    `json:"queue_depth"`
	Workers          int    `json:"workers"`
	Goroutines       int    `json:"goroutines"`
	Uptime           string `json:"uptime"`
}
