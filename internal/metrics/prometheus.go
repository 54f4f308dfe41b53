// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"perfdash-service/internal/models"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfdash_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfdash_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"endpoint", "method"},
	)

	// ReportsGenerated количество собранных отчетов
	ReportsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfdash_reports_generated_total",
			Help: "Total number of anomaly reports generated",
		},
	)

	// RowsAnalyzed количество проанализированных строк
	RowsAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfdash_rows_analyzed_total",
			Help: "Total number of observation rows analyzed",
		},
	)

	// OutliersDetected одномерные выбросы по методу
	OutliersDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfdash_outliers_detected_total",
			Help: "Total number of univariate outliers detected",
		},
		[]string{"method"},
	)

	// MultivariateAnomalies строки, помеченные isolation forest
	MultivariateAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfdash_multivariate_anomalies_total",
			Help: "Total number of rows flagged by the isolation forest",
		},
	)

	// TrendBreaks разрывы тренда
	TrendBreaks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfdash_trend_breaks_total",
			Help: "Total number of trend breaks detected",
		},
	)

	// AlertsRaised пороговые алерты по уровню
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfdash_alerts_total",
			Help: "Total number of threshold alerts raised",
		},
		[]string{"level"},
	)

	// DetectorErrors ошибки отдельных детекторов
	DetectorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfdash_detector_errors_total",
			Help: "Total number of detector failures recorded in reports",
		},
		[]string{"detector"},
	)

	// HealthScore интегральная оценка последнего отчета
	HealthScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfdash_health_score",
			Help: "Composite health score of the latest report",
		},
	)

	// CacheHits попадания в кэш
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfdash_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses промахи кэша
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "perfdash_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// QueueDepth количество задач в очереди пула
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfdash_queue_depth",
			Help: "Number of report jobs waiting in the worker queue",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfdash_active_goroutines",
			Help: "Number of active goroutines",
		},
	)

	// DetectionLatency время сборки отчета
	DetectionLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "perfdash_detection_latency_seconds",
			Help:    "Report computation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// ObserveReport обновляет метрики по собранному отчету
func ObserveReport(report *models.Report, elapsed time.Duration) {
	ReportsGenerated.Inc()
	DetectionLatency.Observe(elapsed.Seconds())
	RowsAnalyzed.Add(float64(report.Rows))

	OutliersDetected.WithLabelValues("iqr").Add(float64(report.Summary.IQROutliers))
	OutliersDetected.WithLabelValues("zscore").Add(float64(report.Summary.ZScoreOutliers))
	MultivariateAnomalies.Add(float64(report.Summary.MultivariateAnomalies))
	TrendBreaks.Add(float64(report.Summary.TrendBreaks))

	for _, a := range report.Alerts {
		AlertsRaised.WithLabelValues(string(a.Level)).Inc()
	}
	for _, e := range report.Errors {
		DetectorErrors.WithLabelValues(e.Detector).Inc()
	}
	HealthScore.Set(report.HealthScore)
}
