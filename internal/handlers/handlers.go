// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"perfdash-service/internal/analytics"
	"perfdash-service/internal/cache"
	"perfdash-service/internal/dataset"
	"perfdash-service/internal/metrics"
	"perfdash-service/internal/models"
	"perfdash-service/internal/worker"
)

const (
	// maxBodyBytes ограничение размера тела запроса
	maxBodyBytes = 10 << 20
	// storeTimeout таймаут операций с хранилищем отчетов
	storeTimeout = 3 * time.Second

	defaultLatestCount = 10
	defaultDemoMonths  = 24
	maxDemoMonths      = 120
)

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	pool      *worker.Pool
	store     cache.ReportStore
	logger    zerolog.Logger
	startTime time.Time
	now       func() time.Time
}

// NewHandler создает новый обработчик. store может быть nil.
func NewHandler(pool *worker.Pool, store cache.ReportStore, logger zerolog.Logger) *Handler {
	return &Handler{
		pool:      pool,
		store:     store,
		logger:    logger,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Register регистрирует маршруты API
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/reports", h.CreateReportHandler).Methods(http.MethodPost)
	router.HandleFunc("/reports/csv", h.CSVReportHandler).Methods(http.MethodPost)
	router.HandleFunc("/reports/async", h.AsyncReportHandler).Methods(http.MethodPost)
	router.HandleFunc("/reports/latest", h.LatestReportsHandler).Methods(http.MethodGet)
	router.HandleFunc("/reports/demo", h.DemoReportHandler).Methods(http.MethodGet)
	router.HandleFunc("/reports/{id}", h.GetReportHandler).Methods(http.MethodGet)
	router.HandleFunc("/alerts", h.AlertsHandler).Methods(http.MethodPost)
	router.HandleFunc("/health-score", h.HealthScoreHandler).Methods(http.MethodPost)
	router.HandleFunc("/trend-breaks", h.TrendBreaksHandler).Methods(http.MethodPost)
	router.HandleFunc("/budget-variance", h.BudgetVarianceHandler).Methods(http.MethodPost)
	router.HandleFunc("/describe", h.DescribeHandler).Methods(http.MethodPost)
	router.HandleFunc("/digest", h.DigestHandler).Methods(http.MethodPost)
	router.HandleFunc("/thresholds", h.ThresholdsHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.StatsHandler).Methods(http.MethodGet)
}

// CreateReportHandler обрабатывает POST /reports - синхронный отчет
func (h *Handler) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/reports"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	req, ok := h.decodeRequest(w, r, endpoint)
	if !ok {
		return
	}
	detector, err := h.detectorFor(req.Options)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	h.buildReport(w, r, endpoint, worker.Job{Table: req.Table(), Fields: req.Fields, Detector: detector})
}

// CSVReportHandler обрабатывает POST /reports/csv - отчет по CSV в теле запроса
func (h *Handler) CSVReportHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/reports/csv"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	table, err := dataset.ReadCSV(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, endpoint, "Invalid CSV: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.buildReport(w, r, endpoint, worker.Job{Table: table, Fields: splitFields(r.URL.Query().Get("fields"))})
}

// AsyncReportHandler обрабатывает POST /reports/async - постановка отчета в очередь
func (h *Handler) AsyncReportHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/reports/async"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	req, ok := h.decodeRequest(w, r, endpoint)
	if !ok {
		return
	}
	detector, err := h.detectorFor(req.Options)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	id, queued := h.pool.Submit(worker.Job{Table: req.Table(), Fields: req.Fields, Detector: detector})
	if !queued {
		h.fail(w, r, endpoint, "Report queue is full", http.StatusServiceUnavailable)
		return
	}
	metrics.QueueDepth.Set(float64(h.pool.Pending()))

	h.succeed(w, r, endpoint, models.JobAccepted{ID: id, Status: "queued"}, http.StatusAccepted)
}

// GetReportHandler обрабатывает GET /reports/{id} - отчет из кэша
func (h *Handler) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/reports/{id}"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	if h.store == nil {
		h.fail(w, r, endpoint, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	report, err := h.store.GetReport(ctx, mux.Vars(r)["id"])
	if err != nil {
		metrics.CacheMisses.Inc()
		h.fail(w, r, endpoint, err.Error(), statusFor(err))
		return
	}
	metrics.CacheHits.Inc()

	h.succeed(w, r, endpoint, report, http.StatusOK)
}

// LatestReportsHandler обрабатывает GET /reports/latest - идентификаторы последних отчетов
func (h *Handler) LatestReportsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/reports/latest"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	count := int64(defaultLatestCount)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= cache.LatestReportsLimit {
			count = c
		}
	}

	if h.store == nil {
		h.fail(w, r, endpoint, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	ids, err := h.store.LatestReportIDs(ctx, count)
	if err != nil {
		h.fail(w, r, endpoint, "Failed to get reports: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.succeed(w, r, endpoint, map[string]interface{}{"count": len(ids), "ids": ids}, http.StatusOK)
}

// DemoReportHandler обрабатывает GET /reports/demo - отчет по синтетическим данным
func (h *Handler) DemoReportHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/reports/demo"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	months := defaultDemoMonths
	if monthsStr := r.URL.Query().Get("months"); monthsStr != "" {
		m, err := strconv.Atoi(monthsStr)
		if err != nil || m < 2 || m > maxDemoMonths {
			h.fail(w, r, endpoint, "months must be an integer in [2, 120]", http.StatusBadRequest)
			return
		}
		months = m
	}

	end := h.now()
	table := dataset.Merge(
		dataset.GenerateFinancial(months, end, dataset.DefaultSeed),
		dataset.GenerateOperational(months, end, dataset.DefaultSeed),
	)

	h.buildReport(w, r, endpoint, worker.Job{Table: table})
}

// AlertsHandler обрабатывает POST /alerts - пороговые алерты по последней строке
func (h *Handler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/alerts"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	table, ok := h.decodeTable(w, r, endpoint)
	if !ok {
		return
	}

	alerts := h.pool.Detector().EvaluateThresholds(table)
	for _, a := range alerts {
		metrics.AlertsRaised.WithLabelValues(string(a.Level)).Inc()
	}

	h.succeed(w, r, endpoint, map[string]interface{}{"count": len(alerts), "alerts": alerts}, http.StatusOK)
}

// HealthScoreHandler обрабатывает POST /health-score - интегральная оценка
func (h *Handler) HealthScoreHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/health-score"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	table, ok := h.decodeTable(w, r, endpoint)
	if !ok {
		return
	}

	detector := h.pool.Detector()
	score := detector.HealthScore(table)
	response := map[string]interface{}{
		"health_score": score,
		"color":        detector.AlertColor(score, analytics.NeutralHealthScore, 100),
	}

	h.succeed(w, r, endpoint, response, http.StatusOK)
}

// TrendBreaksHandler обрабатывает POST /trend-breaks?field=&window= - разрывы тренда одного показателя
func (h *Handler) TrendBreaksHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/trend-breaks"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	field := r.URL.Query().Get("field")
	if field == "" {
		h.fail(w, r, endpoint, "query parameter field is required", http.StatusBadRequest)
		return
	}
	window := 0
	if windowStr := r.URL.Query().Get("window"); windowStr != "" {
		n, err := strconv.Atoi(windowStr)
		if err != nil || n < 2 {
			h.fail(w, r, endpoint, "window must be an integer >= 2", http.StatusBadRequest)
			return
		}
		window = n
	}

	table, ok := h.decodeTable(w, r, endpoint)
	if !ok {
		return
	}

	breaks, err := h.pool.Detector().DetectTrendBreaks(table, field, window)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), statusFor(err))
		return
	}

	h.succeed(w, r, endpoint, models.FieldTrendBreaks{Field: field, Breaks: breaks}, http.StatusOK)
}

// BudgetVarianceHandler обрабатывает POST /budget-variance - отклонения от бюджета
func (h *Handler) BudgetVarianceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/budget-variance"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var req models.BudgetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	variances := analytics.AnalyzeBudget(req.Lines)

	h.succeed(w, r, endpoint, map[string]interface{}{"count": len(variances), "variances": variances}, http.StatusOK)
}

// DescribeHandler обрабатывает POST /describe - описательная статистика
func (h *Handler) DescribeHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/describe"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	table, ok := h.decodeTable(w, r, endpoint)
	if !ok {
		return
	}

	h.succeed(w, r, endpoint, analytics.Describe(table), http.StatusOK)
}

// DigestHandler обрабатывает POST /digest - текстовая сводка таблицы
func (h *Handler) DigestHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/digest"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	table, ok := h.decodeTable(w, r, endpoint)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(dataset.Digest(table)))
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "200").Inc()
}

// ThresholdsHandler обрабатывает GET /thresholds - действующая конфигурация детекторов
func (h *Handler) ThresholdsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/thresholds"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	detector := h.pool.Detector()
	response := map[string]interface{}{
		"settings":   detector.Settings(),
		"thresholds": detector.Thresholds(),
		"weights":    detector.Weights(),
		"palette":    detector.Palette(),
	}

	h.succeed(w, r, endpoint, response, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()
		if h.store.Ping(ctx) == nil {
			redisStatus = "connected"
		}
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/stats"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	// Обновляем метрику горутин
	goroutines := runtime.NumGoroutine()
	metrics.ActiveGoroutines.Set(float64(goroutines))

	var reports, anomalies int64
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()
		reports, _ = h.store.GetCounter(ctx, cache.CounterReports)
		anomalies, _ = h.store.GetCounter(ctx, cache.CounterAnomalies)
	}

	response := models.StatsResponse{
		ReportsGenerated: reports,
		AnomaliesFound:   anomalies,
		QueueDepth:       h.pool.Pending(),
		Workers:          h.pool.Workers(),
		Goroutines:       goroutines,
		Uptime:           time.Since(h.startTime).String(),
	}

	h.succeed(w, r, endpoint, response, http.StatusOK)
}

// buildReport строит отчет в горутине запроса, сохраняет его и отвечает клиенту
func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request, endpoint string, job worker.Job) {
	res := h.pool.RunSync(job)
	if res.Err != nil {
		h.fail(w, r, endpoint, res.Err.Error(), statusFor(res.Err))
		return
	}

	metrics.ObserveReport(res.Report, res.Elapsed)
	h.Persist(r.Context(), res.Report)

	h.succeed(w, r, endpoint, res.Report, http.StatusOK)
}

// Persist сохраняет отчет и обновляет счетчики. Ошибки хранилища только логируются.
func (h *Handler) Persist(ctx context.Context, report *models.Report) {
	if h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := h.store.SaveReport(ctx, report); err != nil {
		h.logger.Warn().Err(err).Str("report_id", report.ID).Msg("failed to cache report")
		return
	}
	_, _ = h.store.IncrementCounter(ctx, cache.CounterReports, 1)
	if total := report.Summary.Total(); total > 0 {
		_, _ = h.store.IncrementCounter(ctx, cache.CounterAnomalies, int64(total))
	}
}

// ProcessResults сохраняет отчеты фоновых задач до закрытия канала результатов
func (h *Handler) ProcessResults(ctx context.Context) {
	for res := range h.pool.Results() {
		metrics.QueueDepth.Set(float64(h.pool.Pending()))
		if res.Err != nil {
			continue
		}
		metrics.ObserveReport(res.Report, res.Elapsed)
		h.Persist(ctx, res.Report)

		if total := res.Report.Summary.Total(); total > 0 {
			h.logger.Info().
				Str("report_id", res.Report.ID).
				Int("anomalies", total).
				Float64("health_score", res.Report.HealthScore).
				Msg("anomalies detected")
		}
	}
}

// detectorFor возвращает детектор с переопределениями запроса
func (h *Handler) detectorFor(opts *models.ReportOptions) (*analytics.Detector, error) {
	base := h.pool.Detector()
	if opts == nil {
		return base, nil
	}
	settings := base.Settings().Apply(opts)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return base.With(analytics.WithSettings(settings)), nil
}

// decodeRequest читает тело запроса отчета
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, endpoint string) (models.ReportRequest, bool) {
	var req models.ReportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// decodeTable читает и проверяет таблицу наблюдений из тела запроса
func (h *Handler) decodeTable(w http.ResponseWriter, r *http.Request, endpoint string) (*models.Table, bool) {
	req, ok := h.decodeRequest(w, r, endpoint)
	if !ok {
		return nil, false
	}
	table := req.Table()
	if err := table.Validate(); err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return table, true
}

// statusFor сопоставляет ошибку с HTTP статусом
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidTable):
		return http.StatusBadRequest
	case errors.Is(err, analytics.ErrMissingField):
		return http.StatusUnprocessableEntity
	case errors.Is(err, cache.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// succeed отправляет JSON ответ и считает запрос
func (h *Handler) succeed(w http.ResponseWriter, r *http.Request, endpoint string, data interface{}, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondJSON(w, data, status)
}

// fail отправляет ошибку и считает запрос
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, endpoint, message string, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondError(w, message, status)
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
