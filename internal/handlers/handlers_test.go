package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash-service/internal/analytics"
	"perfdash-service/internal/cache"
	"perfdash-service/internal/models"
	"perfdash-service/internal/worker"
)

type testServer struct {
	handler *Handler
	router  *mux.Router
	pool    *worker.Pool
	store   *cache.MemoryCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := cache.NewMemoryCache(16)
	require.NoError(t, err)

	pool := worker.NewPool(analytics.NewDetector(), 8, zerolog.Nop())
	h := NewHandler(pool, store, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC) }

	router := mux.NewRouter()
	h.Register(router)
	return &testServer{handler: h, router: router, pool: pool, store: store}
}

func (s *testServer) do(method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// requestBody builds 12 monthly rows: gross margin 40%, productivity dropping to 60 at the end
// and a revenue series with a single spike at row 6.
func requestBody(t *testing.T, opts *models.ReportOptions) []byte {
	t.Helper()
	revenue := []float64{10, 11, 10, 11, 10, 11, 100, 10, 11, 10, 11, 10}
	req := models.ReportRequest{Options: opts}
	for i := 0; i < 12; i++ {
		productivity := 100.0
		if i == 11 {
			productivity = 60
		}
		req.Rows = append(req.Rows, models.Row{
			Period: fmt.Sprintf("2024-%02d", i+1),
			Values: map[string]float64{
				"gross_margin_rate": 40,
				"productivity":      productivity,
				"revenue":           revenue[i],
			},
		})
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func TestCreateReport_StoresAndServes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/reports", requestBody(t, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[models.Report](t, rec)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 12, report.Rows)
	assert.Equal(t, []string{"gross_margin_rate", "productivity", "revenue"}, report.Fields)
	require.Len(t, report.Alerts, 1)
	assert.Equal(t, "productivity", report.Alerts[0].Indicator)
	assert.Equal(t, models.AlertCritical, report.Alerts[0].Level)

	// Cached copy is reachable by id
	rec = s.do(http.MethodGet, "/reports/"+report.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cached := decode[models.Report](t, rec)
	assert.Equal(t, report.ID, cached.ID)
	assert.Equal(t, report.Summary, cached.Summary)

	rec = s.do(http.MethodGet, "/reports/latest?count=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[struct {
		Count int      `json:"count"`
		IDs   []string `json:"ids"`
	}](t, rec)
	assert.Equal(t, 1, latest.Count)
	assert.Equal(t, []string{report.ID}, latest.IDs)

	rec = s.do(http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[models.StatsResponse](t, rec)
	assert.Equal(t, int64(1), stats.ReportsGenerated)
	assert.Equal(t, int64(report.Summary.Total()), stats.AnomaliesFound)
}

func TestCreateReport_BadInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body []byte
	}{
		{"invalid json", []byte("{not json")},
		{"unordered periods", []byte(`{"rows":[{"period":"2024-02","values":{"a":1}},{"period":"2024-01","values":{"a":2}}]}`)},
		{"duplicate periods", []byte(`{"rows":[{"period":"2024-01","values":{"a":1}},{"period":"2024-01","values":{"a":2}}]}`)},
		{"invalid options", requestBody(t, &models.ReportOptions{Contamination: ptr(0.9)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/reports", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCreateReport_OptionsOverrideSettings(t *testing.T) {
	s := newTestServer(t)

	// A window wider than half the series disables trend breaks
	rec := s.do(http.MethodPost, "/reports", requestBody(t, &models.ReportOptions{TrendWindow: ptr(7)}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[models.Report](t, rec)
	assert.Zero(t, report.Summary.TrendBreaks)

	rec = s.do(http.MethodPost, "/reports", requestBody(t, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	report = decode[models.Report](t, rec)
	assert.Equal(t, 1, report.Summary.TrendBreaks)
}

func TestCSVReport(t *testing.T) {
	s := newTestServer(t)

	var body strings.Builder
	body.WriteString("month,revenue,productivity\n")
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&body, "2024-%02d,%d,100\n", i, 1000+i)
	}

	rec := s.do(http.MethodPost, "/reports/csv", []byte(body.String()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[models.Report](t, rec)
	assert.Equal(t, 12, report.Rows)
	assert.Empty(t, report.Errors)

	// Unknown requested field yields a partial report, not a failure
	rec = s.do(http.MethodPost, "/reports/csv?fields=ebitda", []byte(body.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	report = decode[models.Report](t, rec)
	require.NotEmpty(t, report.Errors)
	assert.Equal(t, "ebitda", report.Errors[0].Field)

	rec = s.do(http.MethodPost, "/reports/csv", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsyncReport(t *testing.T) {
	s := newTestServer(t)
	s.pool.Start(2)

	done := make(chan struct{})
	go func() {
		s.handler.ProcessResults(context.Background())
		close(done)
	}()

	rec := s.do(http.MethodPost, "/reports/async", requestBody(t, nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	accepted := decode[models.JobAccepted](t, rec)
	require.NotEmpty(t, accepted.ID)
	assert.Equal(t, "queued", accepted.Status)

	assert.Eventually(t, func() bool {
		return s.do(http.MethodGet, "/reports/"+accepted.ID, nil).Code == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	s.pool.Stop()
	<-done
}

func TestGetReport_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/reports/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrendBreaks(t *testing.T) {
	s := newTestServer(t)
	body := requestBody(t, nil)

	rec := s.do(http.MethodPost, "/trend-breaks?field=revenue&window=3", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[models.FieldTrendBreaks](t, rec)
	assert.Equal(t, "revenue", result.Field)
	require.Len(t, result.Breaks, 1)
	assert.Equal(t, "2024-07", result.Breaks[0].Period)

	rec = s.do(http.MethodPost, "/trend-breaks", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/trend-breaks?field=revenue&window=x", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/trend-breaks?field=ebitda", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAlertsAndHealthScore(t *testing.T) {
	s := newTestServer(t)
	body := requestBody(t, nil)

	rec := s.do(http.MethodPost, "/alerts", body)
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[struct {
		Count  int            `json:"count"`
		Alerts []models.Alert `json:"alerts"`
	}](t, rec)
	assert.Equal(t, 1, alerts.Count)
	assert.Contains(t, alerts.Alerts[0].Message, "Productivity is below the minimum threshold")

	// (40*0.25 + 60*0.15) / 0.40
	rec = s.do(http.MethodPost, "/health-score", body)
	require.Equal(t, http.StatusOK, rec.Code)
	score := decode[struct {
		HealthScore float64 `json:"health_score"`
		Color       string  `json:"color"`
	}](t, rec)
	assert.InDelta(t, 47.5, score.HealthScore, 1e-9)
	assert.Equal(t, analytics.DefaultPalette().Danger, score.Color)
}

func TestBudgetVariance(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"lines":[
		{"period":"2025-01","category":"energy","actual":125,"budget":100},
		{"period":"2025-01","category":"rent","actual":105,"budget":100},
		{"period":"2025-01","category":"new","actual":10,"budget":0}
	]}`)
	rec := s.do(http.MethodPost, "/budget-variance", body)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[struct {
		Count     int                     `json:"count"`
		Variances []models.BudgetVariance `json:"variances"`
	}](t, rec)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "energy", result.Variances[0].Category)
	assert.Equal(t, models.SeverityCritical, result.Variances[0].Severity)
}

func TestDescribeAndDigest(t *testing.T) {
	s := newTestServer(t)
	body := requestBody(t, nil)

	rec := s.do(http.MethodPost, "/describe", body)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[[]models.FieldStats](t, rec)
	require.Len(t, stats, 3)
	assert.Equal(t, 12, stats[0].Count)

	rec = s.do(http.MethodPost, "/digest", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "Observations: 12")
}

func TestDemoReport(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/reports/demo?months=24", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[models.Report](t, rec)
	assert.Equal(t, 24, report.Rows)
	assert.Positive(t, report.Summary.Total())

	for _, q := range []string{"abc", "1", "1000"} {
		rec = s.do(http.MethodGet, "/reports/demo?months="+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestThresholdsAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/thresholds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[struct {
		Settings   analytics.Settings       `json:"settings"`
		Thresholds analytics.ThresholdTable `json:"thresholds"`
	}](t, rec)
	assert.Equal(t, analytics.DefaultSettings(), cfg.Settings)
	assert.Len(t, cfg.Thresholds, len(analytics.DefaultThresholds()))

	rec = s.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[models.HealthStatus](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Redis)

	noStore := NewHandler(s.pool, nil, zerolog.Nop())
	rec = httptest.NewRecorder()
	noStore.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "disconnected", decode[models.HealthStatus](t, rec).Redis)
}

func ptr[T any](v T) *T {
	return &v
}
