package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash-service/internal/models"
)

func reportTable() *models.Table {
	cols := clusterWithOutlier(30)
	cols["productivity"] = append(repeat(29, 100), 60)
	return newTable(cols, "gross_margin_rate", "occupancy_rate", "productivity")
}

func TestReport_SummaryMatchesCollections(t *testing.T) {
	report, err := NewDetector().Report(reportTable())
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, 30, report.Rows)
	assert.Empty(t, report.Errors)

	assert.Equal(t, len(report.IQROutliers), report.Summary.IQROutliers)
	assert.Equal(t, len(report.ZScoreOutliers), report.Summary.ZScoreOutliers)
	assert.Equal(t, len(report.Multivariate), report.Summary.MultivariateAnomalies)
	assert.Equal(t, len(report.Alerts), report.Summary.Alerts)

	breaks := 0
	for _, group := range report.TrendBreaks {
		assert.NotEmpty(t, group.Breaks)
		breaks += len(group.Breaks)
	}
	assert.Equal(t, breaks, report.Summary.TrendBreaks)

	assert.NotZero(t, report.Summary.IQROutliers)
	assert.NotZero(t, report.Summary.MultivariateAnomalies)

	// productivity 60 < 80 and occupancy 90 is within range
	require.Len(t, report.Alerts, 1)
	assert.Equal(t, "productivity", report.Alerts[0].Indicator)
	assert.GreaterOrEqual(t, report.HealthScore, 0.0)
	assert.LessOrEqual(t, report.HealthScore, 100.0)
}

func TestReport_LimitsTrendFields(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxTrendFields = 1

	report, err := NewDetector(WithSettings(settings)).Report(reportTable())
	require.NoError(t, err)
	for _, group := range report.TrendBreaks {
		assert.Equal(t, "gross_margin_rate", group.Field)
	}
}

func TestReport_MissingFieldKeepsPartialReport(t *testing.T) {
	report, err := NewDetector().Report(reportTable(), "productivity", "ebitda")
	require.NoError(t, err)

	require.NotEmpty(t, report.Errors)
	detectors := map[string]bool{}
	for _, e := range report.Errors {
		assert.Equal(t, "ebitda", e.Field)
		detectors[e.Detector] = true
	}
	assert.True(t, detectors["iqr"])
	assert.True(t, detectors["zscore"])
	assert.True(t, detectors["multivariate"])
	assert.True(t, detectors["trend"])

	assert.Len(t, report.Alerts, 1)
	assert.Equal(t, 0, report.Summary.IQROutliers)
}

func TestReport_EmptyTable(t *testing.T) {
	report, err := NewDetector().Report(&models.Table{Fields: []string{"revenue"}})
	require.NoError(t, err)

	assert.Equal(t, 0, report.Summary.Total())
	assert.Equal(t, NeutralHealthScore, report.HealthScore)
}

func TestReport_InvalidTable(t *testing.T) {
	table := &models.Table{
		Fields: []string{"revenue"},
		Rows: []models.Row{
			{Period: "2024-02", Values: map[string]float64{"revenue": 1}},
			{Period: "2024-01", Values: map[string]float64{"revenue": 2}},
		},
	}

	_, err := NewDetector().Report(table)
	assert.ErrorIs(t, err, models.ErrInvalidTable)
}

func TestReport_Sections(t *testing.T) {
	report, err := NewDetector().Report(reportTable())
	require.NoError(t, err)

	sections := report.Sections()
	require.Len(t, sections, 6)
	for _, s := range sections {
		for _, rec := range s.Records {
			assert.Len(t, rec, len(s.Header), s.Name)
		}
	}
	assert.Equal(t, "summary", sections[5].Name)
	assert.Len(t, sections[4].Records, report.Summary.Alerts)
}

func BenchmarkReport(b *testing.B) {
	d := NewDetector()
	table := reportTable()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Report(table)
	}
}
