package analytics

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash-service/internal/models"
)

func TestEvaluateThresholds_BelowMin(t *testing.T) {
	table := newTable(map[string][]float64{"margin": {30, 25, 15}}, "margin")
	d := NewDetector(WithThresholds(ThresholdTable{
		{Indicator: "margin", Min: 20, Max: 100, Unit: "%"},
	}))

	alerts := d.EvaluateThresholds(table)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, models.AlertCritical, a.Level)
	assert.Equal(t, "margin", a.Indicator)
	assert.Equal(t, 15.0, a.Value)
	assert.Equal(t, 20.0, a.Bound)
	assert.Equal(t, "%", a.Unit)
	assert.Contains(t, a.Message, "15.0 < 20")
	assert.Equal(t, DefaultPalette().Danger, a.Color)
}

func TestEvaluateThresholds_AboveMax(t *testing.T) {
	table := newTable(map[string][]float64{"productivity": {151.3}}, "productivity")

	alerts := NewDetector().EvaluateThresholds(table)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertWarning, alerts[0].Level)
	assert.Equal(t, 150.0, alerts[0].Bound)
	assert.Equal(t, "Productivity exceeds the maximum threshold (151.3 > 150)", alerts[0].Message)
	assert.Equal(t, DefaultPalette().Warning, alerts[0].Color)
}

func TestEvaluateThresholds_OnlyLatestRowAndTableOrder(t *testing.T) {
	table := newTable(map[string][]float64{
		"occupancy_rate":    {10, 65},
		"gross_margin_rate": {5, 12.34},
		"net_margin_rate":   {1, 8},
	}, "occupancy_rate", "gross_margin_rate", "net_margin_rate")

	alerts := NewDetector().EvaluateThresholds(table)
	require.Len(t, alerts, 2)
	assert.Equal(t, "gross_margin_rate", alerts[0].Indicator)
	assert.Equal(t, "Gross Margin Rate is below the minimum threshold (12.3 < 20)", alerts[0].Message)
	assert.Equal(t, "occupancy_rate", alerts[1].Indicator)
}

func TestEvaluateThresholds_EmptyAndMissing(t *testing.T) {
	d := NewDetector()
	assert.Empty(t, d.EvaluateThresholds(&models.Table{Fields: []string{"productivity"}}))

	table := newTable(map[string][]float64{"productivity": {50, nan()}}, "productivity")
	assert.Empty(t, d.EvaluateThresholds(table))
}

func TestEvaluateThresholds_UnicodeIndicatorName(t *testing.T) {
	d := NewDetector(WithThresholds(ThresholdTable{{Indicator: "écart_coût", Min: 20, Max: 100, Unit: "%"}}))
	table := newTable(map[string][]float64{"écart_coût": {15}}, "écart_coût")

	alerts := d.EvaluateThresholds(table)
	require.Len(t, alerts, 1)
	assert.True(t, utf8.ValidString(alerts[0].Message))
	assert.Contains(t, alerts[0].Message, "Écart Coût")
	assert.Contains(t, alerts[0].Message, "15.0 < 20")
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Gross Margin Rate", humanize("gross_margin_rate"))
	assert.Equal(t, "Écart", humanize("écart"))
	assert.Equal(t, "Ünit Öl", humanize("ÜNIT_ÖL"))
}

func TestAlertColor(t *testing.T) {
	d := NewDetector()
	p := DefaultPalette()

	assert.Equal(t, p.Danger, d.AlertColor(1, 5, 10))
	assert.Equal(t, p.Warning, d.AlertColor(11, 5, 10))
	assert.Equal(t, p.Success, d.AlertColor(5, 5, 10))
}

func TestThresholdTable_Validate(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
	assert.Error(t, ThresholdTable{{Indicator: "x", Min: 10, Max: 1}}.Validate())
	assert.Error(t, ThresholdTable{{Indicator: "x"}, {Indicator: "y", Field: "x"}}.Validate())
}
