package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"perfdash-service/internal/models"
)

func TestSettings_Validate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.IQRMultiplier = 0
	s.TrendWindow = 1
	s.Contamination = 0.7
	err := s.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "iqr_multiplier")
	assert.Contains(t, err.Error(), "trend_window")
	assert.Contains(t, err.Error(), "contamination")
}

func TestSettings_Apply(t *testing.T) {
	base := DefaultSettings()
	assert.Equal(t, base, base.Apply(nil))

	z := 5.0
	window := 4
	seed := int64(7)
	got := base.Apply(&models.ReportOptions{ZScoreThreshold: &z, TrendWindow: &window, Seed: &seed})

	assert.Equal(t, 5.0, got.ZScoreThreshold)
	// high cutoff never falls below the threshold
	assert.Equal(t, 5.0, got.ZScoreHigh)
	assert.Equal(t, 4, got.TrendWindow)
	assert.Equal(t, int64(7), got.Seed)
	assert.Equal(t, base.IQRMultiplier, got.IQRMultiplier)
	assert.NoError(t, got.Validate())

	// base is a value, untouched by Apply
	assert.Equal(t, DefaultZScoreThreshold, base.ZScoreThreshold)
}

func TestDetector_With(t *testing.T) {
	d := NewDetector()
	s := d.Settings()
	s.TrendWindow = 6

	derived := d.With(WithSettings(s))
	assert.Equal(t, 6, derived.Settings().TrendWindow)
	assert.Equal(t, DefaultTrendWindow, d.Settings().TrendWindow)
	assert.Equal(t, d.Thresholds(), derived.Thresholds())
	assert.Equal(t, DefaultPalette(), derived.Palette())
}
