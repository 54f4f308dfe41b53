package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash-service/internal/analytics"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10000, cfg.Server.RateClients)
	assert.Equal(t, analytics.DefaultSettings(), cfg.Detection)
	assert.Equal(t, analytics.DefaultThresholds(), cfg.Thresholds)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9090"
redis:
  report_ttl: 30m
detection:
  zscore_threshold: 2.5
  zscore_high: 3.5
  trend_window: 4
thresholds:
  - indicator: margin
    min: 20
    max: 100
    unit: "%"
weights:
  - indicator: margin
    weight: 1
    scale: percent
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Redis.ReportTTL)
	assert.Equal(t, 2.5, cfg.Detection.ZScoreThreshold)
	assert.Equal(t, 4, cfg.Detection.TrendWindow)
	// keys absent from the file keep their defaults
	assert.Equal(t, analytics.DefaultContamination, cfg.Detection.Contamination)
	require.Len(t, cfg.Thresholds, 1)
	assert.Equal(t, "margin", cfg.Thresholds[0].Column())
	require.Len(t, cfg.Weights, 1)
	assert.Equal(t, analytics.ScalePercent, cfg.Weights[0].Scale)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("REPORT_TTL", "5m")
	t.Setenv("RATE_LIMIT", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 2, cfg.Workers.Count)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ReportTTL)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detection:\n  contamination: 0.9\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("weights: [oops"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestConfig_LevelAndDetector(t *testing.T) {
	cfg := Default()
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())

	cfg.LogLevel = "debug"
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())

	cfg.LogLevel = "loud"
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())

	cfg.Detection.ZScoreThreshold = 2.5
	cfg.Thresholds = analytics.ThresholdTable{{Indicator: "margin", Min: 10, Max: 90, Unit: "%"}}
	d := cfg.NewDetector(zerolog.Nop())
	assert.Equal(t, 2.5, d.Settings().ZScoreThreshold)
	assert.Equal(t, cfg.Thresholds, d.Thresholds())
	assert.Equal(t, cfg.Palette, d.Palette())
}
