package isoforest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridWithOutlier returns a 10x5 grid with 0.1 spacing plus one far point at the end.
func gridWithOutlier() [][]float64 {
	x := make([][]float64, 0, 51)
	for i := 0; i < 50; i++ {
		x = append(x, []float64{float64(i%10) * 0.1, float64(i/10) * 0.1})
	}
	return append(x, []float64{10, 10})
}

func TestForest_FlagsOutlier(t *testing.T) {
	x := gridWithOutlier()
	f := New(DefaultConfig())

	labels, decision, err := f.FitPredict(x)
	require.NoError(t, err)
	require.Len(t, labels, len(x))

	last := len(x) - 1
	assert.Equal(t, -1, labels[last])
	for i := 0; i < last; i++ {
		assert.Less(t, decision[last], decision[i], "outlier should have the lowest decision value")
	}

	flagged := 0
	for _, l := range labels {
		if l == -1 {
			flagged++
		}
	}
	// contamination 0.1 of 51 rows
	assert.GreaterOrEqual(t, flagged, 1)
	assert.LessOrEqual(t, flagged, 6)
}

func TestForest_Deterministic(t *testing.T) {
	x := gridWithOutlier()

	_, first, err := New(DefaultConfig()).FitPredict(x)
	require.NoError(t, err)

	f := New(DefaultConfig())
	_, second, err := f.FitPredict(x)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Refit on the same forest reseeds the generator
	_, third, err := f.FitPredict(x)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestForest_ScoreRange(t *testing.T) {
	x := gridWithOutlier()
	f := New(DefaultConfig())
	require.NoError(t, f.Fit(x))

	for _, s := range f.ScoreSamples(x) {
		assert.GreaterOrEqual(t, s, -1.0)
		assert.Less(t, s, 0.0)
	}

	scores := f.ScoreSamples(x)
	decision := f.DecisionFunction(x)
	for i := range decision {
		assert.InDelta(t, scores[i]-f.offset, decision[i], 1e-12)
	}
}

func TestForest_IdenticalRows(t *testing.T) {
	x := make([][]float64, 20)
	for i := range x {
		x[i] = []float64{1, 2}
	}

	labels, decision, err := New(DefaultConfig()).FitPredict(x)
	require.NoError(t, err)
	for i := range x {
		assert.Equal(t, 1, labels[i])
		assert.Zero(t, decision[i])
	}
}

func TestForest_InvalidInput(t *testing.T) {
	f := New(DefaultConfig())

	assert.ErrorIs(t, f.Fit(nil), ErrNoSamples)
	assert.ErrorIs(t, f.Fit([][]float64{{}}), ErrNoSamples)
	assert.ErrorIs(t, f.Fit([][]float64{{1, 2}, {3}}), ErrRaggedInput)
}

func TestNew_FallsBackToDefaults(t *testing.T) {
	f := New(Config{Contamination: 0.1})
	assert.Equal(t, 100, f.cfg.Trees)
	assert.Equal(t, 256, f.cfg.MaxSamples)
}

func TestAveragePathLength(t *testing.T) {
	assert.Zero(t, averagePathLength(0))
	assert.Zero(t, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.2448, averagePathLength(256), 1e-3)
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.InDelta(t, 2.5, percentile(values, 50), 1e-12)
	assert.InDelta(t, 1.3, percentile(values, 10), 1e-12)
	assert.Equal(t, 4.0, percentile(values, 100))
	assert.Equal(t, []float64{4, 1, 3, 2}, values, "input must not be reordered")
}
