package analytics

import (
	"fmt"
	"math"

	"perfdash-service/internal/models"
)

// newTable builds a monthly table; NaN marks a missing value.
func newTable(columns map[string][]float64, order ...string) *models.Table {
	t := &models.Table{Fields: order}
	n := 0
	for _, col := range columns {
		if len(col) > n {
			n = len(col)
		}
	}
	for i := 0; i < n; i++ {
		row := models.Row{
			Period: fmt.Sprintf("%04d-%02d", 2023+i/12, i%12+1),
			Values: map[string]float64{},
		}
		for name, col := range columns {
			if i < len(col) && !math.IsNaN(col[i]) {
				row.Values[name] = col[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// spikeSeries returns 10x10, 10x11 interleaved plus a single 100 at position pos.
func spikeSeries(pos int) []float64 {
	out := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		out = append(out, 10+float64(i%2))
	}
	out = append(out[:pos], append([]float64{100}, out[pos:]...)...)
	return out
}

func repeat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func nan() float64 {
	return math.NaN()
}
