package isoforest

import "math"

// Scaler стандартизирует колонки к нулевому среднему и единичной дисперсии.
// Параметры подбираются и применяются в рамках одного вызова FitTransform.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitTransform вычисляет среднее и генеральное отклонение каждой колонки
// и возвращает стандартизированную копию данных.
// Колонки с нулевым отклонением только центрируются.
func (s *Scaler) FitTransform(x [][]float64) [][]float64 {
	if len(x) == 0 {
		s.Mean, s.Scale = nil, nil
		return nil
	}
	cols := len(x[0])
	n := float64(len(x))

	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)
	for _, row := range x {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Scale[j] += d * d
		}
	}
	for j := range s.Scale {
		s.Scale[j] = math.Sqrt(s.Scale[j] / n)
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}

	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = make([]float64, cols)
		for j, v := range row {
			out[i][j] = (v - s.Mean[j]) / s.Scale[j]
		}
	}
	return out
}
