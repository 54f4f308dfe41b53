package analytics

import "math"

// SlidingWindow скользящее окно фиксированного размера для rolling-статистик
type SlidingWindow struct {
	values []float64
	size   int
	index  int
	count  int
	sum    float64
}

// NewSlidingWindow создает новое скользящее окно заданного размера
func NewSlidingWindow(size int) *SlidingWindow {
	if size < 1 {
		size = 1
	}
	return &SlidingWindow{
		values: make([]float64, size),
		size:   size,
	}
}

// Add добавляет новое значение в окно, вытесняя самое старое
func (sw *SlidingWindow) Add(value float64) {
	if sw.count >= sw.size {
		sw.sum -= sw.values[sw.index]
	} else {
		sw.count++
	}

	sw.values[sw.index] = value
	sw.sum += value

	sw.index = (sw.index + 1) % sw.size
}

// Full сообщает, заполнено ли окно целиком
func (sw *SlidingWindow) Full() bool {
	return sw.count == sw.size
}

// Mean возвращает среднее значение (rolling average)
func (sw *SlidingWindow) Mean() float64 {
	if sw.count == 0 {
		return 0
	}
	return sw.sum / float64(sw.count)
}

// StdDev возвращает выборочное стандартное отклонение (n-1).
// Дисперсия считается в два прохода по окну: на больших значениях
// (выручка, затраты) формула через сумму квадратов теряет точность.
// Для постоянного окна отклонение строго 0.
func (sw *SlidingWindow) StdDev() float64 {
	if sw.count < 2 {
		return 0
	}
	lo, hi := sw.values[0], sw.values[0]
	for i := 1; i < sw.count; i++ {
		lo = math.Min(lo, sw.values[i])
		hi = math.Max(hi, sw.values[i])
	}
	if lo == hi {
		return 0
	}
	m := sw.Mean()
	var ss float64
	for i := 0; i < sw.count; i++ {
		d := sw.values[i] - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(sw.count-1))
}

// ZScore вычисляет z-score значения относительно окна, 0 при нулевом отклонении
func (sw *SlidingWindow) ZScore(value float64) float64 {
	stdDev := sw.StdDev()
	if stdDev == 0 {
		return 0
	}
	return (value - sw.Mean()) / stdDev
}
