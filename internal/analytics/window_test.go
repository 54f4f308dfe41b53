package analytics

import (
	"math"
	"testing"
)

func TestSlidingWindow_Add(t *testing.T) {
	sw := NewSlidingWindow(5)

	values := []float64{10, 20, 30, 40, 50}
	for i, v := range values {
		if sw.Full() {
			t.Errorf("Window must not be full after %d values", i)
		}
		sw.Add(v)
	}

	if !sw.Full() {
		t.Error("Expected window to be full")
	}

	expectedMean := 30.0
	if math.Abs(sw.Mean()-expectedMean) > 0.001 {
		t.Errorf("Expected mean %.2f, got %.2f", expectedMean, sw.Mean())
	}
}

func TestSlidingWindow_RollingBehavior(t *testing.T) {
	sw := NewSlidingWindow(3)

	sw.Add(10)
	sw.Add(20)
	sw.Add(30)

	if math.Abs(sw.Mean()-20.0) > 0.001 {
		t.Errorf("Expected mean 20, got %.2f", sw.Mean())
	}

	// Add another value, should push out 10
	sw.Add(40)

	if math.Abs(sw.Mean()-30.0) > 0.001 {
		t.Errorf("Expected mean 30, got %.2f", sw.Mean())
	}
	if math.Abs(sw.StdDev()-10.0) > 0.001 {
		t.Errorf("Expected stddev 10, got %.4f", sw.StdDev())
	}
}

func TestSlidingWindow_StdDev(t *testing.T) {
	sw := NewSlidingWindow(5)

	for i := 0; i < 5; i++ {
		sw.Add(0.1)
	}
	if sw.StdDev() != 0 {
		t.Errorf("Expected stddev 0 for identical values, got %v", sw.StdDev())
	}

	sw2 := NewSlidingWindow(5)
	for _, v := range []float64{2, 4, 4, 4, 5} {
		sw2.Add(v)
	}

	// sample stddev of [2,4,4,4,5] = sqrt(5.2/4)
	if math.Abs(sw2.StdDev()-math.Sqrt(1.3)) > 1e-9 {
		t.Errorf("Expected stddev %.4f, got %.4f", math.Sqrt(1.3), sw2.StdDev())
	}
}

func TestSlidingWindow_ZScore(t *testing.T) {
	sw := NewSlidingWindow(3)
	for _, v := range []float64{98, 101, 99} {
		sw.Add(v)
	}

	z := sw.ZScore(150)
	if z < DefaultTrendHigh {
		t.Errorf("Expected z-score above %.1f, got %.2f", DefaultTrendHigh, z)
	}

	flat := NewSlidingWindow(3)
	for i := 0; i < 3; i++ {
		flat.Add(50)
	}
	if flat.ZScore(100) != 0 {
		t.Errorf("Expected zero z-score for flat window, got %.2f", flat.ZScore(100))
	}
}

func BenchmarkSlidingWindowAdd(b *testing.B) {
	sw := NewSlidingWindow(DefaultTrendWindow)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sw.Add(float64(i % 100))
	}
}
