// Package isoforest реализует isolation forest - ансамбль случайных
// деревьев изоляции для многомерной детекции аномалий без учителя.
package isoforest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const eulerGamma = 0.5772156649015329

var (
	// ErrNoSamples возвращается при обучении на пустом наборе
	ErrNoSamples = errors.New("isoforest: no samples")
	// ErrRaggedInput возвращается, если строки имеют разную длину
	ErrRaggedInput = errors.New("isoforest: rows have different lengths")
)

// Config параметры леса
type Config struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          int64
}

// DefaultConfig 100 деревьев, до 256 объектов на дерево, доля аномалий 0.1, seed 42
func DefaultConfig() Config {
	return Config{Trees: 100, MaxSamples: 256, Contamination: 0.1, Seed: 42}
}

type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node
	size      int
}

func (n *node) leaf() bool {
	return n.left == nil
}

// Forest обученный лес изоляции. Каждый Fit пересоздает генератор
// случайных чисел из Seed, поэтому результат детерминирован.
type Forest struct {
	cfg    Config
	trees  []*node
	psi    int
	offset float64
	rng    *rand.Rand
}

// New создает необученный лес
func New(cfg Config) *Forest {
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MaxSamples <= 1 {
		cfg.MaxSamples = 256
	}
	return &Forest{cfg: cfg}
}

// Fit строит деревья и вычисляет порог offset по доле аномалий
func (f *Forest) Fit(x [][]float64) error {
	if err := checkInput(x); err != nil {
		return err
	}

	f.rng = rand.New(rand.NewSource(f.cfg.Seed))
	f.psi = f.cfg.MaxSamples
	if len(x) < f.psi {
		f.psi = len(x)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(f.psi))))

	f.trees = make([]*node, f.cfg.Trees)
	for i := range f.trees {
		idx := f.rng.Perm(len(x))[:f.psi]
		sample := make([][]float64, f.psi)
		for j, k := range idx {
			sample[j] = x[k]
		}
		f.trees[i] = f.grow(sample, 0, heightLimit)
	}

	scores := f.ScoreSamples(x)
	f.offset = percentile(scores, 100*f.cfg.Contamination)
	return nil
}

func (f *Forest) grow(sample [][]float64, depth, limit int) *node {
	if depth >= limit || len(sample) <= 1 {
		return &node{size: len(sample)}
	}

	var candidates []int
	mins := make([]float64, len(sample[0]))
	maxs := make([]float64, len(sample[0]))
	for j := range mins {
		mins[j], maxs[j] = sample[0][j], sample[0][j]
		for _, row := range sample[1:] {
			mins[j] = math.Min(mins[j], row[j])
			maxs[j] = math.Max(maxs[j], row[j])
		}
		if maxs[j] > mins[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &node{size: len(sample)}
	}

	feature := candidates[f.rng.Intn(len(candidates))]
	threshold := mins[feature] + f.rng.Float64()*(maxs[feature]-mins[feature])
	if threshold >= maxs[feature] {
		threshold = mins[feature]
	}

	var left, right [][]float64
	for _, row := range sample {
		if row[feature] <= threshold {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      f.grow(left, depth+1, limit),
		right:     f.grow(right, depth+1, limit),
		size:      len(sample),
	}
}

// ScoreSamples возвращает -2^(-E[h(x)]/c(psi)): чем меньше, тем аномальнее
func (f *Forest) ScoreSamples(x [][]float64) []float64 {
	scores := make([]float64, len(x))
	norm := averagePathLength(f.psi)
	if norm == 0 {
		norm = 1
	}
	for i, row := range x {
		var total float64
		for _, tree := range f.trees {
			total += pathLength(tree, row)
		}
		avg := total / float64(len(f.trees))
		scores[i] = -math.Pow(2, -avg/norm)
	}
	return scores
}

// DecisionFunction возвращает ScoreSamples - offset: отрицательные значения - аномалии
func (f *Forest) DecisionFunction(x [][]float64) []float64 {
	scores := f.ScoreSamples(x)
	for i := range scores {
		scores[i] -= f.offset
	}
	return scores
}

// FitPredict обучает лес и возвращает метки и значения решающей функции
func (f *Forest) FitPredict(x [][]float64) ([]int, []float64, error) {
	if err := f.Fit(x); err != nil {
		return nil, nil, err
	}
	decision := f.DecisionFunction(x)
	return labels(decision), decision, nil
}

func labels(decision []float64) []int {
	out := make([]int, len(decision))
	for i, d := range decision {
		if d < 0 {
			out[i] = -1
		} else {
			out[i] = 1
		}
	}
	return out
}

func pathLength(n *node, row []float64) float64 {
	depth := 0.0
	for !n.leaf() {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return depth + averagePathLength(n.size)
}

// averagePathLength средняя длина пути неуспешного поиска в BST из n элементов
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func checkInput(x [][]float64) error {
	if len(x) == 0 || len(x[0]) == 0 {
		return ErrNoSamples
	}
	for i, row := range x {
		if len(row) != len(x[0]) {
			return fmt.Errorf("%w: row %d has %d columns, expected %d", ErrRaggedInput, i, len(row), len(x[0]))
		}
	}
	return nil
}
