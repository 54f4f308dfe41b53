// Package analytics реализует движок детекции аномалий по периодическим
// финансовым и операционным рядам: IQR и z-score выбросы, многомерный
// isolation forest, разрывы тренда, пороговые алерты и интегральную оценку здоровья.
package analytics

import (
	"github.com/rs/zerolog"
)

// Detector неизменяемая конфигурация детекторов.
// Все методы только читают таблицу и безопасны для параллельного вызова;
// модель isolation forest создается заново на каждый вызов.
type Detector struct {
	settings   Settings
	thresholds ThresholdTable
	weights    WeightTable
	palette    Palette
	logger     zerolog.Logger
}

// Option настраивает Detector
type Option func(*Detector)

// WithSettings задает пороги детекторов
func WithSettings(s Settings) Option {
	return func(d *Detector) { d.settings = s }
}

// WithThresholds задает таблицу порогов алертов
func WithThresholds(t ThresholdTable) Option {
	return func(d *Detector) { d.thresholds = t }
}

// WithWeights задает веса интегральной оценки
func WithWeights(w WeightTable) Option {
	return func(d *Detector) { d.weights = w }
}

// WithPalette задает цвета статусов
func WithPalette(p Palette) Option {
	return func(d *Detector) { d.palette = p }
}

// WithLogger задает логгер для ошибок отдельных детекторов
func WithLogger(l zerolog.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// NewDetector создает детектор с настройками по умолчанию и переданными опциями
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		settings:   DefaultSettings(),
		thresholds: DefaultThresholds(),
		weights:    DefaultWeights(),
		palette:    DefaultPalette(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Settings возвращает копию настроек
func (d *Detector) Settings() Settings {
	return d.settings
}

// Thresholds возвращает копию таблицы порогов
func (d *Detector) Thresholds() ThresholdTable {
	out := make(ThresholdTable, len(d.thresholds))
	copy(out, d.thresholds)
	return out
}

// Weights возвращает копию таблицы весов
func (d *Detector) Weights() WeightTable {
	out := make(WeightTable, len(d.weights))
	copy(out, d.weights)
	return out
}

// With возвращает копию детектора с дополнительными опциями
func (d *Detector) With(opts ...Option) *Detector {
	clone := *d
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

// Palette возвращает палитру статусов
func (d *Detector) Palette() Palette {
	return d.palette
}
