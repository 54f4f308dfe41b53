package analytics

import (
	"errors"
	"fmt"

	"perfdash-service/internal/models"
)

// Значения по умолчанию для порогов детекторов
const (
	DefaultIQRMultiplier    = 1.5
	DefaultIQRHighSigma     = 3.0
	DefaultZScoreThreshold  = 3.0
	DefaultZScoreHigh       = 4.0
	DefaultTrendWindow      = 3
	DefaultTrendThreshold   = 2.5
	DefaultTrendHigh        = 3.5
	DefaultContamination    = 0.1
	DefaultSeed             = 42
	DefaultTrees            = 100
	DefaultMaxSamples       = 256
	DefaultForestHighCutoff = -0.3
	DefaultMinRows          = 10
	DefaultMinFields        = 2
	DefaultMaxTrendFields   = 5

	// NeutralHealthScore возвращается, когда оценить здоровье не по чему
	NeutralHealthScore = 50.0
)

// Settings пороги и параметры всех детекторов
type Settings struct {
	IQRMultiplier    float64 `yaml:"iqr_multiplier" json:"iqr_multiplier"`
	IQRHighSigma     float64 `yaml:"iqr_high_sigma" json:"iqr_high_sigma"`
	ZScoreThreshold  float64 `yaml:"zscore_threshold" json:"zscore_threshold"`
	ZScoreHigh       float64 `yaml:"zscore_high" json:"zscore_high"`
	TrendWindow      int     `yaml:"trend_window" json:"trend_window"`
	TrendThreshold   float64 `yaml:"trend_threshold" json:"trend_threshold"`
	TrendHigh        float64 `yaml:"trend_high" json:"trend_high"`
	Contamination    float64 `yaml:"contamination" json:"contamination"`
	Seed             int64   `yaml:"seed" json:"seed"`
	Trees            int     `yaml:"trees" json:"trees"`
	MaxSamples       int     `yaml:"max_samples" json:"max_samples"`
	ForestHighCutoff float64 `yaml:"forest_high_cutoff" json:"forest_high_cutoff"`
	MinRows          int     `yaml:"min_rows" json:"min_rows"`
	MinFields        int     `yaml:"min_fields" json:"min_fields"`
	MaxTrendFields   int     `yaml:"max_trend_fields" json:"max_trend_fields"`
}

// DefaultSettings возвращает настройки по умолчанию
func DefaultSettings() Settings {
	return Settings{
		IQRMultiplier:    DefaultIQRMultiplier,
		IQRHighSigma:     DefaultIQRHighSigma,
		ZScoreThreshold:  DefaultZScoreThreshold,
		ZScoreHigh:       DefaultZScoreHigh,
		TrendWindow:      DefaultTrendWindow,
		TrendThreshold:   DefaultTrendThreshold,
		TrendHigh:        DefaultTrendHigh,
		Contamination:    DefaultContamination,
		Seed:             DefaultSeed,
		Trees:            DefaultTrees,
		MaxSamples:       DefaultMaxSamples,
		ForestHighCutoff: DefaultForestHighCutoff,
		MinRows:          DefaultMinRows,
		MinFields:        DefaultMinFields,
		MaxTrendFields:   DefaultMaxTrendFields,
	}
}

// Validate проверяет согласованность настроек
func (s Settings) Validate() error {
	var errs []error
	if s.IQRMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("iqr_multiplier must be positive, got %v", s.IQRMultiplier))
	}
	if s.ZScoreThreshold <= 0 || s.ZScoreHigh < s.ZScoreThreshold {
		errs = append(errs, fmt.Errorf("zscore thresholds must satisfy 0 < threshold <= high, got %v/%v",
			s.ZScoreThreshold, s.ZScoreHigh))
	}
	if s.TrendWindow < 2 {
		errs = append(errs, fmt.Errorf("trend_window must be at least 2, got %d", s.TrendWindow))
	}
	if s.TrendThreshold <= 0 || s.TrendHigh < s.TrendThreshold {
		errs = append(errs, fmt.Errorf("trend thresholds must satisfy 0 < threshold <= high, got %v/%v",
			s.TrendThreshold, s.TrendHigh))
	}
	if s.Contamination <= 0 || s.Contamination > 0.5 {
		errs = append(errs, fmt.Errorf("contamination must be in (0, 0.5], got %v", s.Contamination))
	}
	if s.Trees <= 0 || s.MaxSamples <= 1 {
		errs = append(errs, fmt.Errorf("forest needs trees > 0 and max_samples > 1, got %d/%d", s.Trees, s.MaxSamples))
	}
	if s.MinRows < 2 || s.MinFields < 1 {
		errs = append(errs, fmt.Errorf("min_rows must be >= 2 and min_fields >= 1, got %d/%d", s.MinRows, s.MinFields))
	}
	if s.MaxTrendFields < 0 {
		errs = append(errs, fmt.Errorf("max_trend_fields must not be negative, got %d", s.MaxTrendFields))
	}
	return errors.Join(errs...)
}

// Apply накладывает переопределения запроса на настройки
func (s Settings) Apply(o *models.ReportOptions) Settings {
	if o == nil {
		return s
	}
	if o.IQRMultiplier != nil {
		s.IQRMultiplier = *o.IQRMultiplier
	}
	if o.ZScoreThreshold != nil {
		s.ZScoreThreshold = *o.ZScoreThreshold
		if s.ZScoreHigh < s.ZScoreThreshold {
			s.ZScoreHigh = s.ZScoreThreshold
		}
	}
	if o.TrendWindow != nil {
		s.TrendWindow = *o.TrendWindow
	}
	if o.TrendThreshold != nil {
		s.TrendThreshold = *o.TrendThreshold
		if s.TrendHigh < s.TrendThreshold {
			s.TrendHigh = s.TrendThreshold
		}
	}
	if o.Contamination != nil {
		s.Contamination = *o.Contamination
	}
	if o.Seed != nil {
		s.Seed = *o.Seed
	}
	return s
}

// ThresholdRule допустимый диапазон показателя.
// Field - имя колонки в таблице, по умолчанию совпадает с Indicator.
type ThresholdRule struct {
	Indicator string  `yaml:"indicator" json:"indicator"`
	Field     string  `yaml:"field,omitempty" json:"field,omitempty"`
	Min       float64 `yaml:"min" json:"min"`
	Max       float64 `yaml:"max" json:"max"`
	Unit      string  `yaml:"unit" json:"unit"`
}

// Column возвращает имя колонки, по которой проверяется правило
func (r ThresholdRule) Column() string {
	if r.Field != "" {
		return r.Field
	}
	return r.Indicator
}

// ThresholdTable упорядоченная таблица порогов, порядок задает порядок алертов
type ThresholdTable []ThresholdRule

// DefaultThresholds пороги алертов для KPI
func DefaultThresholds() ThresholdTable {
	return ThresholdTable{
		{Indicator: "gross_margin", Field: "gross_margin_rate", Min: 20, Max: 100, Unit: "%"},
		{Indicator: "net_margin", Field: "net_margin_rate", Min: 5, Max: 100, Unit: "%"},
		{Indicator: "revenue_growth", Min: -5, Max: 100, Unit: "%"},
		{Indicator: "debt_ratio", Min: 0, Max: 60, Unit: "%"},
		{Indicator: "customer_payment_days", Min: 0, Max: 60, Unit: "days"},
		{Indicator: "supplier_payment_days", Min: 0, Max: 90, Unit: "days"},
		{Indicator: "inventory_turnover", Min: 4, Max: 52, Unit: "times/year"},
		{Indicator: "occupancy_rate", Min: 70, Max: 100, Unit: "%"},
		{Indicator: "productivity", Min: 80, Max: 150, Unit: "%"},
	}
}

// Validate проверяет, что min не больше max и колонки не повторяются
func (t ThresholdTable) Validate() error {
	seen := make(map[string]struct{}, len(t))
	for _, r := range t {
		if r.Indicator == "" {
			return errors.New("threshold rule without indicator")
		}
		if r.Min > r.Max {
			return fmt.Errorf("threshold %q: min %v exceeds max %v", r.Indicator, r.Min, r.Max)
		}
		if _, dup := seen[r.Column()]; dup {
			return fmt.Errorf("threshold column %q declared twice", r.Column())
		}
		seen[r.Column()] = struct{}{}
	}
	return nil
}

// Scale способ перевода значения показателя в оценку 0-100
type Scale string

const (
	// ScalePercent значение уже в процентах, обрезается до [0,100]
	ScalePercent Scale = "percent"
	// ScaleTenPoint оценка по десятибалльной шкале, умножается на 10
	ScaleTenPoint Scale = "ten_point"
	// ScaleNeutral показатель учитывается с нейтральной оценкой 50
	ScaleNeutral Scale = "neutral"
)

// Weight вес показателя в интегральной оценке здоровья
type Weight struct {
	Indicator string  `yaml:"indicator" json:"indicator"`
	Weight    float64 `yaml:"weight" json:"weight"`
	Scale     Scale   `yaml:"scale" json:"scale"`
}

// WeightTable упорядоченная таблица весов
type WeightTable []Weight

// DefaultWeights веса интегральной оценки по умолчанию
func DefaultWeights() WeightTable {
	return WeightTable{
		{Indicator: "gross_margin_rate", Weight: 0.25, Scale: ScalePercent},
		{Indicator: "net_margin_rate", Weight: 0.25, Scale: ScalePercent},
		{Indicator: "occupancy_rate", Weight: 0.15, Scale: ScalePercent},
		{Indicator: "productivity", Weight: 0.15, Scale: ScalePercent},
		{Indicator: "service_rate", Weight: 0.10, Scale: ScalePercent},
		{Indicator: "customer_satisfaction", Weight: 0.10, Scale: ScaleTenPoint},
	}
}

// Validate запрещает отрицательные веса
func (t WeightTable) Validate() error {
	for _, w := range t {
		if w.Weight < 0 {
			return fmt.Errorf("weight for %q must not be negative, got %v", w.Indicator, w.Weight)
		}
		switch w.Scale {
		case ScalePercent, ScaleTenPoint, ScaleNeutral, "":
		default:
			return fmt.Errorf("weight for %q has unknown scale %q", w.Indicator, w.Scale)
		}
	}
	return nil
}

// Palette цвета статусов дашборда
type Palette struct {
	Primary string `yaml:"primary" json:"primary"`
	Success string `yaml:"success" json:"success"`
	Warning string `yaml:"warning" json:"warning"`
	Danger  string `yaml:"danger" json:"danger"`
	Info    string `yaml:"info" json:"info"`
	Grey    string `yaml:"grey" json:"grey"`
}

// DefaultPalette палитра по умолчанию
func DefaultPalette() Palette {
	return Palette{
		Primary: "#1f77b4",
		Success: "#2ecc71",
		Warning: "#f39c12",
		Danger:  "#e74c3c",
		Info:    "#3498db",
		Grey:    "#95a5a6",
	}
}
