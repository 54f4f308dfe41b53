// Package dataset поставляет таблицы наблюдений: синтетические ряды для демо,
// загрузку из CSV и текстовый дайджест для внешнего сервиса комментариев.
package dataset

import (
	"math"
	"math/rand"
	"time"

	"perfdash-service/internal/models"
)

// DefaultSeed seed генераторов синтетических данных
const DefaultSeed = 42

// Поля финансовой таблицы
const (
	FieldRevenue         = "revenue"
	FieldVariableCosts   = "variable_costs"
	FieldFixedCosts      = "fixed_costs"
	FieldGrossMargin     = "gross_margin"
	FieldOperatingResult = "operating_result"
	FieldGrossMarginRate = "gross_margin_rate"
	FieldNetMarginRate   = "net_margin_rate"
)

// Поля операционной таблицы
const (
	FieldOccupancyRate        = "occupancy_rate"
	FieldDeliveryDays         = "delivery_days"
	FieldServiceRate          = "service_rate"
	FieldInventoryTurnover    = "inventory_turnover"
	FieldScrapRate            = "scrap_rate"
	FieldCustomerSatisfaction = "customer_satisfaction"
	FieldProductivity         = "productivity"
)

// anomalyRows строки с искусственным перерасходом переменных затрат
var anomalyRows = []int{5, 14, 20}

// monthPeriods возвращает months периодов вида 2006-01, последний - месяц end
func monthPeriods(months int, end time.Time) []string {
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, months)
	for i := 0; i < months; i++ {
		out[i] = last.AddDate(0, i-months+1, 0).Format("2006-01")
	}
	return out
}

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// GenerateFinancial моделирует выручку с трендом, сезонностью и шумом,
// переменные и постоянные затраты и маржу. В строки 5, 14 и 20 заложен
// перерасход переменных затрат на 25%.
func GenerateFinancial(months int, end time.Time, seed int64) *models.Table {
	if months <= 0 {
		return &models.Table{}
	}
	rng := rand.New(rand.NewSource(seed))
	normal := func(sigma float64) float64 { return rng.NormFloat64() * sigma }

	const baseRevenue = 500000.0
	trend := linspace(0, 0.3, months)
	fixedTrend := linspace(0, 0.1, months)

	revenue := make([]float64, months)
	variable := make([]float64, months)
	fixed := make([]float64, months)
	for i := 0; i < months; i++ {
		season := 0.15 * math.Sin(2*math.Pi*float64(i)/12)
		revenue[i] = baseRevenue * (1 + trend[i] + season + normal(0.05))
	}
	for i := 0; i < months; i++ {
		variable[i] = revenue[i] * (0.45 + normal(0.03))
	}
	for i := 0; i < months; i++ {
		fixed[i] = 150000 * (1 + fixedTrend[i] + normal(0.02))
	}

	gross := make([]float64, months)
	operating := make([]float64, months)
	for i := range revenue {
		gross[i] = revenue[i] - variable[i]
		operating[i] = gross[i] - fixed[i]
	}
	for _, i := range anomalyRows {
		if i < months {
			variable[i] *= 1.25
			operating[i] = gross[i] - fixed[i] - (variable[i] - revenue[i]*0.45)
		}
	}

	t := &models.Table{Fields: []string{
		FieldRevenue, FieldVariableCosts, FieldFixedCosts, FieldGrossMargin,
		FieldOperatingResult, FieldGrossMarginRate, FieldNetMarginRate,
	}}
	for i, period := range monthPeriods(months, end) {
		t.Rows = append(t.Rows, models.Row{
			Period: period,
			Values: map[string]float64{
				FieldRevenue:         round(revenue[i], 2),
				FieldVariableCosts:   round(variable[i], 2),
				FieldFixedCosts:      round(fixed[i], 2),
				FieldGrossMargin:     round(gross[i], 2),
				FieldOperatingResult: round(operating[i], 2),
				FieldGrossMarginRate: round(gross[i]/revenue[i]*100, 2),
				FieldNetMarginRate:   round(operating[i]/revenue[i]*100, 2),
			},
		})
	}
	return t
}

// GenerateOperational моделирует операционные KPI с медленным трендом и шумом
func GenerateOperational(months int, end time.Time, seed int64) *models.Table {
	if months <= 0 {
		return &models.Table{}
	}
	rng := rand.New(rand.NewSource(seed))
	normal := func(sigma float64) float64 { return rng.NormFloat64() * sigma }

	t := &models.Table{Fields: []string{
		FieldOccupancyRate, FieldDeliveryDays, FieldServiceRate, FieldInventoryTurnover,
		FieldScrapRate, FieldCustomerSatisfaction, FieldProductivity,
	}}
	for i, period := range monthPeriods(months, end) {
		fi := float64(i)
		t.Rows = append(t.Rows, models.Row{
			Period: period,
			Values: map[string]float64{
				FieldOccupancyRate:        round(clamp(82+fi*0.3+normal(5), 60, 100), 2),
				FieldDeliveryDays:         round(math.Max(1, 5+normal(1.5)), 1),
				FieldServiceRate:          round(clamp(96+normal(2), 85, 100), 2),
				FieldInventoryTurnover:    round(math.Max(2, 8+normal(1)), 2),
				FieldScrapRate:            round(math.Max(0, 2.5+normal(0.8)), 2),
				FieldCustomerSatisfaction: round(clamp(7.8+fi*0.02+normal(0.3), 5, 10), 1),
				FieldProductivity:         round(100+normal(8), 2),
			},
		})
	}
	return t
}

// CostCategories категории затрат и их базовые месячные суммы
var CostCategories = []struct {
	Name string
	Base float64
}{
	{"Raw materials", 120000},
	{"Direct labour", 80000},
	{"Production overheads", 40000},
	{"Administrative costs", 25000},
	{"Selling costs", 35000},
	{"Financial costs", 15000},
	{"Depreciation", 20000},
}

// GenerateCostLines моделирует фактические затраты по категориям против бюджета (база +2%)
func GenerateCostLines(months int, end time.Time, seed int64) []models.BudgetLine {
	rng := rand.New(rand.NewSource(seed))
	var lines []models.BudgetLine
	for _, period := range monthPeriods(months, end) {
		for _, c := range CostCategories {
			lines = append(lines, models.BudgetLine{
				Period:   period,
				Category: c.Name,
				Actual:   round(c.Base*(1+rng.NormFloat64()*0.1), 2),
				Budget:   round(c.Base*1.02, 2),
			})
		}
	}
	return lines
}

// Merge объединяет две таблицы по совпадающим периодам (inner join).
// При совпадении имен полей значение берется из b.
func Merge(a, b *models.Table) *models.Table {
	index := make(map[string]int, len(b.Rows))
	for i, row := range b.Rows {
		index[row.Period] = i
	}

	out := &models.Table{}
	seen := make(map[string]struct{})
	for _, f := range append(append([]string{}, a.Fields...), b.Fields...) {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out.Fields = append(out.Fields, f)
	}

	for _, row := range a.Rows {
		j, ok := index[row.Period]
		if !ok {
			continue
		}
		values := make(map[string]float64, len(row.Values)+len(b.Rows[j].Values))
		for k, v := range row.Values {
			values[k] = v
		}
		for k, v := range b.Rows[j].Values {
			values[k] = v
		}
		out.Rows = append(out.Rows, models.Row{Period: row.Period, Values: values})
	}
	return out
}
