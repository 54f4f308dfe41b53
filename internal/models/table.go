// Package models содержит структуры данных таблицы наблюдений и результатов детекции
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTable возвращается, если таблица наблюдений нарушает инварианты
var ErrInvalidTable = errors.New("invalid observation table")

// Row одна строка таблицы наблюдений: период и числовые показатели.
// Отсутствующий ключ или NaN означает пропущенное значение.
type Row struct {
	Period string             `json:"period"`
	Values map[string]float64 `json:"values"`
}

type rowJSON struct {
	Period string              `json:"period"`
	Values map[string]*float64 `json:"values"`
}

// UnmarshalJSON принимает null как пропущенное значение
func (r *Row) UnmarshalJSON(data []byte) error {
	var raw rowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Period = raw.Period
	r.Values = make(map[string]float64, len(raw.Values))
	for k, v := range raw.Values {
		if v != nil {
			r.Values[k] = *v
		}
	}
	return nil
}

// MarshalJSON записывает NaN как null
func (r Row) MarshalJSON() ([]byte, error) {
	raw := rowJSON{Period: r.Period, Values: make(map[string]*float64, len(r.Values))}
	for k, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			raw.Values[k] = nil
			continue
		}
		v := v
		raw.Values[k] = &v
	}
	return json.Marshal(raw)
}

// Table упорядоченная по периодам таблица наблюдений.
// Fields задает порядок числовых показателей.
type Table struct {
	Fields []string `json:"fields"`
	Rows   []Row    `json:"rows"`
}

// Len возвращает количество строк
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasField проверяет наличие показателя в таблице
func (t *Table) HasField(field string) bool {
	for _, f := range t.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Value возвращает значение показателя в строке i, false если значение пропущено.
// NaN и бесконечности считаются пропусками.
func (t *Table) Value(i int, field string) (float64, bool) {
	if i < 0 || i >= len(t.Rows) {
		return 0, false
	}
	v, ok := t.Rows[i].Values[field]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Latest возвращает индекс последней строки, -1 для пустой таблицы
func (t *Table) Latest() int {
	return len(t.Rows) - 1
}

// Series возвращает присутствующие значения показателя и их позиции в таблице
func (t *Table) Series(field string) (values []float64, positions []int) {
	values = make([]float64, 0, len(t.Rows))
	positions = make([]int, 0, len(t.Rows))
	for i := range t.Rows {
		if v, ok := t.Value(i, field); ok {
			values = append(values, v)
			positions = append(positions, i)
		}
	}
	return values, positions
}

// Validate проверяет уникальность и возрастание периодов и известность полей
func (t *Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if f == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidTable)
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidTable, f)
		}
		seen[f] = struct{}{}
	}

	for i, row := range t.Rows {
		if row.Period == "" {
			return fmt.Errorf("%w: row %d has no period", ErrInvalidTable, i)
		}
		if i > 0 && row.Period <= t.Rows[i-1].Period {
			return fmt.Errorf("%w: period %q at row %d is not after %q",
				ErrInvalidTable, row.Period, i, t.Rows[i-1].Period)
		}
		for k := range row.Values {
			if _, ok := seen[k]; !ok {
				return fmt.Errorf("%w: row %q references unknown field %q", ErrInvalidTable, row.Period, k)
			}
		}
	}
	return nil
}

// InferFields заполняет Fields из строк, если они не заданы явно.
// Порядок полей - порядок первого появления, внутри строки по алфавиту.
func (t *Table) InferFields() {
	if len(t.Fields) > 0 {
		return
	}
	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		keys := sortedKeys(row.Values)
		for _, k := range keys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			t.Fields = append(t.Fields, k)
		}
	}
}
