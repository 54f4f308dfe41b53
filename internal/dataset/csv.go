package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"perfdash-service/internal/models"
)

// ErrNoPeriodColumn возвращается для CSV без колонок
var ErrNoPeriodColumn = errors.New("csv has no period column")

var missingMarkers = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "null": {}, "none": {}, "-": {},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
}

// ReadCSV загружает таблицу наблюдений из CSV с заголовком.
// Колонка периода - первая, в имени которой есть period, date или month,
// иначе самая первая колонка. Даты приводятся к виду 2006-01-02.
// Числовыми считаются колонки, все непустые ячейки которых - числа,
// остальные колонки отбрасываются. Строки сортируются по периоду.
func ReadCSV(r io.Reader) (*models.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, ErrNoPeriodColumn
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	periodCol := periodColumn(header)
	body := records[1:]

	var numeric []int
	for c := range header {
		if c == periodCol || header[c] == "" {
			continue
		}
		if numericColumn(body, c) {
			numeric = append(numeric, c)
		}
	}

	t := &models.Table{}
	for _, c := range numeric {
		t.Fields = append(t.Fields, header[c])
	}

	for i, rec := range body {
		if periodCol >= len(rec) || strings.TrimSpace(rec[periodCol]) == "" {
			return nil, fmt.Errorf("%w: csv line %d has no period", models.ErrInvalidTable, i+2)
		}
		row := models.Row{
			Period: normalizePeriod(strings.TrimSpace(rec[periodCol])),
			Values: make(map[string]float64, len(numeric)),
		}
		for _, c := range numeric {
			if c >= len(rec) {
				continue
			}
			if v, ok := parseCell(rec[c]); ok {
				row.Values[header[c]] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}

	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Period < t.Rows[j].Period
	})
	return t, nil
}

func periodColumn(header []string) int {
	for i, h := range header {
		name := strings.ToLower(h)
		for _, key := range []string{"period", "date", "month"} {
			if strings.Contains(name, key) {
				return i
			}
		}
	}
	return 0
}

func numericColumn(body [][]string, c int) bool {
	seen := false
	for _, rec := range body {
		if c >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[c])
		if _, missing := missingMarkers[strings.ToLower(cell)]; missing {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func parseCell(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if _, missing := missingMarkers[strings.ToLower(cell)]; missing {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func normalizePeriod(p string) string {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, p); err == nil {
			return ts.Format("2006-01-02")
		}
	}
	return p
}

// WriteCSV выгружает таблицу в CSV, пропуски пишутся пустыми ячейками
func WriteCSV(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"period"}, t.Fields...)); err != nil {
		return err
	}
	for i, row := range t.Rows {
		rec := make([]string, 0, len(t.Fields)+1)
		rec = append(rec, row.Period)
		for _, f := range t.Fields {
			if v, ok := t.Value(i, f); ok {
				rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSection выгружает табличное представление коллекции отчета
func WriteSection(w io.Writer, s models.Section) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(s.Records); err != nil {
		return err
	}
	return cw.Error()
}
