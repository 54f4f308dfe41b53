package dataset

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"perfdash-service/internal/analytics"
	"perfdash-service/internal/models"
)

// digestTail количество последних строк в дайджесте
const digestTail = 5

// Digest готовит текстовую сводку таблицы для внешнего сервиса комментариев:
// размер, список полей, статистику по каждому полю и последние наблюдения.
func Digest(t *models.Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Observations: %d\n", t.Len())
	fmt.Fprintf(&b, "Fields: %s\n", strings.Join(t.Fields, ", "))

	for _, s := range analytics.Describe(t) {
		fmt.Fprintf(&b, "\n%s:\n", s.Field)
		fmt.Fprintf(&b, "  - Mean: %.2f\n", s.Mean)
		fmt.Fprintf(&b, "  - Min: %.2f\n", s.Min)
		fmt.Fprintf(&b, "  - Max: %.2f\n", s.Max)
		fmt.Fprintf(&b, "  - Std dev: %.2f\n", s.StdDev)
	}

	b.WriteString("\nLatest observations:\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "period\t%s\n", strings.Join(t.Fields, "\t"))
	start := t.Len() - digestTail
	if start < 0 {
		start = 0
	}
	for i := start; i < t.Len(); i++ {
		cells := make([]string, len(t.Fields))
		for j, f := range t.Fields {
			if v, ok := t.Value(i, f); ok {
				cells[j] = fmt.Sprintf("%.2f", v)
			} else {
				cells[j] = "NaN"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\n", t.Rows[i].Period, strings.Join(cells, "\t"))
	}
	tw.Flush()

	return b.String()
}
