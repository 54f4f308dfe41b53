package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"perfdash-service/internal/dataset"
	"perfdash-service/internal/models"
)

// Форматы вывода
const (
	formatAuto  = "auto"
	formatJSON  = "json"
	formatTable = "table"
	formatCSV   = "csv"
)

// resolveFormat выбирает table для терминала и json для пайпов и файлов
func resolveFormat(format string, w io.Writer) string {
	if format != formatAuto {
		return format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return formatTable
	}
	return formatJSON
}

func validFormat(format string) bool {
	switch format {
	case formatJSON, formatTable, formatCSV:
		return true
	}
	return false
}

// renderReport выводит отчет в выбранном формате.
// csv пишет секции подряд, каждую со своим заголовком и строкой "# name".
func renderReport(w io.Writer, report *models.Report, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatCSV:
		for i, s := range report.Sections() {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "# %s\n", s.Name)
			if err := dataset.WriteSection(w, s); err != nil {
				return err
			}
		}
		return nil
	case formatTable:
		fmt.Fprintf(w, "Report %s: %d rows, health score %.1f\n", report.ID, report.Rows, report.HealthScore)
		for _, s := range report.Sections() {
			fmt.Fprintf(w, "\n== %s (%d) ==\n", s.Name, len(s.Records))
			if len(s.Records) == 0 {
				continue
			}
			if err := writeTable(w, s.Header, s.Records); err != nil {
				return err
			}
		}
		for _, e := range report.Errors {
			fmt.Fprintf(w, "! %s %s: %s\n", e.Detector, e.Field, e.Message)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderStats(w io.Writer, stats []models.FieldStats, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	case formatTable:
		header := []string{"field", "count", "mean", "median", "std_dev", "min", "max", "q1", "q3"}
		records := make([][]string, 0, len(stats))
		for _, s := range stats {
			records = append(records, []string{
				s.Field, strconv.Itoa(s.Count),
				num(s.Mean), num(s.Median), num(s.StdDev), num(s.Min), num(s.Max), num(s.Q1), num(s.Q3),
			})
		}
		return writeTable(w, header, records)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderVariances(w io.Writer, variances []models.BudgetVariance, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(variances)
	case formatTable:
		header := []string{"period", "category", "actual", "budget", "variance", "variance_pct", "severity"}
		records := make([][]string, 0, len(variances))
		for _, v := range variances {
			records = append(records, []string{
				v.Period, v.Category, num(v.Actual), num(v.Budget),
				num(v.Variance), num(v.VariancePercent), string(v.Severity),
			})
		}
		return writeTable(w, header, records)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeTable(w io.Writer, header []string, records [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range records {
		fmt.Fprintln(tw, strings.Join(rec, "\t"))
	}
	return tw.Flush()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
