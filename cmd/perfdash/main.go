// Command perfdash строит отчеты об аномалиях по CSV файлам и синтетическим данным
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"perfdash-service/internal/analytics"
	"perfdash-service/internal/config"
	"perfdash-service/internal/dataset"
	"perfdash-service/internal/models"
)

const version = "v0.4.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "perfdash",
		Short:         "Anomaly detection for periodic business indicators",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config with detector settings")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Run all detectors on a CSV file",
		RunE:  runReport,
	}
	reportCmd.Flags().StringP("file", "f", "", "CSV file with a period column and numeric indicators")
	reportCmd.Flags().String("fields", "", "Comma-separated fields to analyze (default: all)")
	_ = reportCmd.MarkFlagRequired("file")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run all detectors on synthetic financial and operational data",
		RunE:  runDemo,
	}
	demoCmd.Flags().Int("months", 24, "Number of monthly periods to generate")
	demoCmd.Flags().Int64("seed", dataset.DefaultSeed, "Generator seed")

	for _, cmd := range []*cobra.Command{reportCmd, demoCmd} {
		cmd.Flags().String("format", formatAuto, "Output format (auto|json|table|csv)")
	}

	digestCmd := &cobra.Command{
		Use:   "digest",
		Short: "Print a plain-text digest of a CSV file",
		RunE:  runDigest,
	}
	digestCmd.Flags().StringP("file", "f", "", "CSV file")
	_ = digestCmd.MarkFlagRequired("file")

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Print descriptive statistics of a CSV file",
		RunE:  runDescribe,
	}
	describeCmd.Flags().StringP("file", "f", "", "CSV file")
	describeCmd.Flags().String("format", formatAuto, "Output format (auto|json|table)")
	_ = describeCmd.MarkFlagRequired("file")

	budgetCmd := &cobra.Command{
		Use:   "budget",
		Short: "Compare synthetic cost lines against budget",
		RunE:  runBudget,
	}
	budgetCmd.Flags().Int("months", 12, "Number of monthly periods to generate")
	budgetCmd.Flags().Int64("seed", dataset.DefaultSeed, "Generator seed")
	budgetCmd.Flags().String("format", formatAuto, "Output format (auto|json|table)")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write synthetic financial and operational data as CSV",
		RunE:  runExport,
	}
	exportCmd.Flags().Int("months", 24, "Number of monthly periods to generate")
	exportCmd.Flags().Int64("seed", dataset.DefaultSeed, "Generator seed")
	exportCmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")

	rootCmd.AddCommand(reportCmd, demoCmd, digestCmd, describeCmd, budgetCmd, exportCmd)
	return rootCmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	table, err := loadTable(cmd)
	if err != nil {
		return err
	}
	detector, err := loadDetector(cmd)
	if err != nil {
		return err
	}
	fieldsFlag, _ := cmd.Flags().GetString("fields")

	return emitReport(cmd, detector, table, splitFields(fieldsFlag))
}

func runDemo(cmd *cobra.Command, _ []string) error {
	months, _ := cmd.Flags().GetInt("months")
	seed, _ := cmd.Flags().GetInt64("seed")
	if months < 2 {
		return fmt.Errorf("months must be at least 2, got %d", months)
	}
	detector, err := loadDetector(cmd)
	if err != nil {
		return err
	}

	table := demoTable(months, seed)
	log.Debug().Int("months", months).Int64("seed", seed).Int("fields", len(table.Fields)).Msg("generated demo data")

	return emitReport(cmd, detector, table, nil)
}

func runExport(cmd *cobra.Command, _ []string) error {
	months, _ := cmd.Flags().GetInt("months")
	seed, _ := cmd.Flags().GetInt64("seed")
	path, _ := cmd.Flags().GetString("out")
	if months < 1 {
		return fmt.Errorf("months must be positive, got %d", months)
	}

	table := demoTable(months, seed)
	if path == "" {
		return dataset.WriteCSV(cmd.OutOrStdout(), table)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := dataset.WriteCSV(f, table); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("file", path).Int("rows", table.Len()).Msg("exported demo data")
	return nil
}

// demoTable объединяет синтетические финансовые и операционные показатели
func demoTable(months int, seed int64) *models.Table {
	end := time.Now()
	return dataset.Merge(
		dataset.GenerateFinancial(months, end, seed),
		dataset.GenerateOperational(months, end, seed),
	)
}

func runDigest(cmd *cobra.Command, _ []string) error {
	table, err := loadTable(cmd)
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), dataset.Digest(table))
	return err
}

func runDescribe(cmd *cobra.Command, _ []string) error {
	table, err := loadTable(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()
	return renderStats(out, analytics.Describe(table), resolveFormat(format, out))
}

func runBudget(cmd *cobra.Command, _ []string) error {
	months, _ := cmd.Flags().GetInt("months")
	seed, _ := cmd.Flags().GetInt64("seed")
	format, _ := cmd.Flags().GetString("format")

	lines := dataset.GenerateCostLines(months, time.Now(), seed)
	variances := analytics.AnalyzeBudget(lines)
	log.Debug().Int("lines", len(lines)).Int("variances", len(variances)).Msg("budget analyzed")

	out := cmd.OutOrStdout()
	return renderVariances(out, variances, resolveFormat(format, out))
}

func emitReport(cmd *cobra.Command, detector *analytics.Detector, table *models.Table, fields []string) error {
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()
	format = resolveFormat(format, out)
	if !validFormat(format) {
		return fmt.Errorf("unknown format %q", format)
	}

	start := time.Now()
	report, err := detector.Report(table, fields...)
	if err != nil {
		return err
	}
	log.Info().
		Str("report_id", report.ID).
		Int("rows", report.Rows).
		Int("findings", report.Summary.Total()).
		Float64("health_score", report.HealthScore).
		Dur("elapsed", time.Since(start)).
		Msg("report ready")

	return renderReport(out, report, format)
}

func loadTable(cmd *cobra.Command) (*models.Table, error) {
	path, _ := cmd.Flags().GetString("file")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	table, err := dataset.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Debug().Str("file", path).Int("rows", table.Len()).Strs("fields", table.Fields).Msg("loaded table")
	return table, nil
}

func loadDetector(cmd *cobra.Command) (*analytics.Detector, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.NewDetector(log.Logger), nil
}

func splitFields(s string) []string {
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
