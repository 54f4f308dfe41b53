package analytics

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"perfdash-service/internal/models"
)

// Report запускает все детекторы и собирает единый отчет.
// Детекторы работают параллельно и только читают таблицу. Ошибка одного
// детектора попадает в Report.Errors и не мешает остальным.
// Ошибка возвращается только для таблицы, нарушающей инварианты.
func (d *Detector) Report(t *models.Table, fields ...string) (*models.Report, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Rows:        t.Len(),
		Fields:      t.Fields,
	}

	trendFields := fields
	if len(trendFields) == 0 {
		trendFields = t.Fields
	}
	if len(trendFields) > d.settings.MaxTrendFields {
		trendFields = trendFields[:d.settings.MaxTrendFields]
	}

	var (
		iqrErr, zErr, mvErr error
		trendErrs           = make([]error, len(trendFields))
		trendResults        = make([][]models.TrendBreak, len(trendFields))
	)

	var g errgroup.Group
	g.Go(func() error {
		report.IQROutliers, iqrErr = d.DetectIQR(t, fields...)
		return nil
	})
	g.Go(func() error {
		report.ZScoreOutliers, zErr = d.DetectZScore(t, fields...)
		return nil
	})
	g.Go(func() error {
		report.Multivariate, mvErr = d.DetectMultivariate(t, fields...)
		return nil
	})
	for i, field := range trendFields {
		i, field := i, field
		g.Go(func() error {
			trendResults[i], trendErrs[i] = d.DetectTrendBreaks(t, field, d.settings.TrendWindow)
			return nil
		})
	}
	report.Alerts = d.EvaluateThresholds(t)
	report.HealthScore = d.HealthScore(t)
	_ = g.Wait()

	d.collect(report, "iqr", iqrErr)
	d.collect(report, "zscore", zErr)
	d.collect(report, "multivariate", mvErr)
	for i, field := range trendFields {
		if trendErrs[i] != nil {
			d.collect(report, "trend", trendErrs[i])
			continue
		}
		if len(trendResults[i]) > 0 {
			report.TrendBreaks = append(report.TrendBreaks, models.FieldTrendBreaks{
				Field:  field,
				Breaks: trendResults[i],
			})
		}
	}

	report.Summary = models.Summary{
		IQROutliers:           len(report.IQROutliers),
		ZScoreOutliers:        len(report.ZScoreOutliers),
		MultivariateAnomalies: len(report.Multivariate),
		Alerts:                len(report.Alerts),
	}
	for _, group := range report.TrendBreaks {
		report.Summary.TrendBreaks += len(group.Breaks)
	}

	d.logger.Debug().
		Str("report_id", report.ID).
		Int("rows", report.Rows).
		Int("findings", report.Summary.Total()).
		Float64("health_score", report.HealthScore).
		Msg("anomaly report assembled")

	return report, nil
}

func (d *Detector) collect(report *models.Report, detector string, err error) {
	if err == nil {
		return
	}
	entry := models.DetectorError{Detector: detector, Message: err.Error()}
	var mf *MissingFieldError
	if errors.As(err, &mf) {
		entry.Field = mf.Field
	}
	report.Errors = append(report.Errors, entry)
	d.logger.Warn().Err(err).Str("detector", detector).Str("field", entry.Field).Msg("detector skipped")
}
