package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/f2freport-api/internal/dto"
	"github.com/noah-isme/f2freport-api/internal/report"
	appErrors "github.com/noah-isme/f2freport-api/pkg/errors"
	"github.com/noah-isme/f2freport-api/pkg/export"
)

type sessionReportSource interface {
	All(ctx context.Context, req dto.SessionReportRequest) (*dto.SessionReportExport, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Title   string
	Columns []string
}

// ExportService renders the full session report as a downloadable file.
type ExportService struct {
	reports sessionReportSource
	csv     datasetRenderer
	pdf     datasetRenderer
	logger  *zap.Logger
	cfg     ExportConfig
	columns []report.Column
	now     func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(reports sessionReportSource, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Title == "" {
		cfg.Title = "Face-to-face sessions"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		reports: reports,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		cfg:     cfg,
		columns: report.Columns(cfg.Columns),
		now:     time.Now,
	}
}

// Generate renders every row matching req in the requested format.
func (s *ExportService) Generate(ctx context.Context, req dto.SessionReportRequest, format string) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = dto.ExportFormatCSV
	}
	var (
		renderer    datasetRenderer
		contentType string
	)
	switch format {
	case dto.ExportFormatCSV:
		renderer, contentType = s.csv, "text/csv; charset=utf-8"
	case dto.ExportFormatPDF:
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	result, err := s.reports.All(ctx, req)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   s.cfg.Title,
		Headers: report.Headers(s.columns),
		Rows:    make([][]string, 0, len(result.Rows)),
	}
	for _, row := range result.Rows {
		dataset.Rows = append(dataset.Rows, report.Render(s.columns, row, result.Location))
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("session report exported",
		zap.String("format", format),
		zap.Int("rows", len(dataset.Rows)),
		zap.Int("bytes", len(body)),
	)

	return &dto.ExportFile{
		Filename:    s.filename(format, result.Location),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func (s *ExportService) filename(format string, loc *time.Location) string {
	now := s.now()
	if loc != nil {
		now = now.In(loc)
	}
	return fmt.Sprintf("f2f_sessions_%s.%s", now.Format("20060102_1504"), format)
}
