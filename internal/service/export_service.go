package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/export"
)

const (
	exportPageSize = 500
	exportMaxRows  = 10000
)

type rosterSource interface {
	List(ctx context.Context, filter models.TranscriptRequestFilter) ([]models.StaffRequestRow, int, error)
}

type datasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

var rosterHeaders = []string{"Request ID", "Matric No", "Full Name", "Department", "Scope", "Status", "Amount (NGN)", "Institution", "Country", "Created At"}

// ExportService renders the staff request roster.
type ExportService struct {
	source rosterSource
	csv    datasetRenderer
	pdf    datasetRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService creates a new export service instance.
func NewExportService(source rosterSource, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Export renders every request matching filter in the requested format.
func (s *ExportService) Export(ctx context.Context, filter models.TranscriptRequestFilter, format dto.ExportFormat) (*dto.ExportResult, error) {
	format = dto.ExportFormat(strings.ToLower(string(format)))
	if format == "" {
		format = dto.ExportCSV
	}
	if format != dto.ExportCSV && format != dto.ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	dataset, err := s.buildDataset(ctx, filter)
	if err != nil {
		return nil, err
	}

	title := "Transcript Requests"
	if filter.Status != "" {
		title = fmt.Sprintf("Transcript Requests (%s)", filter.Status)
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case dto.ExportPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = s.pdf.ContentType()
	default:
		payload, err = s.csv.Render(dataset, title)
		contentType = s.csv.ContentType()
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("roster exported", zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))
	return &dto.ExportResult{
		Filename:    fmt.Sprintf("transcript_requests_%s.%s", s.now().Format("20060102_150405"), format),
		ContentType: contentType,
		Body:        payload,
	}, nil
}

func (s *ExportService) buildDataset(ctx context.Context, filter models.TranscriptRequestFilter) (export.Dataset, error) {
	dataset := export.Dataset{Headers: rosterHeaders}
	filter.PageSize = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		rows, total, err := s.source.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, err
		}
		for _, row := range rows {
			dataset.Rows = append(dataset.Rows, rosterRow(row))
		}
		if len(rows) < exportPageSize || len(dataset.Rows) >= total || len(dataset.Rows) >= exportMaxRows {
			break
		}
	}
	return dataset, nil
}

func rosterRow(row models.StaffRequestRow) map[string]string {
	return map[string]string{
		"Request ID":   row.ID,
		"Matric No":    row.MatricNo,
		"Full Name":    row.FullName,
		"Department":   row.Department,
		"Scope":        string(row.Scope),
		"Status":       string(row.Status),
		"Amount (NGN)": strconv.FormatInt(KoboToNGN(row.AmountKobo), 10),
		"Institution":  deref(row.InstitutionName),
		"Country":      deref(row.DestinationCountry),
		"Created At":   row.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
