package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/export"
)

type rosterStub struct {
	rows  []models.StaffRequestRow
	pages []int
}

func (r *rosterStub) List(ctx context.Context, filter models.TranscriptRequestFilter) ([]models.StaffRequestRow, int, error) {
	r.pages = append(r.pages, filter.Page)
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(r.rows) {
		return nil, len(r.rows), nil
	}
	end := start + filter.PageSize
	if end > len(r.rows) {
		end = len(r.rows)
	}
	return r.rows[start:end], len(r.rows), nil
}

func rosterRows(n int) []models.StaffRequestRow {
	institution := "University of Lagos"
	rows := make([]models.StaffRequestRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, models.StaffRequestRow{
			TranscriptRequest: models.TranscriptRequest{
				ID:         "req-" + strings.Repeat("x", i%3),
				Scope:      models.ScopeWithinNigeria,
				Status:     models.RequestStatusSubmitted,
				AmountKobo: 500000,
			},
			MatricNo:        "U2020/1001",
			FullName:        "Okafor Ada",
			InstitutionName: &institution,
		})
	}
	return rows
}

func TestExportServiceCSV(t *testing.T) {
	source := &rosterStub{rows: rosterRows(2)}
	svc := NewExportService(source, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())

	result, err := svc.Export(context.Background(), models.TranscriptRequestFilter{}, dto.ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	lines := strings.Split(strings.TrimSpace(string(result.Body)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Request ID,Matric No"))
	assert.Contains(t, lines[1], "University of Lagos")
	assert.Contains(t, lines[1], ",5000,")
}

func TestExportServicePDFPagesThroughRoster(t *testing.T) {
	source := &rosterStub{rows: rosterRows(exportPageSize + 3)}
	svc := NewExportService(source, nil, nil, nil)

	result, err := svc.Export(context.Background(), models.TranscriptRequestFilter{Status: models.RequestStatusSubmitted}, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Body), "%PDF"))
	assert.Equal(t, []int{1, 2}, source.pages)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&rosterStub{}, nil, nil, nil)
	_, err := svc.Export(context.Background(), models.TranscriptRequestFilter{}, "xlsx")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}
