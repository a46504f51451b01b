package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
)

type staffServiceMock struct {
	rows       []models.StaffRequestRow
	total      int
	updated    *models.TranscriptRequest
	err        error
	lastFilter models.TranscriptRequestFilter
	lastActor  string
	lastID     string
}

func (m *staffServiceMock) List(ctx context.Context, filter models.TranscriptRequestFilter) ([]models.StaffRequestRow, int, error) {
	m.lastFilter = filter
	return m.rows, m.total, m.err
}

func (m *staffServiceMock) Transition(ctx context.Context, actorID, requestID string, req dto.TransitionRequest) (*models.TranscriptRequest, error) {
	m.lastActor, m.lastID = actorID, requestID
	return m.updated, m.err
}

type exportServiceMock struct {
	result     *dto.ExportResult
	err        error
	lastFormat dto.ExportFormat
}

func (m *exportServiceMock) Export(ctx context.Context, filter models.TranscriptRequestFilter, format dto.ExportFormat) (*dto.ExportResult, error) {
	m.lastFormat = format
	return m.result, m.err
}

func TestStaffHandlerListParsesFilter(t *testing.T) {
	svc := &staffServiceMock{rows: []models.StaffRequestRow{{MatricNo: "U2020/1001"}}, total: 7}
	h := NewStaffHandler(svc, &exportServiceMock{})

	c, w := newTestContext(http.MethodGet, "/staff/requests?status=submitted&scope=outside_ng&page=2&limit=5&q=ada", nil, staffClaims)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequestStatusSubmitted, svc.lastFilter.Status)
	assert.Equal(t, models.ScopeOutsideNigeria, svc.lastFilter.Scope)
	assert.Equal(t, "ada", svc.lastFilter.Search)
	assert.Equal(t, 2, svc.lastFilter.Page)
	pagination := decodeEnvelope(t, w)["pagination"].(map[string]interface{})
	assert.Equal(t, float64(7), pagination["total_count"])
	assert.Equal(t, float64(5), pagination["page_size"])
}

func TestStaffHandlerTransition(t *testing.T) {
	svc := &staffServiceMock{updated: &models.TranscriptRequest{ID: "req-1", Status: models.RequestStatusProcessing}}
	h := NewStaffHandler(svc, &exportServiceMock{})

	c, w := newTestContext(http.MethodPost, "/staff/requests/req-1/transition", dto.TransitionRequest{Status: models.RequestStatusProcessing}, staffClaims)
	c.AddParam("id", "req-1")
	h.Transition(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "staff-1", svc.lastActor)
	assert.Equal(t, "req-1", svc.lastID)
}

func TestStaffHandlerTransitionInvalidState(t *testing.T) {
	h := NewStaffHandler(&staffServiceMock{err: appErrors.ErrInvalidState}, &exportServiceMock{})

	c, w := newTestContext(http.MethodPost, "/staff/requests/req-1/transition", dto.TransitionRequest{Status: models.RequestStatusSent}, staffClaims)
	c.AddParam("id", "req-1")
	h.Transition(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestStaffHandlerTransitionRejectsStudent(t *testing.T) {
	svc := &staffServiceMock{}
	h := NewStaffHandler(svc, &exportServiceMock{})

	c, w := newTestContext(http.MethodPost, "/staff/requests/req-1/transition", dto.TransitionRequest{Status: models.RequestStatusSent}, studentClaims)
	h.Transition(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.lastActor)
}

func TestStaffHandlerExport(t *testing.T) {
	exp := &exportServiceMock{result: &dto.ExportResult{Filename: "roster.pdf", ContentType: "application/pdf", Body: []byte("%PDF")}}
	h := NewStaffHandler(&staffServiceMock{}, exp)

	c, w := newTestContext(http.MethodGet, "/staff/requests/export?format=PDF", nil, staffClaims)
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportPDF, exp.lastFormat)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "roster.pdf")
}

func TestStaffHandlerExportBadFormat(t *testing.T) {
	h := NewStaffHandler(&staffServiceMock{}, &exportServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")})

	c, w := newTestContext(http.MethodGet, "/staff/requests/export?format=xls", nil, staffClaims)
	h.Export(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
