package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/response"
)

type staffService interface {
	List(ctx context.Context, filter models.TranscriptRequestFilter) ([]models.StaffRequestRow, int, error)
	Transition(ctx context.Context, actorID, requestID string, req dto.TransitionRequest) (*models.TranscriptRequest, error)
}

type exportService interface {
	Export(ctx context.Context, filter models.TranscriptRequestFilter, format dto.ExportFormat) (*dto.ExportResult, error)
}

// StaffHandler exposes records-office operations.
type StaffHandler struct {
	service staffService
	export  exportService
}

// NewStaffHandler builds a new handler.
func NewStaffHandler(service staffService, export exportService) *StaffHandler {
	return &StaffHandler{service: service, export: export}
}

// List godoc
// @Summary List transcript requests
// @Tags Staff
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Param scope query string false "WITHIN_NG or OUTSIDE_NG"
// @Param q query string false "Matric number or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /staff/requests [get]
func (h *StaffHandler) List(c *gin.Context) {
	filter := requestFilterFromQuery(c)
	rows, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, &response.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total})
}

// Transition godoc
// @Summary Move a request to PROCESSING, SENT or CANCELLED
// @Tags Staff
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /staff/requests/{id}/transition [post]
func (h *StaffHandler) Transition(c *gin.Context) {
	claims := claimsFromContext(c)
	if !claims.IsStaff() {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}
	updated, err := h.service.Transition(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Export godoc
// @Summary Export the request roster
// @Tags Staff
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Param scope query string false "Scope filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /staff/requests/export [get]
func (h *StaffHandler) Export(c *gin.Context) {
	format := dto.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(dto.ExportCSV))))
	result, err := h.export.Export(c.Request.Context(), requestFilterFromQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}

func requestFilterFromQuery(c *gin.Context) models.TranscriptRequestFilter {
	return models.TranscriptRequestFilter{
		Status:   models.RequestStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Scope:    models.RequestScope(strings.ToUpper(strings.TrimSpace(c.Query("scope")))),
		Search:   c.Query("q"),
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "limit", 50),
	}
}
