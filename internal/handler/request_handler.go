package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, matric string, payload dto.CreateRequestPayload) (*dto.CreateRequestResponse, error)
	Get(ctx context.Context, matric, id string) (*dto.RequestDetail, error)
	ListMine(ctx context.Context, matric string) ([]models.TranscriptRequest, error)
	Events(ctx context.Context, matric, id string) ([]dto.StatusEventItem, error)
	LatestDestination(ctx context.Context, matric, id string) (*models.Destination, error)
	SubmitDestination(ctx context.Context, matric, id string, payload dto.DestinationPayload) (*models.Destination, error)
}

// RequestHandler exposes the student side of the transcript request lifecycle.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler builds a new handler.
func NewRequestHandler(service requestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// Create godoc
// @Summary Start a transcript request
// @Description Creates a request in PAYMENT_PENDING with the fee for the chosen scope
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	var payload dto.CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}
	res, err := h.service.Create(c.Request.Context(), matric, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Get godoc
// @Summary Get one of my requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), matric, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// ListMine godoc
// @Summary List my requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/requests [get]
func (h *RequestHandler) ListMine(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	items, err := h.service.ListMine(c.Request.Context(), matric)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Events godoc
// @Summary Status history of a request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/events [get]
func (h *RequestHandler) Events(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	items, err := h.service.Events(c.Request.Context(), matric, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// LatestDestination godoc
// @Summary Latest delivery destination of a request
// @Description Data is null when no destination has been submitted
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/destination [get]
func (h *RequestHandler) LatestDestination(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	dest, err := h.service.LatestDestination(c.Request.Context(), matric, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if dest == nil {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{"data": nil})
		return
	}
	response.JSON(c, http.StatusOK, dest, nil)
}

// SubmitDestination godoc
// @Summary Submit a delivery destination
// @Description Allowed once paid; the first submission moves the request to SUBMITTED
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body dto.DestinationPayload true "Destination payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/destination [post]
func (h *RequestHandler) SubmitDestination(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	var payload dto.DestinationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid destination payload"))
		return
	}
	dest, err := h.service.SubmitDestination(c.Request.Context(), matric, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dest)
}
