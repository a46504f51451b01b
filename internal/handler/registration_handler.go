package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/middleware"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/response"
)

type directoryLookup interface {
	LookupCached(ctx context.Context, matric string) (*models.DirectoryProfile, bool, error)
}

type registrationService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*models.Student, error)
	Profile(ctx context.Context, matric string) (*models.Student, error)
}

// RegistrationHandler exposes directory lookup, sign-up and the student profile.
type RegistrationHandler struct {
	directory    directoryLookup
	registration registrationService
}

// NewRegistrationHandler builds a new handler.
func NewRegistrationHandler(directory directoryLookup, registration registrationService) *RegistrationHandler {
	return &RegistrationHandler{directory: directory, registration: registration}
}

// Lookup godoc
// @Summary Look up a student in the records directory
// @Description Returns the verified profile used to pre-fill registration
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.LookupRequest true "Lookup payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /register/lookup [post]
func (h *RegistrationHandler) Lookup(c *gin.Context) {
	var req dto.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lookup payload"))
		return
	}

	profile, hit, err := h.directory.LookupCached(c.Request.Context(), req.MatricNo)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, profile, nil, middleware.ExtractMeta(c))
}

// Register godoc
// @Summary Create a student account
// @Description Profile fields are copied from the records directory, not the payload
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	student, err := h.registration.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Profile godoc
// @Summary Current student profile
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/profile [get]
func (h *RegistrationHandler) Profile(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	student, err := h.registration.Profile(c.Request.Context(), matric)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
