package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/transcript-api/internal/dto"
	"github.com/noah-isme/transcript-api/internal/models"
	appErrors "github.com/noah-isme/transcript-api/pkg/errors"
	"github.com/noah-isme/transcript-api/pkg/response"
)

// SignatureHeader carries the gateway's HMAC of the webhook body.
const SignatureHeader = "x-paystack-signature"

const maxWebhookBody = 1 << 20

type paymentService interface {
	Initiate(ctx context.Context, matric string, req dto.InitiatePaymentRequest) (*dto.InitiatePaymentResponse, error)
	Verify(ctx context.Context, matric, reference string, source dto.ConfirmationSource) (*dto.PaymentOutcome, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	ListMine(ctx context.Context, matric string) ([]models.Payment, error)
}

// PaymentHandler exposes checkout, confirmation and the gateway webhook.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler builds a new handler.
func NewPaymentHandler(service paymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Initiate godoc
// @Summary Start a gateway checkout
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.InitiatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /payments/init [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	res, err := h.service.Initiate(c.Request.Context(), matric, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Verify godoc
// @Summary Confirm a payment by reference
// @Description Used by the checkout callback and by manual requery
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param ref query string true "Payment reference"
// @Param source query string false "callback or requery"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /payments/verify [get]
func (h *PaymentHandler) Verify(c *gin.Context) {
	matric, ok := studentMatric(c)
	if !ok {
		return
	}
	ref := strings.TrimSpace(c.Query("ref"))
	if ref == "" {
		ref = strings.TrimSpace(c.Query("reference"))
	}
	if ref == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ref is required"))
		return
	}
	source := dto.SourceCallback
	if strings.EqualFold(c.Query("source"), string(dto.SourceRequery)) {
		source = dto.SourceRequery
	}

	outcome, err := h.service.Verify(c.Request.Context(), matric, ref, source)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Webhook godoc
// @Summary Gateway webhook
// @Description Acknowledged with 202 once the signature checks out; reconciliation runs asynchronously
// @Tags Payments
// @Accept json
// @Produce json
// @Param x-paystack-signature header string true "HMAC-SHA512 of the body"
// @Success 202 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable webhook body"))
		return
	}
	if err := h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader)); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.WebhookAck{Received: true})
}

// ListMine godoc
// @Summary List my payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /me/payments [get]
func (h *PaymentHandler) ListMine(c *gin.Context) {
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
