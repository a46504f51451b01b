package dto

import "github.com/noah-isme/transcript-api/internal/models"

// InitiatePaymentRequest starts a gateway checkout for a request. AmountNGN is
// optional and, when sent, must match the fee schedule.
type InitiatePaymentRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
	Email     string `json:"email" validate:"required,email,max=255"`
	AmountNGN *int64 `json:"amount_ngn,omitempty" validate:"omitempty,gt=0"`
}

// InitiatePaymentResponse carries the checkout redirect.
type InitiatePaymentResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code,omitempty"`
	AmountKobo       int64  `json:"amount_kobo"`
	Currency         string `json:"currency"`
}

// ConfirmationSource names the adapter that triggered a reconciliation.
type ConfirmationSource string

const (
	SourceCallback ConfirmationSource = "callback"
	SourceWebhook  ConfirmationSource = "webhook"
	SourceRequery  ConfirmationSource = "requery"
)

// PaymentOutcome is the result of reconciling one gateway reference.
type PaymentOutcome struct {
	Reference        string               `json:"reference"`
	Confirmed        bool                 `json:"confirmed"`
	Status           models.PaymentStatus `json:"status"`
	RequestID        *string              `json:"linked_request_id,omitempty"`
	AlreadyConfirmed bool                 `json:"already_confirmed"`
}

// WebhookAck is returned to the gateway once the signature checks out.
type WebhookAck struct {
	Received bool `json:"received"`
}
