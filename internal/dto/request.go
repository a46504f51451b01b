package dto

import (
	"time"

	"github.com/noah-isme/transcript-api/internal/models"
)

// CreateRequestPayload starts a transcript request.
type CreateRequestPayload struct {
	Scope        models.RequestScope `json:"scope" validate:"required,oneof=WITHIN_NG OUTSIDE_NG"`
	RequestEmail string              `json:"request_email" validate:"required,email,max=255"`
}

// CreateRequestResponse echoes the new request with its computed fee.
type CreateRequestResponse struct {
	RequestID  string               `json:"request_id"`
	Scope      models.RequestScope  `json:"scope"`
	Status     models.RequestStatus `json:"status"`
	AmountNGN  int64                `json:"amount_ngn"`
	AmountKobo int64                `json:"amount_kobo"`
	Currency   string               `json:"currency"`
}

// RequestDetail is a request with its latest destination, if any.
type RequestDetail struct {
	models.TranscriptRequest
	AmountNGN   int64               `json:"amount_ngn"`
	Destination *models.Destination `json:"destination,omitempty"`
}

// DestinationPayload is one submitted delivery address.
type DestinationPayload struct {
	InstitutionName string  `json:"institution_name" validate:"required,max=255"`
	Country         string  `json:"country" validate:"required,max=100"`
	AddressLine1    string  `json:"address_line1" validate:"required,max=255"`
	AddressLine2    *string `json:"address_line2,omitempty" validate:"omitempty,max=255"`
	City            *string `json:"city,omitempty" validate:"omitempty,max=100"`
	StateRegion     *string `json:"state_region,omitempty" validate:"omitempty,max=100"`
	PostalCode      *string `json:"postal_code,omitempty" validate:"omitempty,max=20"`
	EmailRecipient  *string `json:"email_recipient,omitempty" validate:"omitempty,email,max=255"`
}

// StatusEventItem is one entry of the status feed.
type StatusEventItem struct {
	Status    models.RequestStatus `json:"status"`
	Note      *string              `json:"note,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}
