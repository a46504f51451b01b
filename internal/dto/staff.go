package dto

import "github.com/noah-isme/transcript-api/internal/models"

// TransitionRequest moves a request through the staff-driven stages.
type TransitionRequest struct {
	Status models.RequestStatus `json:"status" validate:"required,oneof=PROCESSING SENT CANCELLED"`
	Note   string               `json:"note" validate:"max=500"`
}

// ExportFormat selects the roster renderer.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportResult is a rendered roster file.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}
