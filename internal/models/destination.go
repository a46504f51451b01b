package models

import "time"

// NigeriaCountry is the only accepted destination country for WITHIN_NG requests.
const NigeriaCountry = "Nigeria"

// Destination is one submitted delivery address. The newest row per request wins.
type Destination struct {
	ID              string    `db:"id" json:"id"`
	RequestID       string    `db:"request_id" json:"request_id"`
	InstitutionName string    `db:"institution_name" json:"institution_name"`
	Country         string    `db:"country" json:"country"`
	AddressLine1    string    `db:"address_line1" json:"address_line1"`
	AddressLine2    *string   `db:"address_line2" json:"address_line2,omitempty"`
	City            *string   `db:"city" json:"city,omitempty"`
	StateRegion     *string   `db:"state_region" json:"state_region,omitempty"`
	PostalCode      *string   `db:"postal_code" json:"postal_code,omitempty"`
	EmailRecipient  *string   `db:"email_recipient" json:"email_recipient,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// StatusEvent is an append-only record of a lifecycle transition.
type StatusEvent struct {
	ID        int64         `db:"id" json:"id"`
	RequestID string        `db:"request_id" json:"request_id"`
	Status    RequestStatus `db:"status" json:"status"`
	Note      *string       `db:"note" json:"note,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}
