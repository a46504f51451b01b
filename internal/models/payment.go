package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PaymentStatus records the gateway outcome of a payment.
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment is a gateway transaction created at initiation. Once SUCCESS it is never modified again.
type Payment struct {
	ID            string             `db:"id" json:"id"`
	StudentID     string             `db:"student_id" json:"student_id"`
	RequestID     *string            `db:"request_id" json:"request_id,omitempty"`
	Reference     string             `db:"reference" json:"reference"`
	AmountKobo    int64              `db:"amount_kobo" json:"amount_kobo"`
	Currency      string             `db:"currency" json:"currency"`
	Status        PaymentStatus      `db:"status" json:"status"`
	PaidAt        *time.Time         `db:"paid_at" json:"paid_at,omitempty"`
	RawInitJSON   types.NullJSONText `db:"raw_init_json" json:"-"`
	RawVerifyJSON types.NullJSONText `db:"raw_verify_json" json:"-"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// GatewayEvent is an authenticated webhook body kept for audit and replay.
type GatewayEvent struct {
	ID         string         `db:"id" json:"id"`
	Provider   string         `db:"provider" json:"provider"`
	EventType  string         `db:"event_type" json:"event_type"`
	Reference  *string        `db:"reference" json:"reference,omitempty"`
	Payload    types.JSONText `db:"payload" json:"payload"`
	ReceivedAt time.Time      `db:"received_at" json:"received_at"`
}
