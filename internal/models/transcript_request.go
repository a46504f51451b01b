package models

import "time"

// RequestScope decides the fee band and the destination country rule.
type RequestScope string

const (
	ScopeWithinNigeria  RequestScope = "WITHIN_NG"
	ScopeOutsideNigeria RequestScope = "OUTSIDE_NG"
)

// Valid reports whether the scope is known.
func (s RequestScope) Valid() bool {
	return s == ScopeWithinNigeria || s == ScopeOutsideNigeria
}

// RequestStatus enumerates the lifecycle states of a transcript request.
type RequestStatus string

const (
	RequestStatusDraft          RequestStatus = "DRAFT"
	RequestStatusPaymentPending RequestStatus = "PAYMENT_PENDING"
	RequestStatusPaid           RequestStatus = "PAID"
	RequestStatusSubmitted      RequestStatus = "SUBMITTED"
	RequestStatusProcessing     RequestStatus = "PROCESSING"
	RequestStatusSent           RequestStatus = "SENT"
	RequestStatusCancelled      RequestStatus = "CANCELLED"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusDraft:          {RequestStatusPaymentPending, RequestStatusCancelled},
	RequestStatusPaymentPending: {RequestStatusPaid, RequestStatusCancelled},
	RequestStatusPaid:           {RequestStatusSubmitted, RequestStatusCancelled},
	RequestStatusSubmitted:      {RequestStatusProcessing, RequestStatusCancelled},
	RequestStatusProcessing:     {RequestStatusSent, RequestStatusCancelled},
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusSent || s == RequestStatusCancelled
}

// Valid reports whether the status is part of the lifecycle.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusDraft, RequestStatusPaymentPending, RequestStatusPaid, RequestStatusSubmitted,
		RequestStatusProcessing, RequestStatusSent, RequestStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AcceptsDestination reports whether a destination may be submitted.
func (s RequestStatus) AcceptsDestination() bool {
	return s == RequestStatusPaid || s == RequestStatusSubmitted
}

// TranscriptRequest is a student's request for a transcript to be dispatched.
type TranscriptRequest struct {
	ID               string        `db:"id" json:"id"`
	StudentID        string        `db:"student_id" json:"student_id"`
	Scope            RequestScope  `db:"scope" json:"scope"`
	RequestEmail     string        `db:"request_email" json:"request_email"`
	Status           RequestStatus `db:"status" json:"status"`
	AmountKobo       int64         `db:"amount_kobo" json:"amount_kobo"`
	Currency         string        `db:"currency" json:"currency"`
	PaymentReference *string       `db:"payment_reference" json:"payment_reference,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// TranscriptRequestFilter narrows staff listings.
type TranscriptRequestFilter struct {
	Status   RequestStatus
	Scope    RequestScope
	Search   string
	Page     int
	PageSize int
}

// StaffRequestRow is a request joined with its student and latest destination.
type StaffRequestRow struct {
	TranscriptRequest
	MatricNo           string  `db:"matric_no" json:"matric_no"`
	FullName           string  `db:"full_name" json:"full_name"`
	Department         string  `db:"department" json:"department"`
	InstitutionName    *string `db:"institution_name" json:"institution_name,omitempty"`
	DestinationCountry *string `db:"destination_country" json:"destination_country,omitempty"`
}
