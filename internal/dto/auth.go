package dto

import "time"

// LookupRequest asks the directory for a verified profile.
type LookupRequest struct {
	MatricNo string `json:"matric_no" validate:"required,max=32"`
}

// RegisterRequest creates a student account. Profile fields are re-read from
// the directory server-side and never accepted from the client.
type RegisterRequest struct {
	MatricNo string  `json:"matric_no" validate:"required,max=32"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

// StudentLoginRequest authenticates a student by matriculation number.
type StudentLoginRequest struct {
	MatricNo string `json:"matric_no" validate:"required,max=32"`
	Password string `json:"password" validate:"required"`
}

// StaffLoginRequest authenticates a records-office user.
type StaffLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued access token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	Subject     string    `json:"subject"`
	Role        string    `json:"role"`
	FullName    string    `json:"full_name"`
	IssuedAt    time.Time `json:"issued_at"`
}
