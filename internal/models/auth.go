package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload. For students the registered
// subject is the matriculation number; for staff it is the user id.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	MatricNo string   `json:"matric_no,omitempty"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// IsStudent reports whether the token belongs to a student session.
func (c *JWTClaims) IsStudent() bool {
	return c != nil && c.Role == RoleStudent && c.MatricNo != ""
}

// IsStaff reports whether the token belongs to a staff or admin session.
func (c *JWTClaims) IsStaff() bool {
	return c != nil && (c.Role == RoleStaff || c.Role == RoleAdmin)
}
