package models

import (
	"strings"
	"time"
)

// Student is a registered account with a profile snapshot copied from the
// directory at registration time.
type Student struct {
	ID           string    `db:"id" json:"id"`
	MatricNo     string    `db:"matric_no" json:"matric_no"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Email        string    `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	FullName     string    `db:"full_name" json:"full_name"`
	Surname      string    `db:"surname" json:"surname"`
	FirstName    string    `db:"first_name" json:"first_name"`
	OtherName    *string   `db:"other_name" json:"other_name,omitempty"`
	Department   string    `db:"department" json:"department"`
	School       string    `db:"school" json:"school"`
	Level        string    `db:"level" json:"level"`
	EntrySession string    `db:"entry_session" json:"entry_session"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DirectoryProfile is a verified record from the student records view.
type DirectoryProfile struct {
	MatricNo     string  `db:"matric_no" json:"matric_no"`
	Surname      string  `db:"surname" json:"surname"`
	FirstName    string  `db:"first_name" json:"first_name"`
	OtherName    *string `db:"other_name" json:"other_name,omitempty"`
	Department   string  `db:"department" json:"department"`
	School       string  `db:"school" json:"school"`
	Level        string  `db:"level" json:"level"`
	EntrySession string  `db:"entry_session" json:"entry_session"`
}

// FullName joins the non-empty name parts in surname-first order.
func (p DirectoryProfile) FullName() string {
	parts := []string{strings.TrimSpace(p.Surname), strings.TrimSpace(p.FirstName)}
	if p.OtherName != nil {
		parts = append(parts, strings.TrimSpace(*p.OtherName))
	}
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return strings.Join(out, " ")
}

// NormalizeMatric canonicalises a matriculation number for lookups and storage.
func NormalizeMatric(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
