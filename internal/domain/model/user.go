package model

import (
	"strings"
	"time"
)

// AuthorizedUser is an allow-listed account.
type AuthorizedUser struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name,omitempty"`
	LastName        string     `json:"last_name,omitempty"`
	IsAdmin         bool       `json:"is_admin"`
	PasswordHash    string     `json:"-"`
	InviteTokenHash string     `json:"-"`
	InviteExpiresAt *time.Time `json:"-"`
	AddedBy         string     `json:"added_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Registered reports whether the user completed name registration.
func (u AuthorizedUser) Registered() bool {
	return u.FirstName != "" && u.LastName != ""
}

// DisplayName returns "First Last" or the email.
func (u AuthorizedUser) DisplayName() string {
	if u.Registered() {
		return u.FirstName + " " + u.LastName
	}
	return u.Email
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Auth log actions.
const (
	ActionAddUser      = "add_user"
	ActionRegisterName = "register_name"
)

// AuthLog is one administrative audit entry.
type AuthLog struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	TargetEmail string    `json:"target_email"`
	PerformedBy string    `json:"performed_by"`
	CreatedAt   time.Time `json:"created_at"`
}
