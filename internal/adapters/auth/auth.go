// Package auth issues and verifies sessions for allow-listed users through
// magic links, passwords and invites.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

// Sentinel errors. Messages are shown to users as is.
var (
	ErrNotAuthorized      = errors.New(model.MsgNotAuthorized)
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired link")
	ErrAlreadyRegistered  = errors.New("this email already has a password. please sign in")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrForbidden          = errors.New("administrator access required")
)

// Identity is the signed-in user.
type Identity struct {
	UserID     int64  `json:"user_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	IsAdmin    bool   `json:"is_admin"`
	Registered bool   `json:"registered"`
}

// DisplayName returns the registered name or the email.
func (i Identity) DisplayName() string {
	if i.FirstName != "" || i.LastName != "" {
		return i.FirstName + " " + i.LastName
	}
	return i.Email
}

// Session is a bearer token and who it belongs to.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Identity  `json:"user"`
}

// Provider is the authentication collaborator used by the service.
type Provider interface {
	// SignInWithMagicLink mails a one-time sign-in link to an authorized email.
	SignInWithMagicLink(ctx context.Context, email string) error
	// VerifyMagicLink exchanges a magic link token for a session.
	VerifyMagicLink(ctx context.Context, token string) (Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	// SignUp sets the first password of an authorized email.
	SignUp(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, token string) error
	// GetSession validates a bearer token and reloads the user.
	GetSession(ctx context.Context, token string) (Session, error)
	// VerifyInvite exchanges an invite token for a session.
	VerifyInvite(ctx context.Context, token string) (Session, error)
	// Invite issues an invite token for an authorized email and mails it.
	Invite(ctx context.Context, email, invitedBy string) error
}

func identityOf(u model.AuthorizedUser) Identity {
	return Identity{
		UserID:     u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsAdmin:    u.IsAdmin,
		Registered: u.Registered(),
	}
}
