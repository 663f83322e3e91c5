package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/adapters/repository"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/pkg/logger"
)

// NewUser is the admin form for adding an authorized user.
type NewUser struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
}

// AddUserResult reports the stored user and whether the invite went out.
type AddUserResult struct {
	User    model.AuthorizedUser `json:"user"`
	Invited bool                 `json:"invited"`
}

func requireAdmin(actor auth.Identity) error {
	if !actor.IsAdmin {
		return auth.ErrForbidden
	}
	return nil
}

// AddUser allow-lists an email, writes an audit entry and sends an invite.
// A failed invite is logged; the user stays authorized and can use a magic link.
func (s *Service) AddUser(ctx context.Context, actor auth.Identity, in NewUser) (AddUserResult, error) {
	if err := requireAdmin(actor); err != nil {
		return AddUserResult{}, err
	}
	email := model.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return AddUserResult{}, &model.ValidationError{Field: "email", Reason: "please enter a valid email address"}
	}

	u, err := s.store.InsertUser(ctx, model.AuthorizedUser{
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		IsAdmin:   in.IsAdmin,
		AddedBy:   actor.Email,
		CreatedAt: s.now(),
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		return AddUserResult{}, ErrAlreadyAuthorized
	case err != nil:
		return AddUserResult{}, model.Remote("add user", err)
	}

	if _, err := s.store.InsertAuthLog(ctx, model.AuthLog{
		Action:      model.ActionAddUser,
		TargetEmail: email,
		PerformedBy: actor.Email,
		CreatedAt:   s.now(),
	}); err != nil {
		s.logger.Warn(ctx, "audit log write failed", logger.String("target", email), logger.Error(err))
	}

	res := AddUserResult{User: u}
	if s.auth != nil {
		if err := s.auth.Invite(ctx, email, actor.DisplayName()); err != nil {
			s.logger.Warn(ctx, "invite failed", logger.String("email", email), logger.Error(err))
		} else {
			res.Invited = true
		}
	}
	s.logger.Info(ctx, "user authorized", logger.String("email", email), logger.String("by", actor.Email))
	return res, nil
}

// Users lists authorized users newest first.
func (s *Service) Users(ctx context.Context, actor auth.Identity) ([]model.AuthorizedUser, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	us, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, model.Remote("list users", err)
	}
	return us, nil
}

// AuthLogs lists audit entries newest first; limit <= 0 means all.
func (s *Service) AuthLogs(ctx context.Context, actor auth.Identity, limit int) ([]model.AuthLog, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	ls, err := s.store.ListAuthLogs(ctx, limit)
	if err != nil {
		return nil, model.Remote("list auth logs", err)
	}
	return ls, nil
}

// RegisterName sets the signed-in user's first and last name.
func (s *Service) RegisterName(ctx context.Context, actor auth.Identity, first, last string) (model.AuthorizedUser, error) {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	switch {
	case first == "":
		return model.AuthorizedUser{}, &model.ValidationError{Field: "first_name", Reason: "please enter your first name"}
	case last == "":
		return model.AuthorizedUser{}, &model.ValidationError{Field: "last_name", Reason: "please enter your last name"}
	}
	u, err := s.store.GetUserByEmail(ctx, actor.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.AuthorizedUser{}, auth.ErrNotAuthorized
		}
		return model.AuthorizedUser{}, model.Remote("load user", err)
	}
	u.FirstName, u.LastName = first, last
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return model.AuthorizedUser{}, model.Remote("register name", err)
	}
	if _, err := s.store.InsertAuthLog(ctx, model.AuthLog{
		Action:      model.ActionRegisterName,
		TargetEmail: u.Email,
		PerformedBy: u.Email,
		CreatedAt:   s.now(),
	}); err != nil {
		s.logger.Warn(ctx, "audit log write failed", logger.String("target", u.Email), logger.Error(err))
	}
	return u, nil
}

// BootstrapAdmin makes sure email is an authorized admin, and sets its
// password when one is given and none exists yet.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		u, err = s.store.InsertUser(ctx, model.AuthorizedUser{
			Email:     email,
			IsAdmin:   true,
			AddedBy:   "bootstrap",
			CreatedAt: s.now(),
		})
		if err != nil {
			return model.Remote("bootstrap admin", err)
		}
		s.logger.Info(ctx, "bootstrap admin created", logger.String("email", email))
	case err != nil:
		return model.Remote("bootstrap admin", err)
	case !u.IsAdmin:
		u.IsAdmin = true
		if err := s.store.UpdateUser(ctx, u); err != nil {
			return model.Remote("bootstrap admin", err)
		}
	}

	if password == "" || u.PasswordHash != "" || s.auth == nil {
		return nil
	}
	if _, err := s.auth.SignUp(ctx, email, password); err != nil && !errors.Is(err, auth.ErrAlreadyRegistered) {
		return err
	}
	return nil
}
