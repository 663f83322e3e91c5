package service

import (
	"errors"

	"github.com/okian/salle/internal/adapters/repository"
	"github.com/okian/salle/internal/domain/model"
)

// Sentinel errors returned by the service.
var (
	ErrInFlight          = errors.New("a request with this idempotency key is still in progress")
	ErrAlreadyAuthorized = errors.New(model.MsgAlreadyInvited)
	ErrExportDisabled    = errors.New("export storage is not configured")
	ErrStopped           = errors.New("service stopped; create a new one to restart")

	// ErrNotFound is the record store's sentinel, so lookups of either
	// origin match one value.
	ErrNotFound = repository.ErrNotFound
)
