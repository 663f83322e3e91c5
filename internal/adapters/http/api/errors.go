package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/adapters/repository"
	service "github.com/okian/salle/internal/app"
	"github.com/okian/salle/internal/app/state"
	"github.com/okian/salle/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("sign in required")
)

// classify maps a service error to an HTTP status and error code.
func classify(err error) (int, string) {
	var remote *model.RemoteOperationError
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrValidation), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, service.ErrAlreadyAuthorized),
		errors.Is(err, auth.ErrAlreadyRegistered),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, repository.ErrReferenced):
		return http.StatusConflict, "referenced"
	case errors.Is(err, auth.ErrNotAuthorized),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrExportDisabled),
		errors.Is(err, state.ErrClosed),
		errors.Is(err, state.ErrNotLoaded):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &remote):
		return http.StatusBadGateway, "remote_failure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError renders err with its mapped status. Validation failures
// carry the offending field; unexpected errors hide their detail.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := errorResponse{Code: code, Message: err.Error()}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Field, resp.Message = verr.Field, verr.Reason
	}
	if status == http.StatusInternalServerError {
		resp.Message = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}
