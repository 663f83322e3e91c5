package model

import (
	"errors"
	"fmt"
)

// ErrValidation matches every input rejection raised before the record store is called.
var ErrValidation = errors.New("validation failed")

// Validation messages shown to users verbatim.
const (
	MsgSameFencer      = "please select different fencers"
	MsgNotAuthorized   = "this email is not authorized. please contact the administrator."
	MsgAlreadyActive   = "please end the current session before starting a new one"
	MsgNoActiveSession = "please start a session before recording bouts"
	MsgAlreadyInvited  = "this email is already authorized"
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NoActiveSessionError is returned when a bout is recorded outside a session.
type NoActiveSessionError struct{}

func (*NoActiveSessionError) Error() string { return MsgNoActiveSession }

// Is makes errors.Is(err, ErrValidation) hold.
func (*NoActiveSessionError) Is(target error) bool { return target == ErrValidation }

// RemoteOperationError wraps a record store or auth provider failure.
type RemoteOperationError struct {
	Op  string
	Err error
}

func (e *RemoteOperationError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

// Remote wraps err as a RemoteOperationError unless it is nil or already one.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var roe *RemoteOperationError
	if errors.As(err, &roe) {
		return err
	}
	return &RemoteOperationError{Op: op, Err: err}
}
