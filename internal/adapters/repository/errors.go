package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("record already exists")
	ErrReferenced    = errors.New("record reference violated")
	ErrUnknownDriver = errors.New("unknown store driver")
)
