package state

import "errors"

// Sentinel kinds for state store errors.
var (
	ErrClosed    = errors.New("state store closed")
	ErrNotLoaded = errors.New("state store not loaded")
)
