package queue

import "errors"

// Reasons an enqueue can be refused.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
