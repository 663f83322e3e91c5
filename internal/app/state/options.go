package state

import (
	"time"

	"github.com/okian/salle/pkg/logger"
)

// Option configures a Store.
type Option func(*Store)

// WithOptimisticWrites applies bout writes locally before the record store
// confirms them, rolling back on failure.
func WithOptimisticWrites(enabled bool) Option {
	return func(s *Store) { s.optimistic = enabled }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
