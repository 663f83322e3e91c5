package service

import (
	"time"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/adapters/export"
	"github.com/okian/salle/internal/domain/recording"
	"github.com/okian/salle/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRules sets score bounds, the winning score and the session requirement.
func WithRules(r recording.Rules) Option {
	return func(s *Service) { s.rules = r }
}

// WithOptimisticWrites applies bout writes before the record store confirms them.
func WithOptimisticWrites(enabled bool) Option {
	return func(s *Service) { s.optimistic = enabled }
}

// WithWorkerCount sets the number of change workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the change queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds remembered idempotency keys.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRefreshInterval reloads the state store periodically; zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) { s.refreshInterval = d }
}

// WithAuth sets the provider used to send invites and bootstrap the admin.
func WithAuth(p auth.Provider) Option {
	return func(s *Service) { s.auth = p }
}

// WithBroadcaster sets where fresh views are pushed after writes.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// WithExporter enables CSV uploads.
func WithExporter(e *export.Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithSeed makes simulated bouts and generated rosters deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
