// Package service is the application core behind the HTTP API: it records
// bouts, manages sessions and users, and computes views from the state store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/adapters/export"
	eventqueue "github.com/okian/salle/internal/adapters/mq/queue"
	workerpool "github.com/okian/salle/internal/adapters/mq/worker"
	"github.com/okian/salle/internal/adapters/repository"
	"github.com/okian/salle/internal/app/state"
	"github.com/okian/salle/internal/domain/dedupe"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/recording"
	"github.com/okian/salle/internal/domain/roster"
	"github.com/okian/salle/pkg/logger"
)

const (
	defaultWorkerCount = 2
	defaultQueueSize   = 1024
	defaultDedupeSize  = 10_000
	shutdownTimeout    = 10 * time.Second
)

// Broadcaster pushes messages to live clients. live.Hub implements it.
type Broadcaster interface {
	Broadcast(room, msgType string, payload any) error
	HasClients(room string) bool
}

// Service implements the API dependencies for the club tracker.
type Service struct {
	store repository.Store
	state *state.Store

	validator *recording.Validator
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool

	simMu     sync.Mutex
	simulator *recording.Simulator
	roster    *roster.Generator

	// sessionMu serialises session lifecycle changes.
	sessionMu sync.Mutex

	auth        auth.Provider
	broadcaster Broadcaster
	exporter    *export.Exporter

	rules           recording.Rules
	optimistic      bool
	workerCount     int
	queueSize       int
	dedupeSize      int
	refreshInterval time.Duration
	seed            uint64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup

	now    func() time.Time
	logger logger.Logger
}

// New wires the service over a record store. Call Start before serving.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		rules:       recording.DefaultRules(),
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.validator = recording.NewValidator(s.rules)
	s.state = state.New(store,
		state.WithOptimisticWrites(s.optimistic),
		state.WithLogger(s.logger.Named("state")),
		state.WithClock(s.now),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	var simOpts []recording.SimulatorOption
	if s.seed != 0 {
		simOpts = append(simOpts, recording.WithSeed(s.seed))
	}
	s.simulator = recording.NewSimulator(s.rules, simOpts...)
	s.roster = roster.New(s.seed)
	return s
}

// Start loads the state store and launches the change workers and the
// refresh loop. It is a no-op when already started. A stopped Service
// cannot be restarted and returns ErrStopped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting club service...")
	if err := s.state.Load(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.HandlerFunc(s.handleChange),
		workerpool.WithLogger(s.logger.Named("worker")))
	s.pool.Start(runCtx)

	if s.refreshInterval > 0 {
		s.loops.Add(1)
		go s.refreshLoop(runCtx)
	}

	s.started = true
	snap := s.state.Snapshot()
	s.logger.Info(ctx, "club service started",
		logger.Int("fencers", len(snap.Fencers)),
		logger.Int("bouts", len(snap.Bouts)),
		logger.Int("workers", s.workerCount),
		logger.Bool("optimistic_writes", s.optimistic),
	)
	return nil
}

// Stop drains the change queue, stops background loops and closes the state store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping club service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()
	s.loops.Wait()
	_ = s.state.Close()
	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "club service stopped")
}

func (s *Service) refreshLoop(ctx context.Context) {
	defer s.loops.Done()
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn(ctx, "periodic refresh failed", logger.Error(err))
			}
		}
	}
}

// Refresh reloads the state store from the record store.
func (s *Service) Refresh(ctx context.Context) (state.Snapshot, error) {
	if err := s.state.Load(ctx); err != nil {
		return s.state.Snapshot(), err
	}
	s.notify(ctx, model.ChangeRefreshed, nil, 0)
	return s.state.Snapshot(), nil
}

// State returns the current snapshot.
func (s *Service) State() state.Snapshot { return s.state.Snapshot() }

// Rules returns the recording rules in force.
func (s *Service) Rules() recording.Rules { return s.rules }

// Ping checks the record store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return model.Remote("ping record store", err)
	}
	return nil
}

// notify queues a change for the workers. A full queue only delays live
// clients until the next write or refresh.
func (s *Service) notify(ctx context.Context, kind model.ChangeKind, sessionID *int64, entityID int64) {
	c := model.Change{
		ID:        uuid.NewString(),
		Kind:      kind,
		SessionID: sessionID,
		EntityID:  entityID,
		At:        s.now(),
	}
	if err := s.queue.Enqueue(ctx, c); err != nil {
		s.logger.Debug(ctx, "change not queued",
			logger.String("kind", string(kind)), logger.Error(err))
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	snap := s.state.Snapshot()
	out := map[string]any{
		"started":           started,
		"phase":             snap.Phase.String(),
		"loading":           snap.Loading,
		"fencers":           len(snap.Fencers),
		"bouts":             len(snap.Bouts),
		"sessions":          len(snap.Sessions),
		"queueLength":       s.queue.Len(),
		"idempotencyKeys":   s.deduper.Size(),
		"optimisticWrites":  s.optimistic,
		"exportEnabled":     s.exporter.Enabled(),
		"workerCount":       s.workerCount,
		"refreshIntervalMs": s.refreshInterval.Milliseconds(),
	}
	if !snap.LoadedAt.IsZero() {
		out["loadedAt"] = snap.LoadedAt
	}
	if snap.Active != nil {
		out["activeSession"] = snap.Active.ID
	}
	return out
}
