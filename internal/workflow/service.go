package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KiwifruitDev/arkham-revived/internal/leaderboard"
	"github.com/KiwifruitDev/arkham-revived/internal/scheduler"
	"github.com/KiwifruitDev/arkham-revived/internal/social"
	"github.com/KiwifruitDev/arkham-revived/internal/storage"
	"github.com/KiwifruitDev/arkham-revived/libs/kafka"
)

// LegacyClient covers the three legacy calls a migration makes.
type LegacyClient interface {
	ExchangeToken(ctx context.Context, credentials, ticket string) (string, error)
	FetchAccount(ctx context.Context, token string) (string, error)
	FetchPrivateProfile(ctx context.Context, token, userID string) (map[string]any, error)
}

// Deps carries everything the workflow service needs.
type Deps struct {
	Users     storage.UserStore
	Boards    *leaderboard.Engine
	Queue     *scheduler.Queue
	Legacy    LegacyClient
	Unlinker  social.Unlinker
	Publisher kafka.Publisher
	Overlay   map[string]any
	Topic     string

	MigrateDelay time.Duration
	DeleteDelay  time.Duration
	CancelWindow time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
}

// Service owns the account lifecycle. Requests transition the account into
// a pending state and queue a deferred action; the scheduler later hands
// the action back through Dispatch.
type Service struct {
	users     storage.UserStore
	boards    *leaderboard.Engine
	queue     *scheduler.Queue
	legacy    LegacyClient
	unlinker  social.Unlinker
	publisher kafka.Publisher
	overlay   map[string]any
	topic     string

	migrateDelay time.Duration
	deleteDelay  time.Duration
	cancelWindow time.Duration

	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	locksMu sync.Mutex
	locks   map[string]*accountLock
	wg      sync.WaitGroup
}

// accountLock serializes lifecycle work for a single account. A migration
// holds its lock across the legacy HTTP chain, so locks must never be
// shared between accounts.
type accountLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	unlinker := deps.Unlinker
	if unlinker == nil {
		unlinker = social.NoopUnlinker{}
	}
	overlay := deps.Overlay
	if overlay == nil {
		overlay = map[string]any{}
	}
	return &Service{
		users:        deps.Users,
		boards:       deps.Boards,
		queue:        deps.Queue,
		legacy:       deps.Legacy,
		unlinker:     unlinker,
		publisher:    deps.Publisher,
		overlay:      overlay,
		topic:        deps.Topic,
		migrateDelay: deps.MigrateDelay,
		deleteDelay:  deps.DeleteDelay,
		cancelWindow: deps.CancelWindow,
		logger:       logger,
		metrics:      deps.Metrics,
		now:          time.Now,
		locks:        make(map[string]*accountLock),
	}
}

func (s *Service) lockAccount(uuid string) *accountLock {
	s.locksMu.Lock()
	l, ok := s.locks[uuid]
	if !ok {
		l = &accountLock{}
		s.locks[uuid] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Service) unlockAccount(uuid string, l *accountLock) {
	l.mu.Unlock()

	s.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, uuid)
	}
	s.locksMu.Unlock()
}

// RequestMigration stores the caller's legacy credentials, marks the account
// migrating and queues the actual migration to run after the configured
// delay. The returned status is also granted to the account's inventory.
func (s *Service) RequestMigration(ctx context.Context, uuid, credentials, ticket string) (Status, error) {
	l := s.lockAccount(uuid)
	defer s.unlockAccount(uuid, l)

	status, err := s.requestMigration(ctx, uuid, credentials, ticket)
	s.metrics.request(string(scheduler.KindMigrate), status)
	if grantErr := s.users.GrantItems(ctx, uuid, status.Grants()); grantErr != nil {
		s.logger.Error("grant status items failed", "uuid", uuid, "status", string(status), "error", grantErr)
	}
	return status, err
}

func (s *Service) requestMigration(ctx context.Context, uuid, credentials, ticket string) (Status, error) {
	rec, err := s.users.Get(ctx, uuid)
	if err != nil {
		return StatusError, fmt.Errorf("load user %s: %w", uuid, err)
	}
	switch {
	case rec.Lifecycle.Migrating():
		return StatusAlreadyInProgress, nil
	case rec.Lifecycle.Deleting():
		return StatusDeclinedDeletionPending, nil
	}

	now := s.now()
	if err := s.users.BeginMigration(ctx, uuid, credentials, ticket, now); err != nil {
		if errors.Is(err, storage.ErrWrongState) {
			return StatusAlreadyInProgress, nil
		}
		return StatusError, fmt.Errorf("begin migration for %s: %w", uuid, err)
	}
	action := scheduler.Action{UUID: uuid, Kind: scheduler.KindMigrate, DueAt: now.Add(s.migrateDelay)}
	if err := s.queue.Enqueue(action); err != nil {
		if abortErr := s.users.AbortMigration(ctx, uuid); abortErr != nil {
			s.logger.Error("abort migration after enqueue conflict failed", "uuid", uuid, "error", abortErr)
		}
		if errors.Is(err, scheduler.ErrConflict) {
			return StatusAlreadyInProgress, nil
		}
		return StatusError, fmt.Errorf("queue migration for %s: %w", uuid, err)
	}

	s.logger.Info("migration queued", "uuid", uuid, "due_at", action.DueAt)
	s.publish(ctx, EventMigrationRequested, uuid, "")
	return StatusMigrationStarted, nil
}

// RequestDeletion queues a deferred deletion. Asking again while the cancel
// window is open withdraws the pending deletion instead.
func (s *Service) RequestDeletion(ctx context.Context, uuid string) (Status, error) {
	l := s.lockAccount(uuid)
	defer s.unlockAccount(uuid, l)

	status, err := s.requestDeletion(ctx, uuid)
	s.metrics.request(string(scheduler.KindDelete), status)
	if grantErr := s.users.GrantItems(ctx, uuid, status.Grants()); grantErr != nil {
		s.logger.Error("grant status items failed", "uuid", uuid, "status", string(status), "error", grantErr)
	}
	return status, err
}

func (s *Service) requestDeletion(ctx context.Context, uuid string) (Status, error) {
	rec, err := s.users.Get(ctx, uuid)
	if err != nil {
		return StatusError, fmt.Errorf("load user %s: %w", uuid, err)
	}
	now := s.now()

	switch {
	case rec.Lifecycle.Deleting():
		if rec.Lifecycle.Since != nil && now.Sub(*rec.Lifecycle.Since) >= s.cancelWindow {
			return StatusNotCancellable, nil
		}
		if !s.queue.Cancel(uuid, scheduler.KindDelete) {
			return StatusNotCancellable, nil
		}
		if err := s.users.ClearDeletion(ctx, uuid); err != nil {
			return StatusError, fmt.Errorf("clear deletion for %s: %w", uuid, err)
		}
		s.logger.Info("deletion cancelled", "uuid", uuid)
		s.publish(ctx, EventDeletionCancelled, uuid, "")
		return StatusCancelled, nil
	case rec.Lifecycle.Migrating():
		return StatusDeclinedMigrationPending, nil
	}

	if err := s.users.BeginDeletion(ctx, uuid, now); err != nil {
		if errors.Is(err, storage.ErrWrongState) {
			return StatusAlreadyInProgress, nil
		}
		return StatusError, fmt.Errorf("begin deletion for %s: %w", uuid, err)
	}
	action := scheduler.Action{UUID: uuid, Kind: scheduler.KindDelete, DueAt: now.Add(s.deleteDelay)}
	if err := s.queue.Enqueue(action); err != nil {
		if clearErr := s.users.ClearDeletion(ctx, uuid); clearErr != nil {
			s.logger.Error("clear deletion after enqueue conflict failed", "uuid", uuid, "error", clearErr)
		}
		if errors.Is(err, scheduler.ErrConflict) {
			return StatusAlreadyInProgress, nil
		}
		return StatusError, fmt.Errorf("queue deletion for %s: %w", uuid, err)
	}

	s.logger.Info("deletion queued", "uuid", uuid, "due_at", action.DueAt)
	s.publish(ctx, EventDeletionRequested, uuid, "")
	return StatusDeletionStarted, nil
}

// Dispatch runs a due action in the background. The scheduler's tick must
// not block on legacy HTTP calls.
func (s *Service) Dispatch(ctx context.Context, action scheduler.Action) error {
	var run func(context.Context, string)
	switch action.Kind {
	case scheduler.KindMigrate:
		run = s.executeMigration
	case scheduler.KindDelete:
		run = s.executeDeletion
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(bg, action.UUID)
	}()
	return nil
}

// Wait blocks until every in-flight workflow has finished. Used on shutdown
// and by tests.
func (s *Service) Wait() {
	s.wg.Wait()
}
