package leaderboard

import (
	"context"
	"fmt"
	"time"

	"log/slog"
)

// Store persists leaderboard rows keyed by (uuid, pool).
type Store interface {
	Get(ctx context.Context, uuid string, pool Pool) (Stats, bool, error)
	Upsert(ctx context.Context, entry Entry) error
	// PruneLocal removes the revived and event rows for a uuid; official
	// stats supersede locally earned ones.
	PruneLocal(ctx context.Context, uuid string) error
	// DeleteAll removes the uuid's rows across every pool.
	DeleteAll(ctx context.Context, uuid string) error
}

// Event is the configured time-boxed event window for the event pool.
type Event struct {
	Name     string
	StartsAt time.Time
	EndsAt   time.Time
}

func (e Event) Active(t time.Time) bool {
	if e.Name == "" || e.StartsAt.IsZero() || e.EndsAt.IsZero() {
		return false
	}
	return !t.Before(e.StartsAt) && t.Before(e.EndsAt)
}

type Engine struct {
	store  Store
	event  Event
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, event Event, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		event:  event,
		logger: logger,
		now:    time.Now,
	}
}

// RecordSave updates the player's leaderboard row for a save-data write.
// During an active event window the write lands in the event pool against the
// current revived baseline; otherwise it lands in the revived pool against
// the official baseline.
func (e *Engine) RecordSave(ctx context.Context, uuid string, save map[string]any) error {
	totals := StatsFromSave(save)
	now := e.now()

	if e.event.Active(now) {
		revived, _, err := e.store.Get(ctx, uuid, PoolRevived)
		if err != nil {
			return fmt.Errorf("read revived baseline: %w", err)
		}
		prior, _, err := e.store.Get(ctx, uuid, PoolEvent)
		if err != nil {
			return fmt.Errorf("read event accumulation: %w", err)
		}
		delta := ComputeDelta(PoolEvent, totals, Stats{}, revived, prior)
		return e.store.Upsert(ctx, Entry{
			UUID:      uuid,
			Pool:      PoolEvent,
			EventName: e.event.Name,
			Stats:     delta,
			UpdatedAt: now,
		})
	}

	official, _, err := e.store.Get(ctx, uuid, PoolOfficial)
	if err != nil {
		return fmt.Errorf("read official baseline: %w", err)
	}
	delta := ComputeDelta(PoolRevived, totals, official, Stats{}, Stats{})
	return e.store.Upsert(ctx, Entry{
		UUID:      uuid,
		Pool:      PoolRevived,
		Stats:     delta,
		UpdatedAt: now,
	})
}

// RecordOfficial stores migrated official totals and prunes the uuid's
// locally earned rows.
func (e *Engine) RecordOfficial(ctx context.Context, uuid string, totals Stats) error {
	if err := e.store.Upsert(ctx, Entry{
		UUID:      uuid,
		Pool:      PoolOfficial,
		Stats:     totals,
		UpdatedAt: e.now(),
	}); err != nil {
		return fmt.Errorf("write official entry: %w", err)
	}
	if err := e.store.PruneLocal(ctx, uuid); err != nil {
		return fmt.Errorf("prune local entries: %w", err)
	}
	return nil
}

// Purge removes every leaderboard row for a deleted account.
func (e *Engine) Purge(ctx context.Context, uuid string) error {
	return e.store.DeleteAll(ctx, uuid)
}
