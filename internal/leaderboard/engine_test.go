package leaderboard

import (
	"context"
	"testing"
	"time"
)

type memStore struct {
	entries map[Pool]Entry
}

func newMemStore() *memStore {
	return &memStore{entries: map[Pool]Entry{}}
}

func (s *memStore) Get(_ context.Context, _ string, pool Pool) (Stats, bool, error) {
	entry, ok := s.entries[pool]
	if !ok {
		return Stats{}, false, nil
	}
	return entry.Stats, true, nil
}

func (s *memStore) Upsert(_ context.Context, entry Entry) error {
	s.entries[entry.Pool] = entry
	return nil
}

func (s *memStore) PruneLocal(_ context.Context, _ string) error {
	delete(s.entries, PoolRevived)
	delete(s.entries, PoolEvent)
	return nil
}

func (s *memStore) DeleteAll(_ context.Context, _ string) error {
	s.entries = map[Pool]Entry{}
	return nil
}

func fixedEngine(store Store, event Event, now time.Time) *Engine {
	e := NewEngine(store, event, nil)
	e.now = func() time.Time { return now }
	return e
}

func TestComputeDelta(t *testing.T) {
	totals := Stats{AccountXP: 500}
	official := Stats{AccountXP: 100}

	revived := ComputeDelta(PoolRevived, totals, official, Stats{}, Stats{})
	if revived.AccountXP != 400 {
		t.Fatalf("revived delta: expected 400, got %d", revived.AccountXP)
	}

	event := ComputeDelta(PoolEvent, Stats{AccountXP: 550}, Stats{}, revived, Stats{})
	if event.AccountXP != 150 {
		t.Fatalf("event delta: expected 150, got %d", event.AccountXP)
	}
}

func TestRecordSaveRevivedPool(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.entries[PoolOfficial] = Entry{UUID: "u1", Pool: PoolOfficial, Stats: Stats{AccountXP: 100}}
	engine := fixedEngine(store, Event{}, now)

	err := engine.RecordSave(context.Background(), "u1", map[string]any{"accountXp": float64(500)})
	if err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if got := store.entries[PoolRevived].Stats.AccountXP; got != 400 {
		t.Fatalf("expected revived 400 over official 100, got %d", got)
	}
}

func TestRecordSaveEventPool(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := Event{Name: "winter", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}
	store.entries[PoolOfficial] = Entry{UUID: "u1", Pool: PoolOfficial, Stats: Stats{AccountXP: 100}}
	store.entries[PoolRevived] = Entry{UUID: "u1", Pool: PoolRevived, Stats: Stats{AccountXP: 400}}
	engine := fixedEngine(store, event, now)

	err := engine.RecordSave(context.Background(), "u1", map[string]any{"accountXp": float64(550)})
	if err != nil {
		t.Fatalf("RecordSave: %v", err)
	}

	entry := store.entries[PoolEvent]
	if entry.Stats.AccountXP != 150 {
		t.Fatalf("expected event 150, got %d", entry.Stats.AccountXP)
	}
	if entry.EventName != "winter" {
		t.Fatalf("expected event name recorded, got %q", entry.EventName)
	}
	if store.entries[PoolRevived].Stats.AccountXP != 400 {
		t.Fatal("revived baseline must not move during an event")
	}
}

func TestRecordSaveEventAccumulates(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := Event{Name: "winter", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)}
	store.entries[PoolRevived] = Entry{UUID: "u1", Pool: PoolRevived, Stats: Stats{AccountXP: 400}}
	engine := fixedEngine(store, event, now)

	engine.RecordSave(context.Background(), "u1", map[string]any{"accountXp": float64(450)})
	engine.RecordSave(context.Background(), "u1", map[string]any{"accountXp": float64(470)})

	// second write: 470 - 400 + prior 50
	if got := store.entries[PoolEvent].Stats.AccountXP; got != 120 {
		t.Fatalf("expected accumulated event 120, got %d", got)
	}
}

func TestRecordSaveNoOfficialBaseline(t *testing.T) {
	store := newMemStore()
	engine := fixedEngine(store, Event{}, time.Now())

	err := engine.RecordSave(context.Background(), "u1", map[string]any{"accountXp": float64(42)})
	if err != nil {
		t.Fatalf("RecordSave: %v", err)
	}
	if got := store.entries[PoolRevived].Stats.AccountXP; got != 42 {
		t.Fatalf("expected full totals without baseline, got %d", got)
	}
}

func TestRecordOfficialPrunesLocalRows(t *testing.T) {
	store := newMemStore()
	store.entries[PoolRevived] = Entry{UUID: "u1", Pool: PoolRevived, Stats: Stats{AccountXP: 400}}
	store.entries[PoolEvent] = Entry{UUID: "u1", Pool: PoolEvent, Stats: Stats{AccountXP: 50}}
	engine := fixedEngine(store, Event{}, time.Now())

	err := engine.RecordOfficial(context.Background(), "u1", Stats{AccountXP: 4200})
	if err != nil {
		t.Fatalf("RecordOfficial: %v", err)
	}
	if got := store.entries[PoolOfficial].Stats.AccountXP; got != 4200 {
		t.Fatalf("expected official 4200, got %d", got)
	}
	if _, ok := store.entries[PoolRevived]; ok {
		t.Fatal("revived row should be pruned")
	}
	if _, ok := store.entries[PoolEvent]; ok {
		t.Fatal("event row should be pruned")
	}
}

func TestEventWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	event := Event{Name: "winter", StartsAt: start, EndsAt: end}

	if event.Active(start.Add(-time.Second)) {
		t.Fatal("event should not be active before start")
	}
	if !event.Active(start) {
		t.Fatal("event should be active at start")
	}
	if event.Active(end) {
		t.Fatal("event should not be active at end")
	}
	if (Event{}).Active(start) {
		t.Fatal("unnamed event should never be active")
	}
}

func TestStatsFromSaveCoercions(t *testing.T) {
	save := map[string]any{
		"accountXp":        float64(100),
		"jokerXp":          int64(20),
		"baneXp":           30,
		"eliteKillsOnHero": "not a number",
	}
	stats := StatsFromSave(save)
	if stats.AccountXP != 100 || stats.JokerXP != 20 || stats.BaneXP != 30 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.EliteKillsOnHero != 0 {
		t.Fatalf("non-numeric value should read as 0, got %d", stats.EliteKillsOnHero)
	}
	if stats.HeroKillsOnElite != 0 {
		t.Fatalf("missing key should read as 0, got %d", stats.HeroKillsOnElite)
	}
}
