package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	actions []Action
	failFor map[string]error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, action Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, action)
	if err, ok := d.failFor[action.UUID]; ok {
		return err
	}
	return nil
}

func (d *recordingDispatcher) dispatched() []Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Action(nil), d.actions...)
}

func newTestScheduler(q *Queue, d Dispatcher, now time.Time) *Scheduler {
	s := New(q, d, time.Second, nil, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestTickDispatchesOnlyDueActions(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q.Enqueue(Action{UUID: "u1", Kind: KindMigrate, DueAt: base.Add(-time.Minute)})
	q.Enqueue(Action{UUID: "u2", Kind: KindDelete, DueAt: base.Add(time.Minute)})

	d := &recordingDispatcher{}
	s := newTestScheduler(q, d, base)
	s.Tick(context.Background())

	got := d.dispatched()
	if len(got) != 1 || got[0].UUID != "u1" {
		t.Fatalf("expected only u1 dispatched, got %v", got)
	}
	if q.Len() != 1 {
		t.Fatalf("expected u2 still queued, got queue length %d", q.Len())
	}
}

func TestTickDispatchExactlyOnce(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q.Enqueue(Action{UUID: "u1", Kind: KindDelete, DueAt: base})

	d := &recordingDispatcher{}
	s := newTestScheduler(q, d, base)
	s.Tick(context.Background())
	s.Tick(context.Background())

	if got := d.dispatched(); len(got) != 1 {
		t.Fatalf("expected one dispatch across ticks, got %d", len(got))
	}
}

func TestTickErrorDoesNotBlockRemainingActions(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q.Enqueue(Action{UUID: "bad", Kind: KindMigrate, DueAt: base})
	q.Enqueue(Action{UUID: "good", Kind: KindDelete, DueAt: base})

	d := &recordingDispatcher{failFor: map[string]error{"bad": errors.New("boom")}}
	s := newTestScheduler(q, d, base)
	s.Tick(context.Background())

	got := d.dispatched()
	if len(got) != 2 {
		t.Fatalf("expected both actions attempted, got %d", len(got))
	}
	if got[1].UUID != "good" {
		t.Fatalf("expected good dispatched after bad, got %v", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	q := NewQueue()
	d := &recordingDispatcher{}
	s := New(q, d, 5*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
