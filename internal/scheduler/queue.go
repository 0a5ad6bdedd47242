// Package scheduler runs deferred account actions on a fixed tick.
package scheduler

import (
	"errors"
	"sync"
	"time"
)

// Kind identifies what a deferred action does when it fires.
type Kind string

const (
	KindMigrate Kind = "migrate"
	KindDelete  Kind = "delete"
)

// Action is a deferred operation against a single account.
type Action struct {
	UUID  string
	Kind  Kind
	DueAt time.Time
}

// ErrConflict is returned when an equal (uuid, kind) pair is already queued.
var ErrConflict = errors.New("action already queued")

// Queue holds pending actions in enqueue order. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	actions []Action
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue adds an action. At most one action per (uuid, kind) pair may be
// pending at a time.
func (q *Queue) Enqueue(action Action) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, a := range q.actions {
		if a.UUID == action.UUID && a.Kind == action.Kind {
			return ErrConflict
		}
	}
	q.actions = append(q.actions, action)
	return nil
}

// Cancel removes the pending action for (uuid, kind) and reports whether
// one was found.
func (q *Queue) Cancel(uuid string, kind Kind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, a := range q.actions {
		if a.UUID == uuid && a.Kind == kind {
			q.actions = append(q.actions[:i], q.actions[i+1:]...)
			return true
		}
	}
	return false
}

// Pending reports whether an action for (uuid, kind) is queued.
func (q *Queue) Pending(uuid string, kind Kind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, a := range q.actions {
		if a.UUID == uuid && a.Kind == kind {
			return true
		}
	}
	return false
}

// PopDue removes and returns every action whose DueAt is at or before now,
// preserving enqueue order.
func (q *Queue) PopDue(now time.Time) []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []Action
	remaining := q.actions[:0]
	for _, a := range q.actions {
		if !a.DueAt.After(now) {
			due = append(due, a)
			continue
		}
		remaining = append(remaining, a)
	}
	q.actions = remaining
	return due
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}
