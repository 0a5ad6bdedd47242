package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KiwifruitDev/arkham-revived/internal/leaderboard"
)

// MemStore is an in-memory UserStore with the same transition semantics as
// the postgres store. Used by unit tests and local runs without a database.
type MemStore struct {
	mu    sync.RWMutex
	users map[string]*UserRecord
}

func NewMemStore() *MemStore {
	return &MemStore{users: make(map[string]*UserRecord)}
}

func cloneRecord(rec *UserRecord) *UserRecord {
	c := *rec
	if rec.Inventory != nil {
		c.Inventory = append([]byte(nil), rec.Inventory...)
	}
	if rec.SaveData != nil {
		c.SaveData = append([]byte(nil), rec.SaveData...)
	}
	if rec.Lifecycle.Since != nil {
		since := *rec.Lifecycle.Since
		c.Lifecycle.Since = &since
	}
	return &c
}

func (s *MemStore) Get(_ context.Context, uuid string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[uuid]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemStore) GetByIP(_ context.Context, ipAddr string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *UserRecord
	for _, rec := range s.users {
		if rec.IPAddr != ipAddr {
			continue
		}
		if latest == nil || rec.UpdatedAt.After(latest.UpdatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return cloneRecord(latest), nil
}

func (s *MemStore) GetBySteamID(_ context.Context, steamID string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.users {
		if rec.SteamID == steamID {
			return cloneRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) Create(_ context.Context, rec *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.UUID]; ok {
		return fmt.Errorf("user %s already exists", rec.UUID)
	}
	c := cloneRecord(rec)
	if c.Lifecycle.State == "" {
		c.Lifecycle.State = LifecycleIdle
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.users[rec.UUID] = c
	return nil
}

func (s *MemStore) update(uuid string, fn func(*UserRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[uuid]
	if !ok {
		return ErrNotFound
	}
	if err := fn(rec); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) UpdateIdentity(_ context.Context, uuid, persona, steamID, wbid, ipAddr, location string) error {
	return s.update(uuid, func(rec *UserRecord) error {
		if rec.Persistent {
			return nil
		}
		rec.SteamPersona = persona
		rec.SteamID = steamID
		rec.WBID = wbid
		rec.IPAddr = ipAddr
		rec.Location = location
		return nil
	})
}

func (s *MemStore) SetDiscordID(_ context.Context, uuid, discordID string) error {
	return s.update(uuid, func(rec *UserRecord) error {
		rec.DiscordID = discordID
		return nil
	})
}

func (s *MemStore) SetPersistent(_ context.Context, uuid string, persistent bool) error {
	return s.update(uuid, func(rec *UserRecord) error {
		rec.Persistent = persistent
		return nil
	})
}

func (s *MemStore) UpdateSave(_ context.Context, uuid string, save []byte) error {
	return s.update(uuid, func(rec *UserRecord) error {
		rec.SaveData = append([]byte(nil), save...)
		return nil
	})
}

func (s *MemStore) GrantItems(_ context.Context, uuid string, items map[string]int) error {
	return s.update(uuid, func(rec *UserRecord) error {
		merged, err := mergeItemCounts(rec.Inventory, items)
		if err != nil {
			return err
		}
		rec.Inventory = merged
		return nil
	})
}

func (s *MemStore) BeginMigration(_ context.Context, uuid, credentials, ticket string, now time.Time) error {
	return s.update(uuid, func(rec *UserRecord) error {
		if rec.Lifecycle.State != LifecycleIdle {
			return fmt.Errorf("%w: expected %s", ErrWrongState, LifecycleIdle)
		}
		since := now
		rec.Lifecycle = Lifecycle{State: LifecycleMigrating, Since: &since}
		rec.Credentials = credentials
		rec.Ticket = ticket
		return nil
	})
}

func (s *MemStore) AbortMigration(_ context.Context, uuid string) error {
	return s.update(uuid, func(rec *UserRecord) error {
		if rec.Lifecycle.State != LifecycleMigrating {
			return fmt.Errorf("%w: expected %s", ErrWrongState, LifecycleMigrating)
		}
		rec.Lifecycle = Lifecycle{State: LifecycleIdle}
		rec.Credentials = ""
		rec.Ticket = ""
		return nil
	})
}

func (s *MemStore) FinishMigration(_ context.Context, uuid string, merged []byte) error {
	return s.update(uuid, func(rec *UserRecord) error {
		if rec.Lifecycle.State != LifecycleMigrating {
			return fmt.Errorf("%w: expected %s", ErrWrongState, LifecycleMigrating)
		}
		rec.SaveData = append([]byte(nil), merged...)
		rec.Migrations++
		rec.Lifecycle = Lifecycle{State: LifecycleIdle}
		rec.Credentials = ""
		rec.Ticket = ""
		return nil
	})
}

func (s *MemStore) BeginDeletion(_ context.Context, uuid string, now time.Time) error {
	return s.update(uuid, func(rec *UserRecord) error {
		if rec.Lifecycle.State != LifecycleIdle {
			return fmt.Errorf("%w: expected %s", ErrWrongState, LifecycleIdle)
		}
		since := now
		rec.Lifecycle = Lifecycle{State: LifecycleDeleting, Since: &since}
		return nil
	})
}

func (s *MemStore) ClearDeletion(_ context.Context, uuid string) error {
	return s.update(uuid, func(rec *UserRecord) error {
		if rec.Lifecycle.State != LifecycleDeleting {
			return fmt.Errorf("%w: expected %s", ErrWrongState, LifecycleDeleting)
		}
		rec.Lifecycle = Lifecycle{State: LifecycleIdle}
		return nil
	})
}

func (s *MemStore) Delete(_ context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[uuid]; !ok {
		return ErrNotFound
	}
	delete(s.users, uuid)
	return nil
}

type boardKey struct {
	uuid string
	pool leaderboard.Pool
}

// MemBoardStore is the in-memory leaderboard.Store counterpart of MemStore.
type MemBoardStore struct {
	mu      sync.RWMutex
	entries map[boardKey]leaderboard.Entry
}

func NewMemBoardStore() *MemBoardStore {
	return &MemBoardStore{entries: make(map[boardKey]leaderboard.Entry)}
}

func (s *MemBoardStore) Get(_ context.Context, uuid string, pool leaderboard.Pool) (leaderboard.Stats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[boardKey{uuid, pool}]
	if !ok {
		return leaderboard.Stats{}, false, nil
	}
	return entry.Stats, true, nil
}

func (s *MemBoardStore) Upsert(_ context.Context, entry leaderboard.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[boardKey{entry.UUID, entry.Pool}] = entry
	return nil
}

func (s *MemBoardStore) PruneLocal(_ context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, boardKey{uuid, leaderboard.PoolRevived})
	delete(s.entries, boardKey{uuid, leaderboard.PoolEvent})
	return nil
}

func (s *MemBoardStore) DeleteAll(_ context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pool := range []leaderboard.Pool{leaderboard.PoolOfficial, leaderboard.PoolRevived, leaderboard.PoolEvent} {
		delete(s.entries, boardKey{uuid, pool})
	}
	return nil
}
