package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the users table when missing. The service owns its
// schema the same way the original server did on startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			uuid            TEXT PRIMARY KEY,
			ip_addr         TEXT NOT NULL DEFAULT '',
			steam_id        TEXT NOT NULL DEFAULT '',
			steam_persona   TEXT NOT NULL DEFAULT '',
			wbid            TEXT NOT NULL DEFAULT '',
			discord_id      TEXT NOT NULL DEFAULT '',
			location        TEXT NOT NULL DEFAULT '',
			persistent      BOOLEAN NOT NULL DEFAULT FALSE,
			inventory       JSONB,
			save_data       JSONB,
			lifecycle_state TEXT NOT NULL DEFAULT 'idle',
			lifecycle_since TIMESTAMPTZ,
			credentials     TEXT NOT NULL DEFAULT '',
			ticket          TEXT NOT NULL DEFAULT '',
			migrations      INTEGER NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS users_ip_addr_idx ON users (ip_addr)`)
	if err != nil {
		return fmt.Errorf("ensure users index: %w", err)
	}
	return nil
}

const userColumns = `uuid, ip_addr, steam_id, steam_persona, wbid, discord_id, location,
	persistent, inventory, save_data, lifecycle_state, lifecycle_since,
	credentials, ticket, migrations, created_at, updated_at`

func scanUser(row pgx.Row) (*UserRecord, error) {
	var rec UserRecord
	var state string
	err := row.Scan(
		&rec.UUID, &rec.IPAddr, &rec.SteamID, &rec.SteamPersona, &rec.WBID,
		&rec.DiscordID, &rec.Location, &rec.Persistent, &rec.Inventory,
		&rec.SaveData, &state, &rec.Lifecycle.Since, &rec.Credentials,
		&rec.Ticket, &rec.Migrations, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Lifecycle.State = LifecycleState(state)
	return &rec, nil
}

func (s *Store) Get(ctx context.Context, uuid string) (*UserRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE uuid = $1`, uuid)
	return scanUser(row)
}

func (s *Store) GetByIP(ctx context.Context, ipAddr string) (*UserRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE ip_addr = $1 ORDER BY updated_at DESC LIMIT 1
	`, ipAddr)
	return scanUser(row)
}

func (s *Store) GetBySteamID(ctx context.Context, steamID string) (*UserRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE steam_id = $1`, steamID)
	return scanUser(row)
}

func (s *Store) Create(ctx context.Context, rec *UserRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (uuid, ip_addr, steam_id, steam_persona, wbid, discord_id, location,
			persistent, inventory, save_data, lifecycle_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	`, rec.UUID, rec.IPAddr, rec.SteamID, rec.SteamPersona, rec.WBID, rec.DiscordID,
		rec.Location, rec.Persistent, rec.Inventory, rec.SaveData, string(LifecycleIdle))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateIdentity(ctx context.Context, uuid, persona, steamID, wbid, ipAddr, location string) error {
	cmd, err := s.pool.Exec(ctx, `
		UPDATE users
		SET steam_persona = $2, steam_id = $3, wbid = $4, ip_addr = $5, location = $6, updated_at = now()
		WHERE uuid = $1 AND NOT persistent
	`, uuid, persona, steamID, wbid, ipAddr, location)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		// Either the record is gone or the player locked it.
		if _, err := s.Get(ctx, uuid); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SetDiscordID(ctx context.Context, uuid, discordID string) error {
	return s.exec(ctx, `UPDATE users SET discord_id = $2, updated_at = now() WHERE uuid = $1`, uuid, discordID)
}

func (s *Store) SetPersistent(ctx context.Context, uuid string, persistent bool) error {
	return s.exec(ctx, `UPDATE users SET persistent = $2, updated_at = now() WHERE uuid = $1`, uuid, persistent)
}

func (s *Store) UpdateSave(ctx context.Context, uuid string, save []byte) error {
	return s.exec(ctx, `UPDATE users SET save_data = $2, updated_at = now() WHERE uuid = $1`, uuid, save)
}

func (s *Store) GrantItems(ctx context.Context, uuid string, items map[string]int) error {
	rec, err := s.Get(ctx, uuid)
	if err != nil {
		return err
	}
	merged, err := mergeItemCounts(rec.Inventory, items)
	if err != nil {
		return fmt.Errorf("grant items: %w", err)
	}
	return s.exec(ctx, `UPDATE users SET inventory = $2, updated_at = now() WHERE uuid = $1`, uuid, merged)
}

func (s *Store) BeginMigration(ctx context.Context, uuid, credentials, ticket string, now time.Time) error {
	return s.transition(ctx, uuid, LifecycleIdle, `
		UPDATE users
		SET lifecycle_state = 'migrating', lifecycle_since = $2, credentials = $3, ticket = $4, updated_at = now()
		WHERE uuid = $1 AND lifecycle_state = 'idle'
	`, uuid, now, credentials, ticket)
}

func (s *Store) AbortMigration(ctx context.Context, uuid string) error {
	return s.transition(ctx, uuid, LifecycleMigrating, `
		UPDATE users
		SET lifecycle_state = 'idle', lifecycle_since = NULL, credentials = '', ticket = '', updated_at = now()
		WHERE uuid = $1 AND lifecycle_state = 'migrating'
	`, uuid)
}

func (s *Store) FinishMigration(ctx context.Context, uuid string, merged []byte) error {
	return s.transition(ctx, uuid, LifecycleMigrating, `
		UPDATE users
		SET save_data = $2, migrations = migrations + 1,
			lifecycle_state = 'idle', lifecycle_since = NULL, credentials = '', ticket = '', updated_at = now()
		WHERE uuid = $1 AND lifecycle_state = 'migrating'
	`, uuid, merged)
}

func (s *Store) BeginDeletion(ctx context.Context, uuid string, now time.Time) error {
	return s.transition(ctx, uuid, LifecycleIdle, `
		UPDATE users
		SET lifecycle_state = 'deleting', lifecycle_since = $2, updated_at = now()
		WHERE uuid = $1 AND lifecycle_state = 'idle'
	`, uuid, now)
}

func (s *Store) ClearDeletion(ctx context.Context, uuid string) error {
	return s.transition(ctx, uuid, LifecycleDeleting, `
		UPDATE users
		SET lifecycle_state = 'idle', lifecycle_since = NULL, updated_at = now()
		WHERE uuid = $1 AND lifecycle_state = 'deleting'
	`, uuid)
}

func (s *Store) Delete(ctx context.Context, uuid string) error {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM users WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// transition runs a guarded lifecycle update. A zero row count means the
// record is missing or not in the state the statement guards on.
func (s *Store) transition(ctx context.Context, uuid string, from LifecycleState, query string, args ...any) error {
	cmd, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := s.Get(ctx, uuid); err != nil {
			return err
		}
		return fmt.Errorf("%w: expected %s", ErrWrongState, from)
	}
	return nil
}

func mergeItemCounts(existing []byte, items map[string]int) ([]byte, error) {
	blob := struct {
		Inventory map[string]int `json:"inventory"`
	}{Inventory: map[string]int{}}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &blob); err != nil {
			return nil, fmt.Errorf("decode inventory: %w", err)
		}
		if blob.Inventory == nil {
			blob.Inventory = map[string]int{}
		}
	}
	for id, n := range items {
		blob.Inventory[id] += n
	}
	return json.Marshal(blob)
}
