package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("user not found")
	// ErrWrongState is returned when a lifecycle transition is attempted
	// from a state it is not valid in.
	ErrWrongState = errors.New("record in wrong lifecycle state")
)

// UserStore is keyed record storage for player accounts: lookup by primary
// key and by the secondary identities used for best-effort re-identification.
type UserStore interface {
	Get(ctx context.Context, uuid string) (*UserRecord, error)
	GetByIP(ctx context.Context, ipAddr string) (*UserRecord, error)
	GetBySteamID(ctx context.Context, steamID string) (*UserRecord, error)

	Create(ctx context.Context, rec *UserRecord) error
	// UpdateIdentity refreshes the identity fields captured on lookup.
	// Records with Persistent set are left untouched.
	UpdateIdentity(ctx context.Context, uuid, persona, steamID, wbid, ipAddr, location string) error
	SetDiscordID(ctx context.Context, uuid, discordID string) error
	SetPersistent(ctx context.Context, uuid string, persistent bool) error

	UpdateSave(ctx context.Context, uuid string, save []byte) error
	// GrantItems bumps item counts in the inventory blob, creating it from
	// scratch when absent.
	GrantItems(ctx context.Context, uuid string, items map[string]int) error

	// BeginMigration moves an idle record to Migrating and snapshots the
	// credentials/ticket pair used later by the remote pull.
	BeginMigration(ctx context.Context, uuid, credentials, ticket string, now time.Time) error
	// AbortMigration returns the record to idle and clears the snapshots,
	// leaving the save untouched.
	AbortMigration(ctx context.Context, uuid string) error
	// FinishMigration writes the merged save, increments the migration
	// counter and clears the migration state in one step.
	FinishMigration(ctx context.Context, uuid string, merged []byte) error

	BeginDeletion(ctx context.Context, uuid string, now time.Time) error
	ClearDeletion(ctx context.Context, uuid string) error
	Delete(ctx context.Context, uuid string) error
}
