package storage

import "time"

// LifecycleState is the single tagged state of a record's pending workflow.
// A record is never migrating and deleting at the same time.
type LifecycleState string

const (
	LifecycleIdle      LifecycleState = "idle"
	LifecycleMigrating LifecycleState = "migrating"
	LifecycleDeleting  LifecycleState = "deleting"
)

type Lifecycle struct {
	State LifecycleState
	Since *time.Time
}

func (l Lifecycle) Migrating() bool { return l.State == LifecycleMigrating }
func (l Lifecycle) Deleting() bool  { return l.State == LifecycleDeleting }

// UserRecord is one row per player account.
type UserRecord struct {
	UUID         string
	IPAddr       string
	SteamID      string
	SteamPersona string
	WBID         string
	DiscordID    string
	Location     string
	// Persistent locks the record against identity overwrites from new
	// lookups (player opt-in).
	Persistent bool
	Inventory  []byte
	SaveData   []byte
	Lifecycle  Lifecycle
	// Credentials and Ticket are transient snapshots held only while a
	// migration is in flight; cleared unconditionally when it terminates.
	Credentials string
	Ticket      string
	// Migrations counts completed official-server migrations. Never decremented.
	Migrations int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
