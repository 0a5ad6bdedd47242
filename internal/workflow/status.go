// Package workflow implements the deferred migration and deletion flows.
package workflow

// Status is the outcome of a lifecycle request, reported back to the game
// client through inventory grants since the wire protocol has no other
// channel for it.
type Status string

const (
	StatusMigrationStarted         Status = "migration_started"
	StatusDeletionStarted          Status = "deletion_started"
	StatusAlreadyInProgress        Status = "already_in_progress"
	StatusDeclinedDeletionPending  Status = "declined_deletion_pending"
	StatusDeclinedMigrationPending Status = "declined_migration_pending"
	StatusCancelled                Status = "cancelled"
	StatusNotCancellable           Status = "not_cancellable"
	StatusError                    Status = "error"
)

// Item ids the client renders as status messages. These are fixed by the
// game's catalog and must not change.
const (
	itemStatus           = "4a410e7a-c007-4aaf-8237-07d2ffe949c6"
	itemMigrationStarted = "1985b4d7-d02d-4bb9-999d-69948588f0c3"
	itemCloseAndWait     = "7a08ec4f-9f80-4199-925b-aa6f58759c73"
	itemDeclined         = "fba9a9bd-0b5a-4e41-a74b-c25ead882bf5"
	itemUnknownError     = "71879d11-5a23-4177-a107-8a54c4a5463d"
	itemDeletionStarted  = "27afc195-9c1a-4d2d-8f56-67e4b3475b07"
	itemNotCancellable   = "fa477238-31e0-4052-9a4e-acf98df14cd5"
	itemCancelled        = "21399935-ba00-4bbe-bfdb-bb544fd02048"
)

// Grants returns the inventory items that signal this status to the client.
func (s Status) Grants() map[string]int {
	switch s {
	case StatusMigrationStarted:
		return map[string]int{itemStatus: 1, itemMigrationStarted: 1, itemCloseAndWait: 1}
	case StatusDeletionStarted:
		return map[string]int{itemStatus: 1, itemDeletionStarted: 1}
	case StatusAlreadyInProgress, StatusDeclinedDeletionPending, StatusDeclinedMigrationPending:
		return map[string]int{itemStatus: 1, itemDeclined: 1}
	case StatusCancelled:
		return map[string]int{itemStatus: 1, itemCancelled: 1}
	case StatusNotCancellable:
		return map[string]int{itemStatus: 1, itemNotCancellable: 1}
	default:
		return map[string]int{itemStatus: 1, itemUnknownError: 1}
	}
}
