package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/KiwifruitDev/arkham-revived/internal/leaderboard"
	"github.com/KiwifruitDev/arkham-revived/internal/savedata"
	"github.com/KiwifruitDev/arkham-revived/internal/storage"
)

// executeMigration runs the deferred migration once the scheduler fires it.
// Any failed step aborts the whole migration: the account returns to idle
// and its local save is left untouched.
func (s *Service) executeMigration(ctx context.Context, uuid string) {
	l := s.lockAccount(uuid)
	defer s.unlockAccount(uuid, l)

	rec, err := s.users.Get(ctx, uuid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("migration target gone", "uuid", uuid)
			s.metrics.migration("stale")
			return
		}
		s.logger.Error("load migration target failed", "uuid", uuid, "error", err)
		s.metrics.migration("error")
		return
	}
	if !rec.Lifecycle.Migrating() {
		s.logger.Warn("migration no longer pending", "uuid", uuid, "state", string(rec.Lifecycle.State))
		s.metrics.migration("stale")
		return
	}
	if rec.Credentials == "" || rec.Ticket == "" {
		s.abortMigration(ctx, uuid, "missing credentials")
		return
	}

	token, err := s.legacy.ExchangeToken(ctx, rec.Credentials, rec.Ticket)
	if err != nil {
		s.abortMigration(ctx, uuid, "token exchange failed: "+err.Error())
		return
	}
	legacyID, err := s.legacy.FetchAccount(ctx, token)
	if err != nil {
		s.abortMigration(ctx, uuid, "account lookup failed: "+err.Error())
		return
	}
	profile, err := s.legacy.FetchPrivateProfile(ctx, token, legacyID)
	if err != nil {
		s.abortMigration(ctx, uuid, "profile fetch failed: "+err.Error())
		return
	}

	merged := savedata.Merge(profile, s.overlay)
	blob, err := json.Marshal(merged)
	if err != nil {
		s.abortMigration(ctx, uuid, "encode merged save failed: "+err.Error())
		return
	}
	if err := s.users.FinishMigration(ctx, uuid, blob); err != nil {
		s.logger.Error("finish migration failed", "uuid", uuid, "error", err)
		s.metrics.migration("error")
		return
	}
	if err := s.boards.RecordOfficial(ctx, uuid, leaderboard.StatsFromSave(merged)); err != nil {
		s.logger.Error("record official stats failed", "uuid", uuid, "error", err)
	}

	s.logger.Info("migration completed", "uuid", uuid, "legacy_id", legacyID)
	s.metrics.migration("completed")
	s.publish(ctx, EventMigrationCompleted, uuid, "")
}

func (s *Service) abortMigration(ctx context.Context, uuid, reason string) {
	s.logger.Warn("migration aborted", "uuid", uuid, "reason", reason)
	if err := s.users.AbortMigration(ctx, uuid); err != nil {
		s.logger.Error("abort migration failed", "uuid", uuid, "error", err)
		s.metrics.migration("error")
		return
	}
	if err := s.users.GrantItems(ctx, uuid, StatusError.Grants()); err != nil {
		s.logger.Error("grant status items failed", "uuid", uuid, "error", err)
	}
	s.metrics.migration("aborted")
	s.publish(ctx, EventMigrationFailed, uuid, reason)
}
