package workflow

import (
	"context"
	"errors"

	"github.com/KiwifruitDev/arkham-revived/internal/storage"
)

// executeDeletion purges an account once its grace period has passed. The
// external unlinks are best-effort: a dead companion service must not keep
// the account alive.
func (s *Service) executeDeletion(ctx context.Context, uuid string) {
	l := s.lockAccount(uuid)
	defer s.unlockAccount(uuid, l)

	rec, err := s.users.Get(ctx, uuid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.deletion("stale")
			return
		}
		s.logger.Error("load deletion target failed", "uuid", uuid, "error", err)
		s.metrics.deletion("error")
		return
	}
	if !rec.Lifecycle.Deleting() {
		s.logger.Warn("deletion no longer pending", "uuid", uuid, "state", string(rec.Lifecycle.State))
		s.metrics.deletion("stale")
		return
	}

	if rec.DiscordID != "" {
		if err := s.unlinker.Unlink(ctx, uuid, "discord", rec.DiscordID); err != nil {
			s.logger.Warn("discord unlink failed", "uuid", uuid, "error", err)
		}
	}
	if rec.WBID != "" {
		if err := s.unlinker.Unlink(ctx, uuid, "wbid", rec.WBID); err != nil {
			s.logger.Warn("wbid unlink failed", "uuid", uuid, "error", err)
		}
	}

	if err := s.users.Delete(ctx, uuid); err != nil {
		s.logger.Error("delete user failed", "uuid", uuid, "error", err)
		s.metrics.deletion("error")
		return
	}
	if err := s.boards.Purge(ctx, uuid); err != nil {
		s.logger.Error("purge leaderboard entries failed", "uuid", uuid, "error", err)
	}

	s.logger.Info("account deleted", "uuid", uuid)
	s.metrics.deletion("completed")
	s.publish(ctx, EventAccountDeleted, uuid, "")
}
