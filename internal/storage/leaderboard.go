package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/KiwifruitDev/arkham-revived/internal/leaderboard"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BoardStore is the postgres implementation of leaderboard.Store.
type BoardStore struct {
	pool *pgxpool.Pool
}

func NewBoardStore(pool *pgxpool.Pool) *BoardStore {
	return &BoardStore{pool: pool}
}

func (s *BoardStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS leaderboard_entries (
			uuid                TEXT NOT NULL,
			pool                TEXT NOT NULL,
			event_name          TEXT NOT NULL DEFAULT '',
			account_xp          BIGINT NOT NULL DEFAULT 0,
			joker_xp            BIGINT NOT NULL DEFAULT 0,
			bane_xp             BIGINT NOT NULL DEFAULT 0,
			elite_kills_on_hero BIGINT NOT NULL DEFAULT 0,
			hero_kills_on_elite BIGINT NOT NULL DEFAULT 0,
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (uuid, pool)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure leaderboard schema: %w", err)
	}
	return nil
}

func (s *BoardStore) Get(ctx context.Context, uuid string, pool leaderboard.Pool) (leaderboard.Stats, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT account_xp, joker_xp, bane_xp, elite_kills_on_hero, hero_kills_on_elite
		FROM leaderboard_entries
		WHERE uuid = $1 AND pool = $2
	`, uuid, string(pool))

	var stats leaderboard.Stats
	err := row.Scan(&stats.AccountXP, &stats.JokerXP, &stats.BaneXP, &stats.EliteKillsOnHero, &stats.HeroKillsOnElite)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leaderboard.Stats{}, false, nil
		}
		return leaderboard.Stats{}, false, err
	}
	return stats, true, nil
}

func (s *BoardStore) Upsert(ctx context.Context, entry leaderboard.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leaderboard_entries
			(uuid, pool, event_name, account_xp, joker_xp, bane_xp, elite_kills_on_hero, hero_kills_on_elite, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (uuid, pool) DO UPDATE SET
			event_name = EXCLUDED.event_name,
			account_xp = EXCLUDED.account_xp,
			joker_xp = EXCLUDED.joker_xp,
			bane_xp = EXCLUDED.bane_xp,
			elite_kills_on_hero = EXCLUDED.elite_kills_on_hero,
			hero_kills_on_elite = EXCLUDED.hero_kills_on_elite,
			updated_at = EXCLUDED.updated_at
	`, entry.UUID, string(entry.Pool), entry.EventName,
		entry.Stats.AccountXP, entry.Stats.JokerXP, entry.Stats.BaneXP,
		entry.Stats.EliteKillsOnHero, entry.Stats.HeroKillsOnElite, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return nil
}

func (s *BoardStore) PruneLocal(ctx context.Context, uuid string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM leaderboard_entries WHERE uuid = $1 AND pool IN ($2, $3)
	`, uuid, string(leaderboard.PoolRevived), string(leaderboard.PoolEvent))
	if err != nil {
		return fmt.Errorf("prune leaderboard entries: %w", err)
	}
	return nil
}

func (s *BoardStore) DeleteAll(ctx context.Context, uuid string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM leaderboard_entries WHERE uuid = $1`, uuid)
	if err != nil {
		return fmt.Errorf("delete leaderboard entries: %w", err)
	}
	return nil
}
