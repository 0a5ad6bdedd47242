// Package leaderboard reconciles the three overlapping score pools: the
// official pool fed by completed migrations, the locally earned revived pool,
// and the time-boxed event pool. Pool deltas keep the same underlying
// progress from being counted twice across pools.
package leaderboard

import (
	"encoding/json"
	"time"
)

type Pool string

const (
	PoolOfficial Pool = "official"
	PoolRevived  Pool = "revived"
	PoolEvent    Pool = "event"
)

// Stats are the tracked save-data counters, one set per (uuid, pool).
type Stats struct {
	AccountXP        int64 `json:"accountXp"`
	JokerXP          int64 `json:"jokerXp"`
	BaneXP           int64 `json:"baneXp"`
	EliteKillsOnHero int64 `json:"eliteKillsOnHero"`
	HeroKillsOnElite int64 `json:"heroKillsOnElite"`
}

func (s Stats) Add(o Stats) Stats {
	return Stats{
		AccountXP:        s.AccountXP + o.AccountXP,
		JokerXP:          s.JokerXP + o.JokerXP,
		BaneXP:           s.BaneXP + o.BaneXP,
		EliteKillsOnHero: s.EliteKillsOnHero + o.EliteKillsOnHero,
		HeroKillsOnElite: s.HeroKillsOnElite + o.HeroKillsOnElite,
	}
}

func (s Stats) Sub(o Stats) Stats {
	return Stats{
		AccountXP:        s.AccountXP - o.AccountXP,
		JokerXP:          s.JokerXP - o.JokerXP,
		BaneXP:           s.BaneXP - o.BaneXP,
		EliteKillsOnHero: s.EliteKillsOnHero - o.EliteKillsOnHero,
		HeroKillsOnElite: s.HeroKillsOnElite - o.HeroKillsOnElite,
	}
}

// Entry is one leaderboard row. EventName is set only on the event pool.
type Entry struct {
	UUID      string
	Pool      Pool
	EventName string
	Stats     Stats
	UpdatedAt time.Time
}

// StatsFromSave reads the stat counters from a save blob's top-level keys.
// Missing or non-numeric fields read as zero.
func StatsFromSave(save map[string]any) Stats {
	return Stats{
		AccountXP:        statInt(save["accountXp"]),
		JokerXP:          statInt(save["jokerXp"]),
		BaneXP:           statInt(save["baneXp"]),
		EliteKillsOnHero: statInt(save["eliteKillsOnHero"]),
		HeroKillsOnElite: statInt(save["heroKillsOnElite"]),
	}
}

func statInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// ComputeDelta derives the pool-local contribution to store for newTotals.
// The arithmetic is order-dependent: revived is computed against official,
// and event against revived, never the reverse.
//
// The event delta uses the revived baseline current at write time, so a
// revived baseline that later changes (for example after a migration prunes
// it) shifts subsequent event deltas. That drift is the observed behavior of
// the system and is kept as-is.
func ComputeDelta(pool Pool, newTotals, official, revived, priorEvent Stats) Stats {
	switch pool {
	case PoolRevived:
		return newTotals.Sub(official)
	case PoolEvent:
		return newTotals.Sub(revived).Add(priorEvent)
	default:
		return newTotals
	}
}
