package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/KiwifruitDev/arkham-revived/internal/storage"
)

// Info is the identity captured from a client on lookup.
type Info struct {
	Persona  string
	SteamID  string
	WBID     string
	Location string
}

// Resolver maps an incoming ticket to a user record, creating one on first
// contact. Known records get their identity fields refreshed unless the
// player locked the record with the persistent flag.
type Resolver struct {
	deriver           *Deriver
	users             storage.UserStore
	localhostOverride string
}

func NewResolver(deriver *Deriver, users storage.UserStore, localhostOverride string) *Resolver {
	return &Resolver{
		deriver:           deriver,
		users:             users,
		localhostOverride: localhostOverride,
	}
}

// Resolve returns the record for a ticket. Unknown tickets fall back to a
// best-effort IP match before a fresh record is created under the derived id.
func (r *Resolver) Resolve(ctx context.Context, ticket, ipAddr string, info Info) (*storage.UserRecord, error) {
	if ticket == "" {
		return nil, errors.New("ticket required")
	}
	uuid := r.deriver.FromTicket(ticket)
	ipAddr = NormalizeIP(ipAddr, r.localhostOverride)

	rec, err := r.users.Get(ctx, uuid)
	if err == nil {
		return r.refresh(ctx, rec, ipAddr, info)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup %s: %w", uuid, err)
	}

	if byIP, err := r.users.GetByIP(ctx, ipAddr); err == nil {
		return r.refresh(ctx, byIP, ipAddr, info)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup by ip: %w", err)
	}

	rec = &storage.UserRecord{
		UUID:         uuid,
		IPAddr:       ipAddr,
		SteamID:      info.SteamID,
		SteamPersona: info.Persona,
		WBID:         info.WBID,
		Location:     info.Location,
		SaveData:     []byte(`{}`),
	}
	if err := r.users.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", uuid, err)
	}
	return r.users.Get(ctx, uuid)
}

func (r *Resolver) refresh(ctx context.Context, rec *storage.UserRecord, ipAddr string, info Info) (*storage.UserRecord, error) {
	if err := r.users.UpdateIdentity(ctx, rec.UUID, info.Persona, info.SteamID, info.WBID, ipAddr, info.Location); err != nil {
		return nil, fmt.Errorf("refresh identity for %s: %w", rec.UUID, err)
	}
	return r.users.Get(ctx, rec.UUID)
}
