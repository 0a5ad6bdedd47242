// Package identity derives stable account identifiers from game tickets.
// The derivation is a deterministic hash keyed by a server-private value,
// not a security boundary: the same ticket always maps to the same id.
package identity

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Deriver struct {
	key string
}

func NewDeriver(key string) (*Deriver, error) {
	if key == "" {
		return nil, errors.New("identity: derivation key required")
	}
	return &Deriver{key: key}, nil
}

// FromTicket maps a bearer ticket to a stable v5 UUID over key:ticket.
func (d *Deriver) FromTicket(ticket string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(d.key+":"+ticket)).String()
}

// NormalizeIP strips IPv4-mapped prefixes and rewrites loopback addresses so
// best-effort IP re-identification behaves the same behind a local proxy.
func NormalizeIP(addr, localhostOverride string) string {
	addr = strings.TrimPrefix(addr, "::ffff:")
	if addr == "::1" {
		addr = "127.0.0.1"
	}
	if addr == "127.0.0.1" && localhostOverride != "" {
		addr = localhostOverride
	}
	return addr
}
