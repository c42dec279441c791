package hosts

import (
	"strings"

	"leasesync/pkg/models"
)

// PresenceKind is the type of change applied to a tracked host
type PresenceKind int

const (
	// Rename sets the display name of a host
	Rename PresenceKind = iota
	// MarkKnown flips an unknown host to known
	MarkKnown
	// UnmarkKnown flips a known host back to unknown
	UnmarkKnown
)

func (k PresenceKind) String() string {
	switch k {
	case Rename:
		return "rename"
	case MarkKnown:
		return "mark_known"
	case UnmarkKnown:
		return "unmark_known"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k PresenceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsToggle reports whether the action flips the known flag
func (k PresenceKind) IsToggle() bool {
	return k == MarkKnown || k == UnmarkKnown
}

// PresenceAction is one call against the tracking service
type PresenceAction struct {
	Kind PresenceKind  `json:"kind"`
	ID   models.HostID `json:"id"`
	Name string        `json:"name"`
}

// ReconcilePresence computes the calls that make the tracking service list
// exactly the master's leased MACs as known, named after the lease comment.
// The service only offers a toggle for the known flag, so toggles are gated
// on the flag as read in hosts.
func ReconcilePresence(master *models.ReservationSet, hosts []models.TrackedHost) []PresenceAction {
	byMAC := make(map[string]models.TrackedHost, len(hosts))
	for _, h := range hosts {
		byMAC[h.MACKey()] = h
	}

	var actions []PresenceAction
	authoritative := make(map[string]struct{})

	for _, scope := range master.ScopeNames() {
		leases, _ := master.Scope(scope)
		for _, ip := range models.SortedAddresses(leases) {
			rec := leases[ip]
			key := models.NormalizeMACKey(rec.MAC())
			if key == "" {
				continue
			}
			authoritative[key] = struct{}{}

			host, ok := byMAC[key]
			if !ok {
				continue
			}

			// applied state is kept so a MAC leased in several scopes acts once
			name := rec.Comment()
			if !sameName(name, host.Name) {
				actions = append(actions, PresenceAction{Kind: Rename, ID: host.ID, Name: name})
				host.Name = name
			}
			if !host.Known {
				actions = append(actions, PresenceAction{Kind: MarkKnown, ID: host.ID, Name: name})
				host.Known = true
			}
			byMAC[key] = host
		}
	}

	for _, h := range hosts {
		if _, ok := authoritative[h.MACKey()]; ok {
			continue
		}
		if h.Known {
			actions = append(actions, PresenceAction{Kind: UnmarkKnown, ID: h.ID, Name: h.Name})
		}
	}

	return actions
}

// sameName compares a lease comment with a tracked name. An empty comment is
// stored by the service as BlankName.
func sameName(comment, tracked string) bool {
	if strings.TrimSpace(comment) == "" {
		return tracked == "" || tracked == BlankName
	}
	return comment == tracked
}
