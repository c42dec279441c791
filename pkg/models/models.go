package models

import (
	"maps"
	"net/netip"
	"slices"
	"strings"
)

// AllScope is the scope of leases that carry no explicit server attribute.
// RouterOS spells the same thing server=all, so both land here.
const AllScope = "all"

// Attribute names the reconcilers interpret. Everything else is opaque.
const (
	AttrAddress = "address"
	AttrMAC     = "mac-address"
	AttrServer  = "server"
	AttrComment = "comment"
	AttrName    = "name"
)

// Attributes is the decoded key=value content of one router export line
type Attributes map[string]string

// Get returns the attribute value or def when the key is absent
func (a Attributes) Get(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

// LeaseRecord is a single static lease as exported by a router
type LeaseRecord struct {
	Attributes Attributes `json:"attributes"`
	Raw        string     `json:"raw"` // line without the "lease add" prefix
}

// Address returns the lease IP address
func (r LeaseRecord) Address() string {
	return r.Attributes[AttrAddress]
}

// MAC returns the lease hardware address as written by the router
func (r LeaseRecord) MAC() string {
	return r.Attributes[AttrMAC]
}

// Comment returns the lease comment, empty when unset
func (r LeaseRecord) Comment() string {
	return r.Attributes.Get(AttrComment, "")
}

// ReservationSet holds every static lease of one router grouped by DHCP server
type ReservationSet struct {
	Scopes      map[string]map[string]LeaseRecord `json:"scopes"`
	KnownScopes map[string]struct{}               `json:"-"`
}

// NewReservationSet creates an empty reservation set
func NewReservationSet() *ReservationSet {
	return &ReservationSet{
		Scopes:      make(map[string]map[string]LeaseRecord),
		KnownScopes: make(map[string]struct{}),
	}
}

// DeclareScope registers a DHCP server even if it ends up without leases
func (s *ReservationSet) DeclareScope(name string) {
	s.KnownScopes[name] = struct{}{}
	if _, ok := s.Scopes[name]; !ok {
		s.Scopes[name] = make(map[string]LeaseRecord)
	}
}

// Put stores a lease under scope, replacing any lease at the same address
func (s *ReservationSet) Put(scope string, rec LeaseRecord) {
	if scope == "" {
		scope = AllScope
	}
	leases, ok := s.Scopes[scope]
	if !ok {
		leases = make(map[string]LeaseRecord)
		s.Scopes[scope] = leases
	}
	leases[rec.Address()] = rec
}

// Scope returns the leases of a scope and whether the scope exists
func (s *ReservationSet) Scope(name string) (map[string]LeaseRecord, bool) {
	leases, ok := s.Scopes[name]
	return leases, ok
}

// ScopeNames returns all scope names in sorted order
func (s *ReservationSet) ScopeNames() []string {
	return slices.Sorted(maps.Keys(s.Scopes))
}

// LeaseCount returns the number of leases across all scopes
func (s *ReservationSet) LeaseCount() int {
	n := 0
	for _, leases := range s.Scopes {
		n += len(leases)
	}
	return n
}

// Clone returns a deep copy of the set
func (s *ReservationSet) Clone() *ReservationSet {
	out := NewReservationSet()
	for name := range s.KnownScopes {
		out.KnownScopes[name] = struct{}{}
	}
	for name, leases := range s.Scopes {
		copied := make(map[string]LeaseRecord, len(leases))
		for ip, rec := range leases {
			copied[ip] = LeaseRecord{Attributes: maps.Clone(rec.Attributes), Raw: rec.Raw}
		}
		out.Scopes[name] = copied
	}
	return out
}

// SortedAddresses returns the keys of a scope mapping in ascending IP order.
// Keys that do not parse as IPs sort after valid ones, lexically.
func SortedAddresses(leases map[string]LeaseRecord) []string {
	keys := slices.Collect(maps.Keys(leases))
	slices.SortFunc(keys, CompareAddresses)
	return keys
}

// CompareAddresses orders two address strings numerically when possible
func CompareAddresses(a, b string) int {
	ipA, errA := netip.ParseAddr(a)
	ipB, errB := netip.ParseAddr(b)
	switch {
	case errA == nil && errB == nil:
		return ipA.Compare(ipB)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
