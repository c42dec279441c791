package static

import (
	"strings"

	"leasesync/internal/dhcp"
	"leasesync/pkg/models"
	"leasesync/pkg/utils"
)

// Kind is the type of change applied to a slave router
type Kind int

const (
	// Remove deletes every lease matching the action filters
	Remove Kind = iota
	// Add creates a lease from a master export line
	Add
)

func (k Kind) String() string {
	switch k {
	case Remove:
		return "remove"
	case Add:
		return "add"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Filter is one key=value clause of a RouterOS find expression
type Filter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (f Filter) String() string {
	value := f.Value
	if dhcp.NeedsQuoting(value) {
		value = dhcp.Quote(value)
	}
	return f.Key + "=" + value
}

// Action is a single lease change to run on a slave router
type Action struct {
	Kind  Kind     `json:"kind"`
	Scope string   `json:"scope"`
	Match []Filter `json:"match,omitempty"`
	Raw   string   `json:"raw,omitempty"`
}

// Command renders the action as a RouterOS CLI command
func (a Action) Command() string {
	switch a.Kind {
	case Add:
		return dhcp.LeasePath + " add " + a.Raw
	default:
		clauses := make([]string, 0, len(a.Match))
		for _, f := range a.Match {
			clauses = append(clauses, f.String())
		}
		return dhcp.LeasePath + " remove [find " + strings.Join(clauses, " ") + "]"
	}
}

func (a Action) String() string {
	return a.Command()
}

// scopeFilters returns the filters selecting leases of scope. Leases without
// a server live on every server, so the "all" scope adds no clause.
func scopeFilters(scope string) []Filter {
	if scope == models.AllScope {
		return nil
	}
	return []Filter{{Key: models.AttrServer, Value: scope}}
}

func removeAction(scope, key, value string) Action {
	match := append(scopeFilters(scope), Filter{Key: key, Value: value})
	return Action{Kind: Remove, Scope: scope, Match: match}
}

// Reconcile computes the actions that make slave carry every master lease.
// Scopes the slave does not declare cannot receive leases and are returned
// instead. Output is ordered by scope name, then by IP.
func Reconcile(master, slave *models.ReservationSet) ([]Action, []string) {
	var actions []Action
	var missing []string

	for _, scope := range master.ScopeNames() {
		slaveLeases, ok := slave.Scope(scope)
		if !ok && scope != models.AllScope {
			missing = append(missing, scope)
			continue
		}

		masterLeases, _ := master.Scope(scope)
		for _, ip := range models.SortedAddresses(masterLeases) {
			actions = append(actions, reconcileLease(scope, ip, masterLeases[ip], slaveLeases)...)
		}
	}

	return actions, missing
}

func reconcileLease(scope, ip string, want models.LeaseRecord, slaveLeases map[string]models.LeaseRecord) []Action {
	have, present := slaveLeases[ip]
	if present && have.Raw == want.Raw {
		return nil
	}

	var actions []Action
	if conflictIP := findConflict(ip, want.MAC(), slaveLeases); conflictIP != "" {
		actions = append(actions, removeAction(scope, models.AttrMAC, want.MAC()))
	}
	if present {
		actions = append(actions, removeAction(scope, models.AttrAddress, ip))
	}

	return append(actions, Action{Kind: Add, Scope: scope, Raw: want.Raw})
}

// findConflict returns the lowest slave address other than ip that holds mac
func findConflict(ip, mac string, slaveLeases map[string]models.LeaseRecord) string {
	if mac == "" {
		return ""
	}
	for _, candidate := range models.SortedAddresses(slaveLeases) {
		if candidate == ip {
			continue
		}
		if utils.EqualMAC(slaveLeases[candidate].MAC(), mac) {
			return candidate
		}
	}
	return ""
}
