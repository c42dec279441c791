package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// HostID identifies a host in the tracking service. The service has emitted
// both numbers and strings for it, so it is kept opaque.
type HostID string

// UnmarshalJSON accepts a JSON number or string
func (id *HostID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = HostID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("host id: %w", err)
	}
	*id = HostID(n.String())
	return nil
}

// TrackedHost represents one host entry of the tracking service
type TrackedHost struct {
	ID    HostID `json:"ID"`
	Mac   string `json:"Mac"`
	Name  string `json:"Name"`
	Known bool   `json:"Known"`
}

// MACKey returns the lookup key used to match hosts with leases
func (h TrackedHost) MACKey() string {
	return NormalizeMACKey(h.Mac)
}

// NormalizeMACKey lowercases and trims a hardware address for comparisons
func NormalizeMACKey(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}
