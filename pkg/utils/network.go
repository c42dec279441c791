package utils

import (
	"bytes"
	"net"
	"strconv"
	"strings"
)

// EqualMAC reports whether two hardware addresses are the same. Empty
// addresses never match anything.
func EqualMAC(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	hwA, errA := net.ParseMAC(a)
	hwB, errB := net.ParseMAC(b)
	if errA == nil && errB == nil {
		return bytes.Equal(hwA, hwB)
	}
	return strings.EqualFold(a, b)
}

// HostPort appends defaultPort to host unless it already carries a port
func HostPort(host string, defaultPort int) string {
	host = strings.TrimSpace(host)
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(defaultPort))
}
