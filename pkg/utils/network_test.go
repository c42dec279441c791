package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualMAC(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff", true},
		{"aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF", true},
		{" AA:BB:CC:DD:EE:FF ", "AA:BB:CC:DD:EE:FF", true},
		{"AA:BB:CC:DD:EE:FF", "AA:BB:CC:DD:EE:00", false},
		{"", "", false},
		{"not-a-mac", "NOT-A-MAC", true},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, EqualMAC(tt.a, tt.b))
		})
	}
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "10.0.0.1:22", HostPort("10.0.0.1", 22))
	assert.Equal(t, "10.0.0.1:2222", HostPort("10.0.0.1:2222", 22))
	assert.Equal(t, "router.lan:22", HostPort(" router.lan ", 22))
	assert.Equal(t, "[fe80::1]:22", HostPort("fe80::1", 22))
	assert.Equal(t, "[fe80::1]:22", HostPort("[fe80::1]", 22))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3}))
	assert.Empty(t, SortedKeys(map[string]bool{}))
}
