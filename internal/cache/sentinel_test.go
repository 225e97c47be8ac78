package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSwitchMaster(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		addr    string
		ok      bool
	}{
		{
			name:    "watched master",
			payload: "wormhole 10.0.0.1 6379 10.0.0.2 6380",
			addr:    "10.0.0.2:6380",
			ok:      true,
		},
		{
			name:    "ipv6 primary",
			payload: "wormhole ::1 6379 fe80::2 6379",
			addr:    "[fe80::2]:6379",
			ok:      true,
		},
		{
			name:    "other master",
			payload: "other 10.0.0.1 6379 10.0.0.2 6380",
		},
		{
			name:    "malformed",
			payload: "wormhole 10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok := parseSwitchMaster(tt.payload, "wormhole")

			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.addr, addr)
		})
	}
}
