package network

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsExcludedInterface(t *testing.T) {
	cases := []struct {
		name     string
		fabric   string
		excluded bool
	}{
		{"docker0", "wg-mesh", true},
		{"br-abcdef", "wg-mesh", true},
		{"wg0", "wg-mesh", true},
		{"wg-mesh", "wg-mesh", true},
		{"eth0", "wg-mesh", false},
		{"ens5", "wg-mesh", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.excluded, isExcludedInterface(c.name, c.fabric), c.name)
	}
}

func TestIsPrivate(t *testing.T) {
	assert.True(t, isPrivate(netip.MustParseAddr("10.0.0.5")))
	assert.True(t, isPrivate(netip.MustParseAddr("192.168.1.5")))
	assert.True(t, isPrivate(netip.MustParseAddr("172.16.0.5")))
	assert.False(t, isPrivate(netip.MustParseAddr("8.8.8.8")))
	assert.False(t, isPrivate(netip.MustParseAddr("fd00::1")))
}

func TestFormatAndParseEndpoint(t *testing.T) {
	ep := FormatEndpoint("203.0.113.5")
	assert.Equal(t, "203.0.113.5:51820", ep)

	ap, err := ParseEndpoint(ep)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("203.0.113.5:51820"), ap)

	hostEp := FormatEndpoint("a.example.com")
	assert.Equal(t, "a.example.com:51820", hostEp)
	_, err = ParseEndpoint(hostEp)
	assert.Error(t, err)
}
