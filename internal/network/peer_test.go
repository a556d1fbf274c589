package network

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeer_CalculateStatus_WithinConnectionTimeout_NoHandshake(t *testing.T) {
	p := &Peer{Config: PeerConfig{HasEndpoint: true}}
	t0 := time.Now()
	p.LastEndpointChangeTime = t0

	status := p.CalculateStatus(t0.Add(5 * time.Second))
	assert.Equal(t, PeerStatusUnknown, status)
}

func TestPeer_CalculateStatus_PastConnectionTimeout_NoHandshake(t *testing.T) {
	p := &Peer{Config: PeerConfig{HasEndpoint: true}}
	t0 := time.Now()
	p.LastEndpointChangeTime = t0

	status := p.CalculateStatus(t0.Add(endpointConnectionTimeout + time.Second))
	assert.Equal(t, PeerStatusDown, status)
}

func TestPeer_CalculateStatus_HandshakeAfterEndpointChange(t *testing.T) {
	p := &Peer{Config: PeerConfig{HasEndpoint: true}}
	t0 := time.Now()
	p.LastEndpointChangeTime = t0
	p.LastHandshakeTime = t0.Add(2 * time.Second)

	status := p.CalculateStatus(t0.Add(20 * time.Second))
	assert.Equal(t, PeerStatusUp, status)
}

func TestPeer_CalculateStatus_EstablishedPeerGoesDownAfterPeerDownInterval(t *testing.T) {
	p := &Peer{Config: PeerConfig{HasEndpoint: true}}
	t0 := time.Now()
	p.LastEndpointChangeTime = t0.Add(-peerDownInterval * 2)
	p.LastHandshakeTime = t0.Add(-peerDownInterval * 2)

	status := p.CalculateStatus(t0)
	assert.Equal(t, PeerStatusDown, status)
}

func TestPeer_CalculateStatus_EstablishedPeerStaysUpWithRecentHandshake(t *testing.T) {
	p := &Peer{Config: PeerConfig{HasEndpoint: true}}
	t0 := time.Now()
	p.LastEndpointChangeTime = t0.Add(-peerDownInterval * 2)
	p.LastHandshakeTime = t0.Add(-10 * time.Second)

	status := p.CalculateStatus(t0)
	assert.Equal(t, PeerStatusUp, status)
}

func TestPeer_CalculateStatus_NoEndpointNeverDown(t *testing.T) {
	p := &Peer{Config: PeerConfig{HasEndpoint: false}}
	t0 := time.Now()
	p.LastEndpointChangeTime = t0.Add(-peerDownInterval * 2)

	status := p.CalculateStatus(t0)
	assert.Equal(t, PeerStatusUnknown, status)
}

func TestRotateEndpoint(t *testing.T) {
	candidates := []string{"a:51820", "b:51820", "c:51820"}

	next, changed := RotateEndpoint(candidates, "a:51820")
	assert.True(t, changed)
	assert.Equal(t, "b:51820", next)

	next, changed = RotateEndpoint(candidates, "c:51820")
	assert.True(t, changed)
	assert.Equal(t, "a:51820", next)

	next, changed = RotateEndpoint(candidates, "unknown:51820")
	assert.True(t, changed)
	assert.Equal(t, "a:51820", next)
}

func TestRotateEndpoint_SingleOrEmpty(t *testing.T) {
	next, changed := RotateEndpoint([]string{"a:51820"}, "a:51820")
	assert.False(t, changed)
	assert.Equal(t, "a:51820", next)

	next, changed = RotateEndpoint(nil, "a:51820")
	assert.False(t, changed)
	assert.Equal(t, "", next)
}

func TestPreferredEndpoint_SameSubnetPrefersPrivate(t *testing.T) {
	local := netip.MustParseAddr("10.0.0.5")
	remote := netip.MustParseAddr("10.0.0.9")
	got := PreferredEndpoint(local, remote, "203.0.113.5:51820")
	assert.Equal(t, "10.0.0.9:51820", got)
}

func TestPreferredEndpoint_DifferentSubnetPrefersPublic(t *testing.T) {
	local := netip.MustParseAddr("10.0.0.5")
	remote := netip.MustParseAddr("10.1.0.9")
	got := PreferredEndpoint(local, remote, "203.0.113.5:51820")
	assert.Equal(t, "203.0.113.5:51820", got)
}

func TestPreferredEndpoint_NoLocalPrivateUsesPublic(t *testing.T) {
	got := PreferredEndpoint(netip.Addr{}, netip.MustParseAddr("10.0.0.9"), "203.0.113.5:51820")
	assert.Equal(t, "203.0.113.5:51820", got)
}
