package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acidtib/jiji/internal/store"
	"github.com/acidtib/jiji/internal/wgkey"
)

func testPublicKey(t *testing.T) wgkey.Key {
	t.Helper()
	var raw [32]byte
	raw[0] = 7
	key, err := wgkey.Parse(wgkey.Key(raw).String())
	require.NoError(t, err)
	return key
}

func TestDaemon_PeerConfigForServer(t *testing.T) {
	d := &Daemon{}
	key := testPublicKey(t)

	srv := store.Server{
		ID:                 "host-b",
		Subnet:             "10.210.1.0/24",
		ManagementIP:       "10.210.99.2",
		WireGuardPublicKey: key.String(),
		Endpoints:          []string{"203.0.113.5:51820"},
	}

	pc, ok := d.peerConfigForServer(srv)
	require.True(t, ok)
	assert.Equal(t, key, pc.PublicKey)
	assert.Equal(t, "10.210.1.0/24", pc.Subnet.String())
	assert.Equal(t, "10.210.129.0/24", pc.ContainerSubnet.String())
	assert.Equal(t, "10.210.99.2", pc.ManagementIP.String())
	assert.True(t, pc.HasEndpoint)
	assert.Equal(t, "203.0.113.5:51820", pc.Endpoint.String())
}

func TestDaemon_PeerConfigForServer_SkipsUnparsableSubnet(t *testing.T) {
	d := &Daemon{}
	srv := store.Server{ID: "host-b", Subnet: "not-a-subnet"}

	_, ok := d.peerConfigForServer(srv)
	assert.False(t, ok)
}

func TestDaemon_PeerConfigForServer_SkipsUnparsableManagementIP(t *testing.T) {
	d := &Daemon{}
	key := testPublicKey(t)
	srv := store.Server{
		ID: "host-b", Subnet: "10.210.1.0/24", ManagementIP: "garbage", WireGuardPublicKey: key.String(),
	}

	_, ok := d.peerConfigForServer(srv)
	assert.False(t, ok)
}

func TestDaemon_ChoosePeerEndpoint_PrefersLiteral(t *testing.T) {
	d := &Daemon{}
	srv := store.Server{Endpoints: []string{"example.internal:51820", "203.0.113.5:51820"}}

	endpoint, ok := d.choosePeerEndpoint(srv)
	require.True(t, ok)
	assert.Equal(t, "203.0.113.5:51820", endpoint)
}

func TestDaemon_ChoosePeerEndpoint_FallsBackToFirst(t *testing.T) {
	d := &Daemon{}
	srv := store.Server{Endpoints: []string{"example.internal:51820"}}

	endpoint, ok := d.choosePeerEndpoint(srv)
	require.True(t, ok)
	assert.Equal(t, "example.internal:51820", endpoint)
}

func TestDaemon_ChoosePeerEndpoint_NoCandidates(t *testing.T) {
	d := &Daemon{}
	_, ok := d.choosePeerEndpoint(store.Server{})
	assert.False(t, ok)
}
