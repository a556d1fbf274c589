package network

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/acidtib/jiji/internal/wgkey"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

const (
	// InterfaceName is the name of the WireGuard network interface
	// created on every host.
	InterfaceName = "wg-jiji"
	// MTU is the WireGuard interface MTU, per §4.3.
	MTU = 1420
	// KeepaliveInterval is the persistent keepalive interval programmed
	// on every peer, per §4.3.
	KeepaliveInterval = 25
)

// Config is the local WireGuard device configuration for one host,
// derived from its server row plus the set of peer server rows.
type Config struct {
	Subnet          netip.Prefix
	ContainerSubnet netip.Prefix
	ManagementIP    netip.Addr
	PrivateKey      wgkey.Key
	PublicKey       wgkey.Key
	Peers           []PeerConfig
}

// PeerConfig is the per-peer WireGuard configuration: allowed IPs computed
// from the remote server's WireGuard subnet, container subnet, and
// management address, plus the chosen endpoint.
type PeerConfig struct {
	PublicKey       wgkey.Key
	Subnet          netip.Prefix
	ContainerSubnet netip.Prefix
	ManagementIP    netip.Addr
	Endpoint        netip.AddrPort
	// HasEndpoint is false when the peer's endpoint could not be resolved
	// to a literal address (e.g. a hostname-only candidate); in that case
	// WireGuard is configured without an endpoint and relies on the peer
	// connecting first.
	HasEndpoint bool
}

// AllowedIPs returns the three prefixes routed to this peer: its
// WireGuard host subnet, its container subnet, and its management /128.
func (pc PeerConfig) AllowedIPs() []netip.Prefix {
	mgmt, _ := addrToSingleIPPrefix(pc.ManagementIP)
	return []netip.Prefix{pc.Subnet, pc.ContainerSubnet, mgmt}
}

// ToDeviceConfig converts Config into the wgctrl device configuration
// applied to the kernel WireGuard interface.
func (c Config) ToDeviceConfig() (wgtypes.Config, error) {
	privateKey, err := wgtypes.NewKey(c.PrivateKey[:])
	if err != nil {
		return wgtypes.Config{}, fmt.Errorf("parse private key: %w", err)
	}
	listenPort := Port

	peerConfigs := make([]wgtypes.PeerConfig, len(c.Peers))
	for i, pc := range c.Peers {
		peerKey, kErr := wgtypes.NewKey(pc.PublicKey[:])
		if kErr != nil {
			return wgtypes.Config{}, fmt.Errorf("parse peer public key: %w", kErr)
		}

		var endpoint *net.UDPAddr
		if pc.HasEndpoint {
			endpoint = &net.UDPAddr{
				IP:   pc.Endpoint.Addr().AsSlice(),
				Port: int(pc.Endpoint.Port()),
			}
		}

		allowedIPs := make([]net.IPNet, 0, 3)
		for _, p := range pc.AllowedIPs() {
			if p.IsValid() {
				allowedIPs = append(allowedIPs, prefixToIPNet(p))
			}
		}

		keepalive := KeepaliveInterval * time.Second
		peerConfigs[i] = wgtypes.PeerConfig{
			PublicKey:                   peerKey,
			Endpoint:                    endpoint,
			ReplaceAllowedIPs:           true,
			AllowedIPs:                  allowedIPs,
			PersistentKeepaliveInterval: &keepalive,
		}
	}

	return wgtypes.Config{
		PrivateKey:   &privateKey,
		ListenPort:   &listenPort,
		ReplacePeers: true,
		Peers:        peerConfigs,
	}, nil
}
