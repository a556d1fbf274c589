//go:build linux

package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/vishvananda/netlink"
	"go4.org/netipx"
	"golang.org/x/sys/unix"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// rotationCheckInterval is how often Run refreshes peer status from the
// kernel device. Endpoint rotation is not done by Run; the reconciler
// calls RotatePeerEndpoint.
const rotationCheckInterval = 1 * time.Second

// Device manages the kernel WireGuard network interface for one host: its
// link, configured peers, and their runtime status.
type Device struct {
	link netlink.Link

	// peers is indexed by the peer's public key string.
	peers map[string]*Peer
	mu    sync.Mutex
}

// NewDevice creates the WireGuard interface if it doesn't already exist, or
// adopts the existing one.
func NewDevice() (*Device, error) {
	link, err := createOrGetLink(InterfaceName)
	if err != nil {
		return nil, fmt.Errorf("create or get WireGuard link %q: %w", InterfaceName, err)
	}
	return &Device{
		link:  link,
		peers: make(map[string]*Peer),
	}, nil
}

func createOrGetLink(name string) (netlink.Link, error) {
	link, err := netlink.LinkByName(name)
	if err == nil {
		slog.Info("Found existing WireGuard interface.", "name", name)
		return link, nil
	}
	if _, ok := err.(netlink.LinkNotFoundError); !ok {
		return nil, fmt.Errorf("find WireGuard link %q: %w", name, err)
	}

	link = &netlink.GenericLink{
		LinkAttrs: netlink.LinkAttrs{Name: name, MTU: MTU},
		LinkType:  "wireguard",
	}
	if err = netlink.LinkAdd(link); err != nil {
		return nil, fmt.Errorf("create WireGuard link %q: %w", name, err)
	}
	slog.Info("Created WireGuard interface.", "name", name)

	link, err = netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("find created WireGuard link %q: %w", name, err)
	}
	return link, nil
}

// Configure applies config to the kernel WireGuard device: device and peer
// settings, interface addresses, and peer routes (§4.3).
func (d *Device) Configure(config Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	newPeerSet := make(map[string]struct{}, len(config.Peers))
	for _, pc := range config.Peers {
		key := pc.PublicKey.String()
		if p, ok := d.peers[key]; ok {
			p.UpdateConfig(pc)
		} else {
			d.peers[key] = NewPeer(pc)
		}
		newPeerSet[key] = struct{}{}
	}
	for key := range d.peers {
		if _, ok := newPeerSet[key]; !ok {
			delete(d.peers, key)
		}
	}

	wg, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("create WireGuard client: %w", err)
	}
	defer func() { _ = wg.Close() }()

	wgConfig, err := config.ToDeviceConfig()
	if err != nil {
		return err
	}
	if err = wg.ConfigureDevice(d.link.Attrs().Name, wgConfig); err != nil {
		return fmt.Errorf("configure WireGuard device %q: %w", d.link.Attrs().Name, err)
	}
	slog.Info("Configured WireGuard interface.", "name", d.link.Attrs().Name)

	if err = d.refreshPeerStatusLocked(); err != nil {
		return err
	}

	managementPrefix, err := addrToSingleIPPrefix(config.ManagementIP)
	if err != nil {
		return fmt.Errorf("parse management IP: %w", err)
	}
	hostPrefix := netip.PrefixFrom(ServerAddress(config.Subnet), config.Subnet.Bits())
	addrs := []netip.Prefix{managementPrefix, hostPrefix}
	if err = d.updateAddresses(addrs); err != nil {
		return err
	}
	slog.Info("Updated addresses of the WireGuard interface.", "name", d.link.Attrs().Name, "addrs", addrs)

	if d.link.Attrs().Flags&unix.IFF_UP != unix.IFF_UP {
		if err = netlink.LinkSetUp(d.link); err != nil {
			return fmt.Errorf("set WireGuard link %q up: %w", d.link.Attrs().Name, err)
		}
		slog.Info("Brought WireGuard interface up.", "name", d.link.Attrs().Name)
	}

	if err = d.updatePeerRoutes(); err != nil {
		return err
	}
	slog.Info("Updated routes to peers via the WireGuard interface.",
		"name", d.link.Attrs().Name, "peers", len(d.peers))

	return nil
}

// refreshPeerStatusLocked syncs handshake times from the kernel device into
// the tracked Peer structs. Callers must hold mu.
func (d *Device) refreshPeerStatusLocked() error {
	wg, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("create WireGuard client: %w", err)
	}
	defer func() { _ = wg.Close() }()

	dev, err := wg.Device(d.link.Attrs().Name)
	if err != nil {
		return fmt.Errorf("get WireGuard device %q: %w", d.link.Attrs().Name, err)
	}

	for _, wgPeer := range dev.Peers {
		pubKeyStr := wgPeer.PublicKey.String()
		if p, ok := d.peers[pubKeyStr]; ok {
			p.UpdateHandshake(wgPeer.LastHandshakeTime)
		} else {
			slog.Warn("Found WireGuard peer that is not in the configuration.", "public_key", pubKeyStr)
		}
	}
	return nil
}

func (d *Device) updateAddresses(addrs []netip.Prefix) error {
	for _, addr := range addrs {
		if !addr.IsValid() {
			continue
		}
		ipNet := prefixToIPNet(addr)
		if err := netlink.AddrAdd(d.link, &netlink.Addr{IPNet: &ipNet}); err != nil {
			if !errors.Is(err, unix.EEXIST) {
				return fmt.Errorf("add address to WireGuard link %q: %w", d.link.Attrs().Name, err)
			}
		}
	}

	linkAddrs, err := netlink.AddrList(d.link, netlink.FAMILY_ALL)
	if err != nil {
		return fmt.Errorf("list addresses on WireGuard link %q: %w", d.link.Attrs().Name, err)
	}
	for _, linkAddr := range linkAddrs {
		if slices.ContainsFunc(addrs, func(a netip.Prefix) bool {
			return linkAddr.IPNet.String() == prefixToIPNet(a).String()
		}) {
			continue
		}
		if err = netlink.AddrDel(d.link, &linkAddr); err != nil {
			return fmt.Errorf("remove address %q from WireGuard link %q: %w", linkAddr.IPNet, d.link.Attrs().Name, err)
		}
	}
	return nil
}

// updatePeerRoutes installs link-scoped routes for every peer's allowed IPs
// and removes routes that are no longer backed by a configured peer.
func (d *Device) updatePeerRoutes() error {
	var builder netipx.IPSetBuilder
	for _, p := range d.peers {
		for _, prefix := range p.Config.AllowedIPs() {
			if prefix.IsValid() {
				builder.AddPrefix(prefix)
			}
		}
	}
	ipset, err := builder.IPSet()
	if err != nil {
		return fmt.Errorf("build peer IP ranges: %w", err)
	}

	for _, prefix := range ipset.Prefixes() {
		dst := prefixToIPNet(prefix)
		route := &netlink.Route{
			LinkIndex: d.link.Attrs().Index,
			Scope:     netlink.SCOPE_LINK,
			Dst:       &dst,
		}
		if err = netlink.RouteAdd(route); err != nil {
			if !errors.Is(err, unix.EEXIST) {
				return fmt.Errorf("add route via WireGuard link %q: %w", d.link.Attrs().Name, err)
			}
		} else {
			slog.Debug("Added route to peer via WireGuard interface.", "name", d.link.Attrs().Name, "dst", prefix)
		}
	}

	addedRoutes := ipset.Prefixes()
	routes, err := netlink.RouteList(d.link, netlink.FAMILY_ALL)
	if err != nil {
		return fmt.Errorf("list routes on WireGuard link %q: %w", d.link.Attrs().Name, err)
	}
	for _, route := range routes {
		if route.Dst == nil {
			continue
		}
		routePrefix, pErr := ipNetToPrefix(*route.Dst)
		if pErr != nil {
			return fmt.Errorf("parse route destination: %w", pErr)
		}
		if slices.Contains(addedRoutes, routePrefix) {
			continue
		}
		if err = netlink.RouteDel(&route); err != nil {
			return fmt.Errorf("remove route %q from WireGuard link %q: %w", route.Dst, d.link.Attrs().Name, err)
		}
		slog.Debug("Removed stale route from WireGuard interface.", "name", d.link.Attrs().Name, "dst", routePrefix)
	}
	return nil
}

// Run refreshes peer status from the kernel device every
// rotationCheckInterval until ctx is cancelled. It does not rotate
// endpoints.
func (d *Device) Run(ctx context.Context) error {
	ticker := time.NewTicker(rotationCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			if err := d.refreshPeerStatusLocked(); err != nil {
				slog.Error("Failed to refresh peer status from WireGuard device.",
					"name", d.link.Attrs().Name, "err", err)
			}
			d.mu.Unlock()
		case <-ctx.Done():
			return nil
		}
	}
}

// PeerSnapshot returns a point-in-time copy of every configured peer,
// keyed by public key string, for the reconciler's health-monitoring task
// (§4.5 step 3) to read without holding the device lock.
func (d *Device) PeerSnapshot() map[string]Peer {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := make(map[string]Peer, len(d.peers))
	for key, p := range d.peers {
		snap[key] = *p
	}
	return snap
}

// RotatePeerEndpoint patches a single peer's endpoint in place (UpdateOnly)
// without touching its allowed IPs, after the reconciler has chosen the
// next candidate via RotateEndpoint.
func (d *Device) RotatePeerEndpoint(publicKeyHex string, wgKey wgtypes.Key, endpoint netip.AddrPort) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	wg, err := wgctrl.New()
	if err != nil {
		return fmt.Errorf("create WireGuard client: %w", err)
	}
	defer func() { _ = wg.Close() }()

	patch := wgtypes.Config{
		ReplacePeers: false,
		Peers: []wgtypes.PeerConfig{
			{
				PublicKey:  wgKey,
				UpdateOnly: true,
				Endpoint: &net.UDPAddr{
					IP:   endpoint.Addr().AsSlice(),
					Port: int(endpoint.Port()),
				},
			},
		},
	}
	if err = wg.ConfigureDevice(d.link.Attrs().Name, patch); err != nil {
		return fmt.Errorf("configure WireGuard device %q with endpoint change: %w", d.link.Attrs().Name, err)
	}
	if p, ok := d.peers[publicKeyHex]; ok {
		p.LastEndpointChangeTime = time.Now()
		p.Status = PeerStatusUnknown
	}
	slog.Info("Rotated peer endpoint on WireGuard interface.",
		"name", d.link.Attrs().Name, "public_key", publicKeyHex, "endpoint", endpoint)
	return nil
}
