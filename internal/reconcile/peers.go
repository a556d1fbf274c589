package reconcile

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/acidtib/jiji/internal/network"
	"github.com/acidtib/jiji/internal/store"
	"github.com/acidtib/jiji/internal/subnet"
	"github.com/acidtib/jiji/internal/wgkey"
)

// taskPeerReconciliation rebuilds the local WireGuard device's full peer
// set from the active servers in the store (§4.5 step 2): every active
// server becomes a configured peer, and any peer no longer active is
// removed. Device.Configure performs the add/remove diff itself, since it
// is always called with the complete desired peer set.
func (d *Daemon) taskPeerReconciliation(ctx context.Context, now time.Time) {
	active, err := d.store.ActiveServers(ctx, now)
	if err != nil {
		slog.Error("List active servers failed.", "err", err)
		return
	}

	selfSubnet, err := netip.ParsePrefix(d.config.Subnet)
	if err != nil {
		slog.Error("Parse own subnet failed.", "subnet", d.config.Subnet, "err", err)
		return
	}
	selfContainerSubnet, err := netip.ParsePrefix(d.config.ContainerSubnet)
	if err != nil {
		slog.Error("Parse own container subnet failed.", "container_subnet", d.config.ContainerSubnet, "err", err)
		return
	}
	selfManagementIP, err := netip.ParseAddr(d.config.ManagementIP)
	if err != nil {
		slog.Error("Parse own management IP failed.", "management_ip", d.config.ManagementIP, "err", err)
		return
	}
	selfPublicKey, err := wgkey.Parse(d.config.WireGuardPublicKey)
	if err != nil {
		slog.Error("Parse own WireGuard public key failed.", "err", err)
		return
	}

	peers := make([]network.PeerConfig, 0, len(active))
	for _, srv := range active {
		pc, ok := d.peerConfigForServer(srv)
		if !ok {
			continue
		}
		peers = append(peers, pc)
	}

	cfg := network.Config{
		Subnet:          selfSubnet,
		ContainerSubnet: selfContainerSubnet,
		ManagementIP:    selfManagementIP,
		PrivateKey:      d.config.WireGuardPrivateKey,
		PublicKey:       selfPublicKey,
		Peers:           peers,
	}
	if err = d.device.Configure(cfg); err != nil {
		slog.Error("Configure WireGuard device failed.", "err", err)
		return
	}
}

// peerConfigForServer converts one active server row into a PeerConfig.
// A server whose stored subnet, management IP, or public key fails to
// parse is skipped (logged) rather than aborting reconciliation for every
// other peer.
func (d *Daemon) peerConfigForServer(srv store.Server) (network.PeerConfig, bool) {
	peerSubnet, err := netip.ParsePrefix(srv.Subnet)
	if err != nil {
		slog.Warn("Skipping peer with unparsable subnet.", "server_id", srv.ID, "subnet", srv.Subnet, "err", err)
		return network.PeerConfig{}, false
	}
	peerContainerSubnet, err := subnet.ContainerSubnetFromHostSubnet(peerSubnet)
	if err != nil {
		slog.Warn("Skipping peer with unparsable subnet.", "server_id", srv.ID, "subnet", srv.Subnet, "err", err)
		return network.PeerConfig{}, false
	}
	peerManagementIP, err := netip.ParseAddr(srv.ManagementIP)
	if err != nil {
		slog.Warn("Skipping peer with unparsable management IP.", "server_id", srv.ID, "management_ip", srv.ManagementIP, "err", err)
		return network.PeerConfig{}, false
	}
	peerPublicKey, err := wgkey.Parse(srv.WireGuardPublicKey)
	if err != nil {
		slog.Warn("Skipping peer with unparsable public key.", "server_id", srv.ID, "err", err)
		return network.PeerConfig{}, false
	}

	pc := network.PeerConfig{
		PublicKey:       peerPublicKey,
		Subnet:          peerSubnet,
		ContainerSubnet: peerContainerSubnet,
		ManagementIP:    peerManagementIP,
	}

	if endpoint, ok := d.choosePeerEndpoint(srv); ok {
		if ap, pErr := network.ParseEndpoint(endpoint); pErr == nil {
			pc.Endpoint = ap
			pc.HasEndpoint = true
		}
	}

	return pc, true
}

// choosePeerEndpoint picks the first resolvable candidate from the peer's
// advertised endpoints. Hostname-only candidates that can't be parsed as a
// literal address:port are skipped in favor of a later literal candidate,
// since WireGuard endpoint rotation (§4.5 step 3) operates on resolved
// addresses.
func (d *Daemon) choosePeerEndpoint(srv store.Server) (string, bool) {
	for _, candidate := range srv.Endpoints {
		if _, err := network.ParseEndpoint(candidate); err == nil {
			return candidate, true
		}
	}
	if len(srv.Endpoints) > 0 {
		return srv.Endpoints[0], true
	}
	return "", false
}
