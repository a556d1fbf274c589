package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/acidtib/jiji/internal/network"
	"github.com/acidtib/jiji/internal/store"
)

// healthDialTimeout bounds each container health probe's TCP connect, per
// §4.5 step 4's "2-second TCP connect".
const healthDialTimeout = 2 * time.Second

// unhealthyThreshold is the consecutive-failure count at which a
// container's health status becomes unhealthy, per §4.5 step 4: 1-2
// failures is degraded, 3 or more is unhealthy.
const unhealthyThreshold = 3

// taskPeerHealthMonitoring recomputes every configured peer's connection
// status from its handshake age and, for peers found down, attempts
// endpoint rotation (§4.5 step 3).
func (d *Daemon) taskPeerHealthMonitoring(ctx context.Context, now time.Time) {
	peers := d.device.PeerSnapshot()
	if len(peers) == 0 {
		return
	}

	active, err := d.store.ActiveServers(ctx, now)
	if err != nil {
		slog.Error("List active servers for peer health monitoring failed.", "err", err)
		return
	}
	byPublicKey := make(map[string]store.Server, len(active))
	for _, srv := range active {
		byPublicKey[srv.WireGuardPublicKey] = srv
	}

	for key, peer := range peers {
		status := peer.CalculateStatus(now)
		if status != network.PeerStatusDown {
			continue
		}

		srv, ok := byPublicKey[key]
		if !ok || len(srv.Endpoints) == 0 {
			continue
		}

		currentEndpoint := ""
		if peer.Config.HasEndpoint {
			currentEndpoint = peer.Config.Endpoint.String()
		}
		next, changed := network.RotateEndpoint(srv.Endpoints, currentEndpoint)
		if !changed {
			continue
		}
		nextAddr, err := netip.ParseAddrPort(next)
		if err != nil {
			slog.Warn("Peer rotation candidate is not a literal address, skipping.",
				"server_id", srv.ID, "endpoint", next, "err", err)
			continue
		}
		wgKey, err := wgtypes.NewKey(peer.Config.PublicKey[:])
		if err != nil {
			slog.Error("Parse peer public key for rotation failed.", "server_id", srv.ID, "err", err)
			continue
		}
		if err = d.device.RotatePeerEndpoint(key, wgKey, nextAddr); err != nil {
			slog.Error("Rotate peer endpoint failed.", "server_id", srv.ID, "endpoint", next, "err", err)
			continue
		}
		slog.Info("Rotated down peer's endpoint.", "server_id", srv.ID, "endpoint", next)
	}
}

// taskContainerHealthSync probes every container row this host owns and
// writes an updated health status when it has changed (§4.5 step 4).
func (d *Daemon) taskContainerHealthSync(ctx context.Context, now time.Time) {
	containers, err := d.store.ThisHostContainers(ctx)
	if err != nil {
		slog.Error("List this host's containers failed.", "err", err)
		return
	}

	for _, c := range containers {
		status, failures := d.probeContainerHealth(ctx, c)
		if status == c.HealthStatus && failures == c.ConsecutiveFailures {
			continue
		}
		if err = d.store.UpdateContainerHealth(ctx, c.ID, status, failures, now.UnixMilli()); err != nil {
			slog.Error("Update container health failed.", "container_id", c.ID, "err", err)
		}
	}
}

func (d *Daemon) probeContainerHealth(ctx context.Context, c store.Container) (string, int) {
	running, err := d.containerRunning(ctx, c)
	if err != nil {
		slog.Warn("Check container running state failed, treating as down.", "container_id", c.ID, "err", err)
		running = false
	}
	if !running {
		return store.HealthUnhealthy, c.ConsecutiveFailures + 1
	}

	if c.HealthPort == nil {
		return store.HealthHealthy, 0
	}

	addr := net.JoinHostPort(c.IP, fmt.Sprintf("%d", *c.HealthPort))
	conn, err := net.DialTimeout("tcp", addr, healthDialTimeout)
	if err != nil {
		failures := c.ConsecutiveFailures + 1
		if failures >= unhealthyThreshold {
			return store.HealthUnhealthy, failures
		}
		return store.HealthDegraded, failures
	}
	_ = conn.Close()
	return store.HealthHealthy, 0
}

func (d *Daemon) containerRunning(ctx context.Context, c store.Container) (bool, error) {
	_, running, err := d.engine.InspectRunning(ctx, c.InstanceID)
	if err != nil {
		return false, err
	}
	return running, nil
}
