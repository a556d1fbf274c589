package network

import (
	"log/slog"
	"net/netip"
	"time"
)

// Peer connection status as computed by the reconciler's peer health
// monitoring task (§4.5 step 3).
const (
	PeerStatusUnknown = "unknown"
	PeerStatusUp      = "up"
	PeerStatusDown    = "down"
)

// endpointConnectionTimeout is the time to wait for the initial handshake
// after an endpoint is (re)configured, before treating the lack of a
// handshake as "down" rather than merely "unknown". Matches §4.5 step 3's
// 15-second threshold.
const endpointConnectionTimeout = 15 * time.Second

// peerDownInterval is the time since the last handshake after which an
// established peer is considered down. It is the WireGuard whitepaper's
// reject-after-time: Handshake Timeout (180s) + Rekey Timeout (5s) +
// Rekey Attempt Timeout (90s) = 275s, matching §4.5 step 3.
const peerDownInterval = (180 + 5 + 90) * time.Second

// Peer tracks the runtime status of one configured WireGuard peer between
// reconciler iterations.
type Peer struct {
	Config                 PeerConfig
	LastEndpointChangeTime time.Time
	LastHandshakeTime      time.Time
	Status                 string
}

// NewPeer creates a Peer in the unknown status, recording the current time
// as the endpoint change time if an endpoint is already configured.
func NewPeer(config PeerConfig) *Peer {
	p := &Peer{
		Config: config,
		Status: PeerStatusUnknown,
	}
	if p.Config.HasEndpoint {
		p.LastEndpointChangeTime = time.Now()
	}
	return p
}

// UpdateConfig replaces the peer's configuration, resetting status to
// unknown and recording a new endpoint-change time if the endpoint itself
// changed.
func (p *Peer) UpdateConfig(config PeerConfig) {
	if p.Config.Endpoint != config.Endpoint || p.Config.HasEndpoint != config.HasEndpoint {
		p.LastEndpointChangeTime = time.Now()
		p.Status = PeerStatusUnknown
	}
	p.Config = config
}

// UpdateHandshake records a new observed handshake time (from wgctrl or a
// parsed `wg show dump` row) and recalculates status.
func (p *Peer) UpdateHandshake(lastHandshakeTime time.Time) {
	p.LastHandshakeTime = lastHandshakeTime
	p.CalculateStatus(time.Now())
}

// CalculateStatus recomputes Status from handshake age and the time since
// the endpoint was last changed, using now as the reference time so the
// logic is deterministically testable.
//
// Timeline, where T0 = LastEndpointChangeTime:
//
//		T0                T0+endpointConnectionTimeout        T0+peerDownInterval
//		|------------------------|------------------------------------|-------->
//
//	  - Past T0+peerDownInterval: handshake age alone decides up/down.
//	  - Between T0 and T0+endpointConnectionTimeout: no handshake since the
//	    endpoint change is "unknown" (give the new endpoint a chance).
//	  - Between T0+endpointConnectionTimeout and T0+peerDownInterval: no
//	    handshake since the endpoint change is "down".
func (p *Peer) CalculateStatus(now time.Time) string {
	sinceLastHandshake := now.Sub(p.LastHandshakeTime)
	sinceEndpointChange := now.Sub(p.LastEndpointChangeTime)

	var status string
	switch {
	case sinceEndpointChange > peerDownInterval:
		if sinceLastHandshake < peerDownInterval {
			status = PeerStatusUp
		} else {
			status = PeerStatusDown
		}
	case sinceEndpointChange < endpointConnectionTimeout:
		if p.LastHandshakeTime.After(p.LastEndpointChangeTime) {
			status = PeerStatusUp
		} else {
			status = PeerStatusUnknown
		}
	default:
		if p.LastHandshakeTime.After(p.LastEndpointChangeTime) {
			status = PeerStatusUp
		} else {
			status = PeerStatusDown
		}
	}

	if status == PeerStatusDown && !p.Config.HasEndpoint {
		status = PeerStatusUnknown
	}

	if status != p.Status {
		slog.Debug("Peer status changed.", "public_key", p.Config.PublicKey, "status", status)
	}
	p.Status = status
	return status
}

// HandshakeAge returns now - LastHandshakeTime, used by the reconciler to
// decide whether to attempt endpoint rotation (§4.5 step 3).
func (p *Peer) HandshakeAge(now time.Time) time.Duration {
	return now.Sub(p.LastHandshakeTime)
}

// RotateEndpoint returns the next endpoint in candidates after current,
// wrapping modularly. If current is not found in candidates, the first
// candidate is returned. A single-element list returns its only
// candidate with false, whatever current is; an empty list returns
// ("", false).
func RotateEndpoint(candidates []string, current string) (string, bool) {
	if len(candidates) <= 1 {
		if len(candidates) == 1 {
			return candidates[0], false
		}
		return "", false
	}

	idx := -1
	for i, c := range candidates {
		if c == current {
			idx = i
			break
		}
	}
	if idx == -1 {
		return candidates[0], candidates[0] != current
	}
	next := candidates[(idx+1)%len(candidates)]
	return next, next != current
}

// PreferredEndpoint chooses the best endpoint at peering time between a
// local and remote host: when both have a private IP in the same /24
// subnet, the private IP wins (same-LAN traffic avoids the public egress
// path); otherwise the public endpoint is used. localPrivate/remotePrivate
// may be the zero value if unknown.
func PreferredEndpoint(localPrivate, remotePrivate netip.Addr, remotePublic string) string {
	if localPrivate.IsValid() && remotePrivate.IsValid() {
		localPrefix, err1 := localPrivate.Prefix(24)
		remotePrefix, err2 := remotePrivate.Prefix(24)
		if err1 == nil && err2 == nil && localPrefix == remotePrefix {
			return FormatEndpoint(remotePrivate.String())
		}
	}
	return remotePublic
}
