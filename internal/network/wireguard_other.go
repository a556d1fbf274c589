//go:build !linux

package network

import (
	"context"
	"errors"
	"net/netip"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// ErrUnsupportedPlatform is returned by every Device method on platforms
// other than Linux. The reconciler daemon only ever runs on Linux hosts
// (§1), so this stub exists purely to keep the package buildable for
// local tooling (CLI commands, tests) on a developer's workstation.
var ErrUnsupportedPlatform = errors.New("network: WireGuard device management is only supported on linux")

// Device is a no-op stand-in on non-Linux platforms.
type Device struct{}

func NewDevice() (*Device, error) {
	return &Device{}, nil
}

func (d *Device) Configure(_ Config) error {
	return ErrUnsupportedPlatform
}

func (d *Device) Run(_ context.Context) error {
	return ErrUnsupportedPlatform
}

func (d *Device) RotatePeerEndpoint(_ string, _ wgtypes.Key, _ netip.AddrPort) error {
	return ErrUnsupportedPlatform
}

func (d *Device) PeerSnapshot() map[string]Peer {
	return nil
}
