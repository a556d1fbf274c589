//go:build !linux

package firewall

import (
	"errors"
	"net/netip"
)

// ErrUnsupportedPlatform is returned by every firewall operation on
// non-Linux platforms; the reconciler only ever installs these rules on
// Linux hosts (§1).
var ErrUnsupportedPlatform = errors.New("firewall: iptables management is only supported on linux")

const (
	InputChain       = "JIJI-INPUT"
	ManagementPrefix = "fdcc::/16"
	GossipPort       = 8787
)

func EnableIPForwarding() error { return ErrUnsupportedPlatform }

func AllowForwarding(_, _ string) error { return ErrUnsupportedPlatform }

func AllowEstablishedRelated() error { return ErrUnsupportedPlatform }

func InstallNATRules(_, _, _ netip.Prefix, _ string) error { return ErrUnsupportedPlatform }

func CreateInputChain() error { return ErrUnsupportedPlatform }

func AllowGossipFromManagementNetwork(_ string) error { return ErrUnsupportedPlatform }

func AllowWireGuardTraffic(_ int) error { return ErrUnsupportedPlatform }

func OpenPort(_ string, _ int, _ string) error { return ErrUnsupportedPlatform }
