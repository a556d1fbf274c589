//go:build linux

// Package firewall installs and tears down the routing and iptables rules
// required for container-to-container traffic across hosts (§4.3). Rules
// are idempotent: installation is safe to run on every reconciler startup.
package firewall

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/docker/docker/libnetwork/iptables"
)

// FilterForwardChain is the built-in chain carrying cross-interface
// traffic, where the mesh's bidirectional FORWARD allow rules live.
const FilterForwardChain = "FORWARD"

// InputChain is the custom chain holding inbound accept rules for the
// mesh's own control-plane traffic (store gossip), jumped to from the
// main INPUT chain.
const InputChain = "JIJI-INPUT"

// ManagementPrefix is the fdcc::/16 range every management IPv6 address
// lies in; gossip traffic is only ever accepted from this range.
const ManagementPrefix = "fdcc::/16"

// GossipPort is the replicated store's gossip transport port (§8).
const GossipPort = 8787

// CreateInputChain ensures the custom INPUT chain exists for both
// iptables and ip6tables, flushes it, and installs the jump rule from the
// main INPUT chain ahead of any default DROP/REJECT rule.
func CreateInputChain() error {
	ipt4 := iptables.GetIptable(iptables.IPv4)
	ipt6 := iptables.GetIptable(iptables.IPv6)

	for _, ipt := range []*iptables.IPTable{ipt4, ipt6} {
		if _, err := ipt.NewChain(InputChain, iptables.Filter); err != nil {
			return fmt.Errorf("create chain %s: %w", InputChain, err)
		}
		if err := ipt.RawCombinedOutput("-t", string(iptables.Filter), "-F", InputChain); err != nil {
			return fmt.Errorf("flush chain %s: %w", InputChain, err)
		}

		jumpRule := []string{"-m", "comment", "--comment", "jiji-managed", "-j", InputChain}
		if !ipt.Exists(iptables.Filter, "INPUT", jumpRule...) {
			if err := ipt.RawCombinedOutput(append(
				[]string{"-t", string(iptables.Filter), "-A", "INPUT"}, jumpRule...)...,
			); err != nil {
				return fmt.Errorf("add jump rule to INPUT: %w", err)
			}
		}
	}
	return nil
}

// AllowGossipFromManagementNetwork accepts store-gossip UDP traffic
// originating from any management IPv6 address.
func AllowGossipFromManagementNetwork(wgInterface string) error {
	ipt6 := iptables.GetIptable(iptables.IPv6)
	rule := []string{
		"-i", wgInterface,
		"-s", ManagementPrefix,
		"-p", "udp",
		"--dport", strconv.Itoa(GossipPort),
		"-j", "ACCEPT",
	}
	if err := ipt6.ProgramRule(iptables.Filter, InputChain, iptables.Insert, rule); err != nil {
		return fmt.Errorf("insert gossip accept rule: %w", err)
	}
	return nil
}

// AllowWireGuardTraffic accepts inbound UDP to the WireGuard listen port
// from anywhere, required for peers to establish the mesh in the first
// place.
func AllowWireGuardTraffic(wgPort int) error {
	ipt4 := iptables.GetIptable(iptables.IPv4)
	rule := []string{"-p", "udp", "--dport", strconv.Itoa(wgPort), "-j", "ACCEPT"}
	if err := ipt4.ProgramRule(iptables.Filter, InputChain, iptables.Insert, rule); err != nil {
		return fmt.Errorf("insert WireGuard accept rule: %w", err)
	}
	return nil
}

// PostroutingChain is the built-in NAT chain carrying the RETURN and
// MASQUERADE rules that keep cross-host container source addresses
// intact while still masquerading mesh-to-internet traffic.
const PostroutingChain = "POSTROUTING"

// EnableIPForwarding sets net.ipv4.ip_forward=1 for the running kernel and
// persists it via a sysctl.d drop-in so it survives reboots.
func EnableIPForwarding() error {
	if err := os.WriteFile("/proc/sys/net/ipv4/ip_forward", []byte("1\n"), 0o644); err != nil {
		return fmt.Errorf("enable ip_forward: %w", err)
	}

	const dropIn = "/etc/sysctl.d/99-jiji-forwarding.conf"
	if err := os.WriteFile(dropIn, []byte("net.ipv4.ip_forward = 1\n"), 0o644); err != nil {
		return fmt.Errorf("persist ip_forward sysctl: %w", err)
	}
	return nil
}

// AllowForwarding installs bidirectional FORWARD allow rules between the
// local container bridge and the WireGuard interface.
func AllowForwarding(bridgeInterface, wgInterface string) error {
	ipt := iptables.GetIptable(iptables.IPv4)

	rules := [][]string{
		{"-i", bridgeInterface, "-o", wgInterface, "-j", "ACCEPT"},
		{"-i", wgInterface, "-o", bridgeInterface, "-j", "ACCEPT"},
	}
	for _, rule := range rules {
		if err := ipt.ProgramRule(iptables.Filter, FilterForwardChain, iptables.Append, rule); err != nil {
			return fmt.Errorf("insert FORWARD rule '%s': %w", strings.Join(rule, " "), err)
		}
	}
	return nil
}

// AllowEstablishedRelated allows already-established/related connections to
// forward, so responses to outbound connections are never dropped by a
// default-deny FORWARD policy.
func AllowEstablishedRelated() error {
	ipt := iptables.GetIptable(iptables.IPv4)
	rule := []string{"-m", "conntrack", "--ctstate", "ESTABLISHED,RELATED", "-j", "ACCEPT"}
	if err := ipt.ProgramRule(iptables.Filter, FilterForwardChain, iptables.Append, rule); err != nil {
		return fmt.Errorf("insert established/related FORWARD rule: %w", err)
	}
	return nil
}

// InstallNATRules inserts the POSTROUTING RETURN rules that protect
// cross-host container traffic from source-NAT, followed by the MASQUERADE
// rule that still lets mesh hosts reach the internet. Order matters: both
// RETURN rules must precede any MASQUERADE rule that could match the same
// packets, so the container-subnet RETURN rule is inserted at position 1.
func InstallNATRules(localContainerSubnet, localWireGuardSubnet, clusterCIDR netip.Prefix, wgInterface string) error {
	ipt := iptables.GetIptable(iptables.IPv4)

	containerReturnRule := []string{
		"-s", localContainerSubnet.String(),
		"-d", clusterCIDR.String(),
		"-j", "RETURN",
	}
	if !ipt.Exists(iptables.Nat, PostroutingChain, containerReturnRule...) {
		if err := ipt.RawCombinedOutput(append(
			[]string{"-t", string(iptables.Nat), "-I", PostroutingChain, "1"}, containerReturnRule...)...,
		); err != nil && !isExistsErr(err) {
			return fmt.Errorf("insert container-subnet RETURN rule: %w", err)
		}
	}

	wgReturnRule := []string{
		"-s", localWireGuardSubnet.String(),
		"-o", wgInterface,
		"-j", "RETURN",
	}
	if err := ipt.ProgramRule(iptables.Nat, PostroutingChain, iptables.Insert, wgReturnRule); err != nil {
		return fmt.Errorf("insert WireGuard-subnet RETURN rule: %w", err)
	}

	masqueradeRule := []string{
		"-s", localWireGuardSubnet.String(),
		"!", "-o", wgInterface,
		"-j", "MASQUERADE",
	}
	if err := ipt.ProgramRule(iptables.Nat, PostroutingChain, iptables.Append, masqueradeRule); err != nil {
		return fmt.Errorf("append MASQUERADE rule: %w", err)
	}

	return nil
}

func isExistsErr(err error) bool {
	return strings.Contains(err.Error(), "Chain already exists") ||
		strings.Contains(err.Error(), "File exists")
}

// OpenPort inserts a filter-table rule accepting inbound traffic on a
// container's published host port, so services that bind host ports are
// reachable without disabling the host's default firewall policy.
func OpenPort(chain string, port int, proto string) error {
	ipt := iptables.GetIptable(iptables.IPv4)
	rule := []string{"-p", proto, "--dport", strconv.Itoa(port), "-j", "ACCEPT"}
	if err := ipt.ProgramRule(iptables.Filter, chain, iptables.Insert, rule); err != nil {
		return fmt.Errorf("insert port-open rule '%s': %w", strings.Join(rule, " "), err)
	}
	return nil
}
