// Package network implements the WireGuard mesh configuration builder and
// the endpoint discovery used to seed it: deterministic config generation
// from server rows (§4.3), and the per-host public/private IP discovery
// that feeds the endpoint candidate list (§4.4).
package network

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/acidtib/jiji/internal/wgkey"
)

// managementPrefixBytes are the fixed first two bytes of every management
// IPv6 address: the fdcc::/16 range reserved for cluster management
// traffic.
var managementPrefixBytes = [2]byte{0xfd, 0xcc}

// ServerAddress returns the WireGuard host address of a server, the first
// usable address in its allocated subnet.
func ServerAddress(subnet netip.Prefix) netip.Addr {
	return subnet.Masked().Addr().Next()
}

// ManagementIP derives the IPv6 address used for cluster management
// traffic (gossip transport, machine API) from the first 14 bytes of the
// SHA-256 digest of a server's WireGuard public key. The result always
// lies in fdcc::/16 and is deterministic for a given key.
func ManagementIP(publicKey wgkey.Key) netip.Addr {
	digest := publicKey.SHA256()
	var b [16]byte
	b[0], b[1] = managementPrefixBytes[0], managementPrefixBytes[1]
	copy(b[2:], digest[:14])
	return netip.AddrFrom16(b)
}

// FormatManagementIP renders a management IP in full, uncompressed form
// (8 colon-separated 16-bit hex groups), regardless of how many of those
// groups happen to be zero. [netip.Addr.String] would compress runs of
// zero groups with "::", which the management address format in §6/§8
// explicitly does not want.
func FormatManagementIP(ip netip.Addr) string {
	b := ip.As16()
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		groups[i] = fmt.Sprintf("%02x%02x", b[2*i], b[2*i+1])
	}
	return strings.Join(groups, ":")
}

func prefixToIPNet(prefix netip.Prefix) net.IPNet {
	return net.IPNet{
		IP:   prefix.Addr().AsSlice(),
		Mask: net.CIDRMask(prefix.Bits(), prefix.Addr().BitLen()),
	}
}

func addrToSingleIPPrefix(addr netip.Addr) (netip.Prefix, error) {
	if !addr.IsValid() {
		return netip.Prefix{}, fmt.Errorf("invalid IP address")
	}
	bits := 32
	if addr.Is6() {
		bits = 128
	}
	return addr.Prefix(bits)
}

func ipNetToPrefix(ipNet net.IPNet) (netip.Prefix, error) {
	addr, ok := netip.AddrFromSlice(ipNet.IP)
	if !ok {
		return netip.Prefix{}, fmt.Errorf("invalid IP in net.IPNet: %v", ipNet.IP)
	}
	ones, _ := ipNet.Mask.Size()
	return netip.PrefixFrom(addr.Unmap(), ones).Masked(), nil
}
