// Package subnet implements the deterministic per-host /24 subnet
// allocation used by the network fabric. Allocation is a pure function of
// the cluster CIDR and a zero-based server index: no coordination or
// persisted counter is required because indices are assigned in
// topology-join order and never reused within a cluster's lifetime.
package subnet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

// ErrCapacityExceeded is returned when the requested server index does not
// fit within the cluster CIDR's /24 address space.
var ErrCapacityExceeded = errors.New("subnet: cluster CIDR capacity exceeded")

// subnetBits is the fixed prefix length of every allocated per-host subnet.
const subnetBits = 24

// containerSubnetOffset is added to the third octet of the cluster base
// address to place the container-side subnet for server index i in a range
// disjoint from the WireGuard host subnets, per spec.md §4.1.
const containerSubnetOffset = 128

// ValidateClusterCIDR checks that cidr is a usable cluster CIDR: IPv4, with
// a prefix length between /8 and /24 inclusive.
func ValidateClusterCIDR(cidr netip.Prefix) error {
	if !cidr.Addr().Is4() {
		return fmt.Errorf("subnet: cluster CIDR must be IPv4, got %s", cidr)
	}
	if cidr.Bits() < 8 || cidr.Bits() > subnetBits {
		return fmt.Errorf("subnet: cluster CIDR prefix must be between /8 and /24, got /%d", cidr.Bits())
	}
	return nil
}

// maxIndex returns the largest valid zero-based server index for cidr, i.e.
// the number of distinct /24s it contains minus one.
func maxIndex(cidr netip.Prefix) uint32 {
	return 1<<uint(subnetBits-cidr.Bits()) - 1
}

// offsetSubnet returns the /24 at the cluster base address plus
// offset*256, i.e. offset additional /24 blocks past the cluster base.
func offsetSubnet(cidr netip.Prefix, offset uint32) netip.Prefix {
	base := cidr.Masked().Addr().As4()
	raw := binary.BigEndian.Uint32(base[:])
	raw += offset * 256

	var out [4]byte
	binary.BigEndian.PutUint32(out[:], raw)
	return netip.PrefixFrom(netip.AddrFrom4(out), subnetBits)
}

// Allocate returns the /24 CIDR assigned to the server at the given
// zero-based index: the cluster base address plus index*256.
func Allocate(cidr netip.Prefix, index uint32) (netip.Prefix, error) {
	if err := ValidateClusterCIDR(cidr); err != nil {
		return netip.Prefix{}, err
	}
	if index > maxIndex(cidr) {
		return netip.Prefix{}, fmt.Errorf("%w: index %d exceeds capacity of %s", ErrCapacityExceeded, index, cidr)
	}

	return offsetSubnet(cidr, index), nil
}

// ServerAddress returns the WireGuard host address for the server at index:
// the first usable address (base+1) of its allocated /24.
func ServerAddress(cidr netip.Prefix, index uint32) (netip.Addr, error) {
	p, err := Allocate(cidr, index)
	if err != nil {
		return netip.Addr{}, err
	}
	return p.Addr().Next(), nil
}

// FirstContainerAddress returns the first address usable by a container on
// the server at index (base+2 of its allocated /24).
func FirstContainerAddress(cidr netip.Prefix, index uint32) (netip.Addr, error) {
	p, err := Allocate(cidr, index)
	if err != nil {
		return netip.Addr{}, err
	}
	return p.Addr().Next().Next(), nil
}

// ContainerSubnet returns the second /24 derived for server index i: the
// cluster base network with its third octet offset by 128+i. This keeps
// the container bridge subnet disjoint from, but still routable alongside,
// the WireGuard host subnet for the same server.
func ContainerSubnet(cidr netip.Prefix, index uint32) (netip.Prefix, error) {
	if err := ValidateClusterCIDR(cidr); err != nil {
		return netip.Prefix{}, err
	}
	if index > maxIndex(cidr) {
		return netip.Prefix{}, fmt.Errorf("%w: index %d exceeds capacity of %s", ErrCapacityExceeded, index, cidr)
	}

	return offsetSubnet(cidr, containerSubnetOffset+index), nil
}

// ContainerSubnetFromHostSubnet returns the container-side /24 for a
// server whose WireGuard host subnet is hostSubnet, without requiring the
// cluster CIDR or the server's index: per the same containerSubnetOffset
// relationship ContainerSubnet expresses, the container subnet is always
// exactly 128 /24 blocks past the host subnet's own base address. The
// reconciler uses this to derive a peer's container subnet from its
// server.subnet row alone, since peer indices are not persisted.
func ContainerSubnetFromHostSubnet(hostSubnet netip.Prefix) (netip.Prefix, error) {
	if hostSubnet.Bits() != subnetBits {
		return netip.Prefix{}, fmt.Errorf("subnet: host subnet %s is not a /24", hostSubnet)
	}
	return offsetSubnet(hostSubnet, containerSubnetOffset), nil
}

// Contains reports whether ip lies within cidr.
func Contains(ip netip.Addr, cidr netip.Prefix) bool {
	return cidr.Contains(ip)
}
