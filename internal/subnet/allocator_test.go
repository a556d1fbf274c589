package subnet

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_S1ThreeHosts(t *testing.T) {
	cidr := netip.MustParsePrefix("10.210.0.0/16")

	cases := []struct {
		index      uint32
		wantSubnet string
		wantWGIP   string
		wantCtrSub string
	}{
		{0, "10.210.0.0/24", "10.210.0.1", "10.210.128.0/24"},
		{1, "10.210.1.0/24", "10.210.1.1", "10.210.129.0/24"},
		{2, "10.210.2.0/24", "10.210.2.1", "10.210.130.0/24"},
	}

	for _, c := range cases {
		got, err := Allocate(cidr, c.index)
		require.NoError(t, err)
		assert.Equal(t, netip.MustParsePrefix(c.wantSubnet), got)

		wgIP, err := ServerAddress(cidr, c.index)
		require.NoError(t, err)
		assert.Equal(t, netip.MustParseAddr(c.wantWGIP), wgIP)

		ctrSub, err := ContainerSubnet(cidr, c.index)
		require.NoError(t, err)
		assert.Equal(t, netip.MustParsePrefix(c.wantCtrSub), ctrSub)
	}
}

func TestAllocate_Determinism(t *testing.T) {
	cidr := netip.MustParsePrefix("10.100.0.0/20")
	for i := uint32(0); i <= maxIndex(cidr); i++ {
		a, err := Allocate(cidr, i)
		require.NoError(t, err)
		b, err := Allocate(cidr, i)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.True(t, cidr.Overlaps(a))
		assert.Equal(t, 24, a.Bits())
	}
}

func TestAllocate_Disjoint(t *testing.T) {
	cidr := netip.MustParsePrefix("10.200.0.0/18")
	seen := make(map[netip.Prefix]bool)
	for i := uint32(0); i <= maxIndex(cidr); i++ {
		p, err := Allocate(cidr, i)
		require.NoError(t, err)
		assert.False(t, seen[p], "duplicate subnet allocated for index %d: %s", i, p)
		seen[p] = true
	}
}

func TestAllocate_LastValidAndCapacityExceeded(t *testing.T) {
	cidr := netip.MustParsePrefix("192.168.0.0/24")
	// A /24 cluster CIDR has exactly one valid index: 0.
	_, err := Allocate(cidr, 0)
	require.NoError(t, err)

	_, err = Allocate(cidr, 1)
	require.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestAllocate_MaxIndexIsLastValid(t *testing.T) {
	cidr := netip.MustParsePrefix("10.0.0.0/22")
	max := maxIndex(cidr)

	_, err := Allocate(cidr, max)
	require.NoError(t, err)

	_, err = Allocate(cidr, max+1)
	require.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestValidateClusterCIDR(t *testing.T) {
	require.NoError(t, ValidateClusterCIDR(netip.MustParsePrefix("10.210.0.0/16")))
	require.NoError(t, ValidateClusterCIDR(netip.MustParsePrefix("10.0.0.0/8")))
	require.NoError(t, ValidateClusterCIDR(netip.MustParsePrefix("10.0.0.0/24")))

	require.Error(t, ValidateClusterCIDR(netip.MustParsePrefix("10.0.0.0/7")))
	require.Error(t, ValidateClusterCIDR(netip.MustParsePrefix("10.0.0.0/25")))
	require.Error(t, ValidateClusterCIDR(netip.MustParsePrefix("fd00::/16")))
}

func TestContains(t *testing.T) {
	cidr := netip.MustParsePrefix("10.210.1.0/24")
	assert.True(t, Contains(netip.MustParseAddr("10.210.1.5"), cidr))
	assert.False(t, Contains(netip.MustParseAddr("10.210.2.5"), cidr))
}
