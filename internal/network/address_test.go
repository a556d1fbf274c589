package network

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"strings"
	"testing"

	"github.com/acidtib/jiji/internal/wgkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKeyFromHex(t *testing.T, hexStr string) wgkey.Key {
	t.Helper()
	raw, err := hex.DecodeString(hexStr)
	require.NoError(t, err)
	require.Len(t, raw, wgkey.Size)
	var k wgkey.Key
	copy(k[:], raw)
	return k
}

func TestManagementIP_S2(t *testing.T) {
	hexKey := strings.Repeat("00112233445566778899aabbccddeeff", 2)[:64]
	key := mustKeyFromHex(t, hexKey)

	ip := ManagementIP(key)

	assert.True(t, netip.MustParsePrefix("fdcc::/16").Contains(ip))

	digest := sha256.Sum256(key[:])
	want := netip.AddrFrom16([16]byte{
		0xfd, 0xcc,
		digest[0], digest[1], digest[2], digest[3], digest[4], digest[5], digest[6],
		digest[7], digest[8], digest[9], digest[10], digest[11], digest[12], digest[13],
	})
	assert.Equal(t, want, ip)

	// Exactly 8 groups once formatted as a standard IPv6 address.
	assert.Len(t, strings.Split(FormatManagementIP(ip), ":"), 8)
	assert.True(t, strings.HasPrefix(FormatManagementIP(ip), "fdcc:"))
}

func TestManagementIP_Deterministic(t *testing.T) {
	key := mustKeyFromHex(t, "0011223344556677889900112233445566778899001122334455667788aabbccdd"[:64])
	a := ManagementIP(key)
	b := ManagementIP(key)
	assert.Equal(t, a, b)
}

func TestManagementIP_DistinctKeysDistinctIPs(t *testing.T) {
	k1, err := wgkey.New()
	require.NoError(t, err)
	k2, err := wgkey.New()
	require.NoError(t, err)

	assert.NotEqual(t, ManagementIP(k1), ManagementIP(k2))
}
