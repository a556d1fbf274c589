package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = "private-key-placeholder\tpubkey-placeholder\t51820\toff\n" +
	"pub1==\t(none)\t10.0.0.1:51820\t10.210.0.0/24,10.210.128.0/24,fdcc::1/128\t1700000000\t100\t200\t25\n" +
	"pub2==\t(none)\t(none)\t10.210.1.0/24\t0\t0\t0\toff\n"

func TestParseWireGuardDump(t *testing.T) {
	rows, err := ParseWireGuardDump(sampleDump)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "pub1==", first.PublicKey)
	assert.Equal(t, "10.0.0.1:51820", first.Endpoint)
	assert.Len(t, first.AllowedIPs, 3)
	assert.Equal(t, time.Unix(1700000000, 0), first.LatestHandshake)
	assert.Equal(t, int64(100), first.RxBytes)
	assert.Equal(t, int64(200), first.TxBytes)
	assert.Equal(t, 25, first.PersistentKeepaliveSeconds)

	second := rows[1]
	assert.Equal(t, "(none)", second.Endpoint)
	assert.True(t, second.LatestHandshake.IsZero())
	assert.Equal(t, 0, second.PersistentKeepaliveSeconds)
}

func TestParseWireGuardDump_EmptyAndHeaderOnly(t *testing.T) {
	rows, err := ParseWireGuardDump("private-key-placeholder\tpubkey-placeholder\t51820\toff\n")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = ParseWireGuardDump("")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseWireGuardDump_InvalidHandshake(t *testing.T) {
	_, err := ParseWireGuardDump("pub1==\t(none)\t(none)\t\tnot-a-number\t0\t0\toff\n")
	assert.Error(t, err)
}
