package hostconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acidtib/jiji/internal/wgkey"
)

func TestHostConfig_SaveAndLoad(t *testing.T) {
	key, err := wgkey.New()
	require.NoError(t, err)

	want := &HostConfig{
		SelfID:              "web-01",
		Hostname:            "web-01.example.com",
		ClusterCIDR:         "10.210.0.0/16",
		SubnetIndex:         2,
		WireGuardPrivateKey: key,
		CorrosionConfigPath: "/opt/jiji/corrosion/config.toml",
		CorrosionAPIAddr:    "127.0.0.1:8080",
		FabricInterface:     "wg-jiji",
	}

	path := filepath.Join(t.TempDir(), "host.toml")
	require.NoError(t, want.Save(path))

	assert.True(t, Exists(path))
	assert.False(t, Exists(filepath.Join(t.TempDir(), "missing.toml")))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
