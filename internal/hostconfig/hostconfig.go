// Package hostconfig persists the per-host identity a jijid daemon must
// keep stable across restarts: its server id, subnet assignment, and
// WireGuard private key. Everything else about a host's current state
// (peers, endpoints, health) lives in the replicated store; this file is
// the one piece of local-only state that must survive a restart before
// the store can be reached again, the same role the teacher's
// corroservice.Config.Write plays for corrosion's own config.toml.
package hostconfig

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/acidtib/jiji/internal/wgkey"
)

// HostConfig is the local, TOML-encoded record of one host's identity
// within the cluster.
type HostConfig struct {
	SelfID      string `toml:"self_id"`
	Hostname    string `toml:"hostname"`
	ClusterCIDR string `toml:"cluster_cidr"`
	SubnetIndex uint32 `toml:"subnet_index"`

	WireGuardPrivateKey wgkey.Key `toml:"wireguard_private_key"`

	CorrosionConfigPath string `toml:"corrosion_config_path"`
	CorrosionAPIAddr    string `toml:"corrosion_api_addr"`
	FabricInterface     string `toml:"fabric_interface"`
}

// Load reads and decodes a HostConfig from path.
func Load(path string) (*HostConfig, error) {
	var cfg HostConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode host config %s: %w", path, err)
	}
	return &cfg, nil
}

// Exists reports whether a host config file is already present at path,
// distinguishing a host's first join from a subsequent restart.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save encodes cfg as TOML and writes it to path with mode 0600, since it
// contains the host's WireGuard private key.
func (c *HostConfig) Save(path string) error {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.Indent = ""
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode host config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write host config %s: %w", path, err)
	}
	return nil
}
