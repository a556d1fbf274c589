package store

import (
	"context"
	"fmt"
)

// Well-known cluster_metadata keys (§3).
const (
	MetadataClusterCIDR   = "cluster_cidr"
	MetadataServiceDomain = "service_domain"
	MetadataDiscovery     = "discovery"
	MetadataCreatedAt     = "created_at"
)

// SetMetadata writes a cluster_metadata key/value pair. Populated once on
// first cluster bootstrap; any host may write it during that bootstrap
// race, so writes use INSERT OR IGNORE rather than upsert — the first
// write wins and later joiners must read, not overwrite, the bootstrap
// values.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.client.ExecContext(ctx,
		"INSERT INTO cluster_metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set cluster metadata %s: %w", key, err)
	}
	return nil
}

// Metadata reads a single cluster_metadata value. The empty string and a
// nil error are returned if the key has never been set.
func (s *Store) Metadata(ctx context.Context, key string) (string, error) {
	rows, err := s.reader.QueryContext(ctx, "SELECT value FROM cluster_metadata WHERE key = ?", key)
	if err != nil {
		return "", fmt.Errorf("query cluster metadata %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	var value string
	if err := rows[0].Scan(map[string]any{"value": &value}); err != nil {
		return "", fmt.Errorf("scan cluster metadata %s: %w", key, err)
	}
	return value, nil
}

// Ping verifies the store is reachable and can answer a trivial query,
// used by the reconciler's store health check (§4.5 step 7).
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.reader.QueryContext(ctx, "SELECT 1")
	if err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// ClusterExists reports whether this replica has already been bootstrapped,
// used by the join flow to detect "cluster already exists" (§3).
func (s *Store) ClusterExists(ctx context.Context) (bool, error) {
	value, err := s.Metadata(ctx, MetadataClusterCIDR)
	if err != nil {
		return false, err
	}
	return value != "", nil
}
