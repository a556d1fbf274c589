package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/acidtib/jiji/internal/corrosion"
)

// Server mirrors one row of the server table (§3).
type Server struct {
	ID                 string
	Hostname           string
	Subnet             string
	WireGuardIP        string
	WireGuardPublicKey string
	ManagementIP       string
	Endpoints          []string
	LastSeen           int64
}

// Store wraps a Corrosion client and CLI reader with the cluster's typed
// read/write operations.
type Store struct {
	client *corrosion.Client
	reader *corrosion.Reader
	selfID string
}

// New creates a Store bound to a given host identity. selfID is used to
// enforce the ownership rule (§3/§9): a host may only write its own
// server/container rows, with the single GC exception of deleting stale
// container rows belonging to an offline server.
func New(client *corrosion.Client, reader *corrosion.Reader, selfID string) *Store {
	return &Store{client: client, reader: reader, selfID: selfID}
}

// Heartbeat updates this host's last_seen timestamp (reconciler task 1).
func (s *Store) Heartbeat(ctx context.Context, nowMS int64) error {
	_, err := s.client.ExecContext(ctx,
		"UPDATE server SET last_seen = ? WHERE id = ?", nowMS, s.selfID)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// UpsertServer writes or replaces this host's server row. It refuses to
// write a row for any id other than selfID, per the ownership model.
func (s *Store) UpsertServer(ctx context.Context, srv Server) error {
	if srv.ID != s.selfID {
		return fmt.Errorf("refusing to write server row %q: not owned by this host (%q)", srv.ID, s.selfID)
	}
	endpoints, err := json.Marshal(srv.Endpoints)
	if err != nil {
		return fmt.Errorf("marshal endpoints: %w", err)
	}

	_, err = s.client.ExecContext(ctx,
		`INSERT INTO server
			(id, hostname, subnet, wireguard_ip, wireguard_public_key, management_ip, endpoints, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			hostname = excluded.hostname,
			subnet = excluded.subnet,
			wireguard_ip = excluded.wireguard_ip,
			wireguard_public_key = excluded.wireguard_public_key,
			management_ip = excluded.management_ip,
			endpoints = excluded.endpoints,
			last_seen = excluded.last_seen`,
		srv.ID, srv.Hostname, srv.Subnet, srv.WireGuardIP, srv.WireGuardPublicKey,
		srv.ManagementIP, string(endpoints), srv.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("upsert server row: %w", err)
	}
	return nil
}

// activeWindow is the 5-minute heartbeat window used to decide whether a
// server is active (§4.2/§4.5).
const activeWindow = 5 * time.Minute

// ActiveServers returns every server row other than this host's whose
// last_seen falls within the active window, for peer reconciliation.
func (s *Store) ActiveServers(ctx context.Context, now time.Time) ([]Server, error) {
	cutoff := now.Add(-activeWindow).UnixMilli()
	rows, err := s.reader.QueryContext(ctx,
		"SELECT id, hostname, subnet, wireguard_ip, wireguard_public_key, management_ip, endpoints, last_seen "+
			"FROM server WHERE last_seen > ? AND id != ?", cutoff, s.selfID)
	if err != nil {
		return nil, fmt.Errorf("query active servers: %w", err)
	}
	return scanServers(rows)
}

// OfflineServers returns every server row other than this host's whose
// last_seen falls outside the active window, for the split-brain detector
// (§4.5 step 8).
func (s *Store) OfflineServers(ctx context.Context, now time.Time) ([]Server, error) {
	return s.ServersLastSeenBefore(ctx, now.Add(-activeWindow), true)
}

// gcServerWindow is the 10-minute staleness threshold the GC task uses to
// decide a server's containers should be purged (§4.5 step 5, distinct
// from the 5-minute activeWindow used for peer reconciliation).
const gcServerWindow = 10 * time.Minute

// GCEligibleServers returns servers other than this host whose last_seen
// is older than gcServerWindow, for §4.5 step 5's second GC rule.
func (s *Store) GCEligibleServers(ctx context.Context, now time.Time) ([]Server, error) {
	return s.ServersLastSeenBefore(ctx, now.Add(-gcServerWindow), true)
}

// ServersLastSeenBefore returns every server row whose last_seen is at or
// before cutoff. When excludeSelf is true, this host's own row is omitted.
func (s *Store) ServersLastSeenBefore(ctx context.Context, cutoff time.Time, excludeSelf bool) ([]Server, error) {
	query := "SELECT id, hostname, subnet, wireguard_ip, wireguard_public_key, management_ip, endpoints, last_seen " +
		"FROM server WHERE last_seen <= ?"
	args := []any{cutoff.UnixMilli()}
	if excludeSelf {
		query += " AND id != ?"
		args = append(args, s.selfID)
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query servers last seen before cutoff: %w", err)
	}
	return scanServers(rows)
}

// AllServers returns every server row, for the split-brain detector's
// total-count computation (§4.5 step 8).
func (s *Store) AllServers(ctx context.Context) ([]Server, error) {
	rows, err := s.reader.QueryContext(ctx,
		"SELECT id, hostname, subnet, wireguard_ip, wireguard_public_key, management_ip, endpoints, last_seen "+
			"FROM server")
	if err != nil {
		return nil, fmt.Errorf("query all servers: %w", err)
	}
	return scanServers(rows)
}

func scanServers(rows []corrosion.Row) ([]Server, error) {
	servers := make([]Server, 0, len(rows))
	for _, row := range rows {
		var srv Server
		var endpointsJSON string
		if err := row.Scan(map[string]any{
			"id":                   &srv.ID,
			"hostname":             &srv.Hostname,
			"subnet":               &srv.Subnet,
			"wireguard_ip":         &srv.WireGuardIP,
			"wireguard_public_key": &srv.WireGuardPublicKey,
			"management_ip":        &srv.ManagementIP,
			"endpoints":            &endpointsJSON,
			"last_seen":            &srv.LastSeen,
		}); err != nil {
			return nil, fmt.Errorf("scan server row: %w", err)
		}
		if err := json.Unmarshal([]byte(endpointsJSON), &srv.Endpoints); err != nil {
			return nil, fmt.Errorf("unmarshal endpoints for server %s: %w", srv.ID, err)
		}
		servers = append(servers, srv)
	}
	return servers, nil
}
