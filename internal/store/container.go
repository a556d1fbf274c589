package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/acidtib/jiji/internal/corrosion"
)

// Health status values for container.health_status (§3).
const (
	HealthUnknown   = "unknown"
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// Container mirrors one row of the container table (§3).
type Container struct {
	ID                  string
	Service             string
	ServerID            string
	IP                  string
	StartedAt           int64
	InstanceID          string
	HealthStatus        string
	LastHealthCheck     int64
	ConsecutiveFailures int
	HealthPort          *int
}

// InsertContainer is called by the deployment engine when a new container
// instance comes into existence.
func (s *Store) InsertContainer(ctx context.Context, c Container) error {
	if c.ServerID != s.selfID {
		return fmt.Errorf("refusing to insert container row for server %q: not this host (%q)", c.ServerID, s.selfID)
	}
	_, err := s.client.ExecContext(ctx,
		`INSERT INTO container
			(id, service, server_id, ip, started_at, instance_id, health_status, last_health_check,
			 consecutive_failures, health_port)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Service, c.ServerID, c.IP, c.StartedAt, c.InstanceID,
		HealthUnknown, 0, 0, c.HealthPort,
	)
	if err != nil {
		return fmt.Errorf("insert container row: %w", err)
	}
	return nil
}

// ContainerHealth reads a single container row's current health status by
// id, used by the deployment engine to poll for the reconciler-driven
// "healthy" transition after starting a new container (§4.6 step 6). The
// bool is false if no row with that id exists yet.
func (s *Store) ContainerHealth(ctx context.Context, id string) (string, bool, error) {
	rows, err := s.reader.QueryContext(ctx, "SELECT health_status FROM container WHERE id = ?", id)
	if err != nil {
		return "", false, fmt.Errorf("query container health for %s: %w", id, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	var status string
	if err := rows[0].Scan(map[string]any{"health_status": &status}); err != nil {
		return "", false, fmt.Errorf("scan container health for %s: %w", id, err)
	}
	return status, true, nil
}

// ThisHostContainers returns every container row owned by this host, for
// the container-health-sync task (§4.5 step 4).
func (s *Store) ThisHostContainers(ctx context.Context) ([]Container, error) {
	rows, err := s.reader.QueryContext(ctx,
		"SELECT id, service, server_id, ip, started_at, instance_id, health_status, last_health_check, "+
			"consecutive_failures, health_port FROM container WHERE server_id = ?", s.selfID)
	if err != nil {
		return nil, fmt.Errorf("query this host's containers: %w", err)
	}
	return scanContainers(rows)
}

// UpdateContainerHealth persists the new health state computed by the
// container-health-sync task. Only the owning host may call this for a
// given row, enforced at the call site by ThisHostContainers always
// scoping by selfID.
func (s *Store) UpdateContainerHealth(ctx context.Context, id, status string, consecutiveFailures int, nowMS int64) error {
	_, err := s.client.ExecContext(ctx,
		"UPDATE container SET health_status = ?, consecutive_failures = ?, last_health_check = ? "+
			"WHERE id = ? AND server_id = ?",
		status, consecutiveFailures, nowMS, id, s.selfID,
	)
	if err != nil {
		return fmt.Errorf("update container health: %w", err)
	}
	return nil
}

// DeleteContainer removes a container row this host owns, used by the
// deployment engine's explicit removal path.
func (s *Store) DeleteContainer(ctx context.Context, id string) error {
	_, err := s.client.ExecContext(ctx,
		"DELETE FROM container WHERE id = ? AND server_id = ?", id, s.selfID)
	if err != nil {
		return fmt.Errorf("delete container row: %w", err)
	}
	return nil
}

// unhealthyGCAge is how long a container may remain non-healthy before the
// reconciler's garbage collection task considers it abandoned (§4.5 step 5:
// "started_at/1000 < now - 180").
const unhealthyGCAge = 180 * time.Second

// UnhealthyExpiredContainers returns this host's container rows that are
// not healthy and have been running longer than unhealthyGCAge, per §4.5
// step 5's first GC rule. These are containers from deploys that never
// became healthy and were left behind for inspection.
func (s *Store) UnhealthyExpiredContainers(ctx context.Context, now time.Time) ([]Container, error) {
	cutoff := now.Add(-unhealthyGCAge).UnixMilli()
	rows, err := s.reader.QueryContext(ctx,
		"SELECT id, service, server_id, ip, started_at, instance_id, health_status, last_health_check, "+
			"consecutive_failures, health_port FROM container "+
			"WHERE server_id = ? AND health_status != ? AND started_at < ?",
		s.selfID, HealthHealthy, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query unhealthy expired containers: %w", err)
	}
	return scanContainers(rows)
}

// DeleteOfflineServerContainers removes container rows belonging to a
// server that the reconciler has determined is offline. This is the single
// documented exception to strict row ownership (§3/§9): GC of an offline
// host's abandoned rows is allowed from any surviving host so the table
// doesn't accumulate permanently orphaned entries.
func (s *Store) DeleteOfflineServerContainers(ctx context.Context, offlineServerID string) error {
	if offlineServerID == s.selfID {
		return fmt.Errorf("refusing to GC container rows for this host's own server id %q", offlineServerID)
	}
	_, err := s.client.ExecContext(ctx,
		"DELETE FROM container WHERE server_id = ?", offlineServerID)
	if err != nil {
		return fmt.Errorf("gc containers for offline server %s: %w", offlineServerID, err)
	}
	return nil
}

func scanContainers(rows []corrosion.Row) ([]Container, error) {
	containers := make([]Container, 0, len(rows))
	for _, row := range rows {
		var c Container
		if err := row.Scan(map[string]any{
			"id":                   &c.ID,
			"service":              &c.Service,
			"server_id":            &c.ServerID,
			"ip":                   &c.IP,
			"started_at":           &c.StartedAt,
			"instance_id":          &c.InstanceID,
			"health_status":        &c.HealthStatus,
			"last_health_check":    &c.LastHealthCheck,
			"consecutive_failures": &c.ConsecutiveFailures,
		}); err != nil {
			return nil, fmt.Errorf("scan container row: %w", err)
		}
		if raw, ok := row["health_port"]; ok && string(raw) != "null" {
			var port int
			if err := json.Unmarshal(raw, &port); err != nil {
				return nil, fmt.Errorf("scan container health_port: %w", err)
			}
			c.HealthPort = &port
		}
		containers = append(containers, c)
	}
	return containers, nil
}
