// Package store wraps the replicated Corrosion database with the cluster's
// relational schema: server, container, service, and cluster_metadata
// tables (§3), idempotent startup migrations, and the typed read/write
// operations the reconciler and deployment engine need (§4.2).
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/acidtib/jiji/internal/corrosion"
)

// tableColumns enumerates every column each table must have, in the order
// they're added. Migrate adds whichever of these a given host's replica is
// still missing.
var tableColumns = map[string][]column{
	"server": {
		{"id", "TEXT PRIMARY KEY"},
		{"hostname", "TEXT NOT NULL"},
		{"subnet", "TEXT NOT NULL"},
		{"wireguard_ip", "TEXT NOT NULL"},
		{"wireguard_public_key", "TEXT NOT NULL"},
		{"management_ip", "TEXT NOT NULL"},
		{"endpoints", "TEXT NOT NULL"},
		{"last_seen", "INTEGER NOT NULL DEFAULT 0"},
	},
	"container": {
		{"id", "TEXT PRIMARY KEY"},
		{"service", "TEXT NOT NULL"},
		{"server_id", "TEXT NOT NULL"},
		{"ip", "TEXT NOT NULL DEFAULT ''"},
		{"started_at", "INTEGER NOT NULL DEFAULT 0"},
		{"instance_id", "TEXT NOT NULL DEFAULT ''"},
		{"health_status", "TEXT NOT NULL DEFAULT 'unknown'"},
		{"last_health_check", "INTEGER NOT NULL DEFAULT 0"},
		{"consecutive_failures", "INTEGER NOT NULL DEFAULT 0"},
		{"health_port", "INTEGER"},
	},
	"service": {
		{"name", "TEXT PRIMARY KEY"},
		{"project", "TEXT NOT NULL DEFAULT ''"},
	},
	"cluster_metadata": {
		{"key", "TEXT PRIMARY KEY"},
		{"value", "TEXT NOT NULL DEFAULT ''"},
	},
}

// indexes lists the indexes required for the reconciler's read paths
// (§4.2): container by owning server, container by service, container by
// health status, server by last_seen for staleness checks.
var indexes = []struct {
	name, table, column string
}{
	{"idx_container_server_id", "container", "server_id"},
	{"idx_container_service", "container", "service"},
	{"idx_container_health_status", "container", "health_status"},
	{"idx_server_last_seen", "server", "last_seen"},
}

type column struct {
	name string
	ddl  string
}

// Migrate ensures every table and column in tableColumns exists, adds the
// required indexes, and backfills health_status on pre-existing container
// rows. It is safe to call concurrently from every host at startup:
// duplicate-column and duplicate-index errors from a racing peer are
// treated as success, matching Corrosion's CRDT semantics where the
// schema itself does not participate in conflict resolution the way rows
// do.
func Migrate(ctx context.Context, client *corrosion.Client) error {
	for table, cols := range tableColumns {
		createStmt := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (%s)", table, cols[0].name+" "+cols[0].ddl,
		)
		if _, err := client.ExecContext(ctx, createStmt); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}

		for _, col := range cols[1:] {
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.ddl)
			if _, err := client.ExecContext(ctx, stmt); err != nil && !isDuplicateColumnErr(err) {
				return fmt.Errorf("add column %s.%s: %w", table, col.name, err)
			}
		}
	}

	for _, idx := range indexes {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", idx.name, idx.table, idx.column)
		if _, err := client.ExecContext(ctx, stmt); err != nil && !isDuplicateIndexErr(err) {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}

	if _, err := client.ExecContext(
		ctx, "UPDATE container SET health_status = 'unknown' WHERE health_status IS NULL OR health_status = ''",
	); err != nil {
		return fmt.Errorf("backfill health_status: %w", err)
	}

	return nil
}

func isDuplicateColumnErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

func isDuplicateIndexErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "index") && strings.Contains(msg, "duplicate")
}
