package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// taskHeartbeat updates this host's last_seen timestamp (§4.5 step 1).
// It always runs first in the iteration: every other task's view of which
// servers are active depends on heartbeats being fresh.
func (d *Daemon) taskHeartbeat(ctx context.Context, now time.Time) {
	if err := d.store.Heartbeat(ctx, now.UnixMilli()); err != nil {
		slog.Error("Heartbeat failed.", "err", err)
	}
}
