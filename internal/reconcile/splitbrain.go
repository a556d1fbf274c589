package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// splitBrainActiveRatio is the minimum fraction of server rows that must
// be active for the cluster to be considered healthy, per §4.5 step 8.
const splitBrainActiveRatio = 0.5

// taskSplitBrainDetector compares the total server row count against the
// active count and logs an error-level observation, including the
// unreachable hostnames, when fewer than half the known servers are
// active. Detection only: no automated remediation is attempted.
func (d *Daemon) taskSplitBrainDetector(ctx context.Context, now time.Time) {
	all, err := d.store.AllServers(ctx)
	if err != nil {
		slog.Error("List all servers for split-brain detection failed.", "err", err)
		return
	}
	total := len(all)
	if total <= 1 {
		return
	}

	offline, err := d.store.OfflineServers(ctx, now)
	if err != nil {
		slog.Error("List offline servers for split-brain detection failed.", "err", err)
		return
	}
	active := total - len(offline)

	if float64(active)/float64(total) >= splitBrainActiveRatio {
		return
	}

	unreachable := make([]string, 0, len(offline))
	for _, srv := range offline {
		unreachable = append(unreachable, srv.Hostname)
	}
	slog.Error("Possible split-brain: fewer than half of known servers are active.",
		"total", total, "active", active, "unreachable_hosts", unreachable)
}
