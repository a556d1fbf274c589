package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// taskGC runs the two garbage-collection rules every gcEveryIterations
// (§4.5 step 5): abandoned unhealthy containers of this host's own, and
// the container rows of servers that have been offline long enough to be
// considered gone.
func (d *Daemon) taskGC(ctx context.Context, now time.Time) {
	expired, err := d.store.UnhealthyExpiredContainers(ctx, now)
	if err != nil {
		slog.Error("List unhealthy expired containers failed.", "err", err)
	} else {
		for _, c := range expired {
			if rErr := d.engine.Remove(ctx, c.InstanceID); rErr != nil {
				slog.Error("Remove abandoned unhealthy container failed.", "container_id", c.ID, "err", rErr)
				continue
			}
			if dErr := d.store.DeleteContainer(ctx, c.ID); dErr != nil {
				slog.Error("Delete abandoned unhealthy container row failed.", "container_id", c.ID, "err", dErr)
				continue
			}
			slog.Info("Garbage collected abandoned unhealthy container.", "container_id", c.ID, "service", c.Service)
		}
	}

	offline, err := d.store.GCEligibleServers(ctx, now)
	if err != nil {
		slog.Error("List GC-eligible offline servers failed.", "err", err)
		return
	}
	for _, srv := range offline {
		if err = d.store.DeleteOfflineServerContainers(ctx, srv.ID); err != nil {
			slog.Error("Delete offline server's containers failed.", "server_id", srv.ID, "err", err)
			continue
		}
		slog.Info("Garbage collected containers of offline server.", "server_id", srv.ID, "hostname", srv.Hostname)
	}
}
