package reconcile

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/acidtib/jiji/internal/network"
	"github.com/acidtib/jiji/internal/store"
)

// taskPublicIPRefresh reruns endpoint discovery and, if the result differs
// from this host's currently published endpoint list, writes the new list
// (§4.5 step 6).
func (d *Daemon) taskPublicIPRefresh(ctx context.Context, now time.Time) {
	discovered, err := network.DiscoverEndpoints(ctx, d.config.FabricInterface, d.config.Hostname)
	if err != nil {
		slog.Warn("Discover endpoints failed.", "err", err)
		return
	}

	current, err := d.selfServer(ctx)
	if err != nil {
		slog.Error("Read own server row for endpoint refresh failed.", "err", err)
		return
	}
	if current == nil {
		return
	}

	if slices.Equal(current.Endpoints, discovered) {
		return
	}

	current.Endpoints = discovered
	if err = d.store.UpsertServer(ctx, *current); err != nil {
		slog.Error("Write refreshed endpoints failed.", "err", err)
		return
	}
	slog.Info("Updated published endpoints.", "endpoints", discovered)
}

// selfServer locates this host's own row. AllServers is used rather than
// ActiveServers since this host's own row should always be readable here,
// including at startup before its first heartbeat has landed.
func (d *Daemon) selfServer(ctx context.Context) (*store.Server, error) {
	servers, err := d.store.AllServers(ctx)
	if err != nil {
		return nil, err
	}
	for _, srv := range servers {
		if srv.ID == d.config.SelfID {
			s := srv
			return &s, nil
		}
	}
	return nil, nil
}
