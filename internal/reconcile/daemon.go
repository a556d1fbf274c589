// Package reconcile implements the per-host reconciler daemon (§4.5): a
// single-threaded cooperative loop with a fixed 30-second base period that
// keeps the WireGuard mesh, container health, and the replicated store's
// bookkeeping converged with the cluster's state, plus periodic garbage
// collection and diagnostics sub-tasks run at integer multiples of the
// base period.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/acidtib/jiji/internal/dockerengine"
	"github.com/acidtib/jiji/internal/network"
	"github.com/acidtib/jiji/internal/store"
	"github.com/acidtib/jiji/internal/wgkey"
)

// Period is the fixed base iteration period (§4.5).
const Period = 30 * time.Second

const (
	gcEveryIterations          = 10 // 5 minutes
	diagnosticsEveryIterations = 20 // 10 minutes
	milestoneEveryIterations   = 100
)

// slowIterationThreshold is the elapsed-duration warning threshold for a
// single iteration (§4.5, "If > 15s, emit a 'slow iteration' warning").
const slowIterationThreshold = 15 * time.Second

// Config carries the host-identifying and network-shape information the
// daemon needs to build WireGuard configuration and compute GC windows.
type Config struct {
	SelfID              string
	Hostname            string
	Subnet              string
	ContainerSubnet     string
	WireGuardPublicKey  string
	WireGuardPrivateKey wgkey.Key
	ManagementIP        string
	FabricInterface     string
}

// Daemon holds the reconciler's collaborators: the replicated store, the
// local WireGuard device, and the local container engine.
type Daemon struct {
	store  *store.Store
	device *network.Device
	engine *dockerengine.Client
	config Config

	iteration int
}

// New creates a Daemon bound to its collaborators.
func New(st *store.Store, device *network.Device, engine *dockerengine.Client, config Config) *Daemon {
	return &Daemon{store: st, device: device, engine: engine, config: config}
}

// Run executes the reconciliation loop until ctx is canceled. On
// cancellation it performs one final heartbeat before returning, per
// §4.5's lifecycle: "set a shutdown flag, do one final heartbeat, exit 0."
// A single task's error is logged and does not abort the loop or the
// iteration; every task below is a no-failure best-effort step by design.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Starting reconciler daemon.", "server_id", d.config.SelfID, "period", Period)

	ticker := time.NewTicker(Period)
	defer ticker.Stop()

	d.runIteration(ctx)

	for {
		select {
		case <-ticker.C:
			d.runIteration(ctx)
		case <-ctx.Done():
			slog.Info("Reconciler daemon shutting down, performing final heartbeat.")
			finalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.store.Heartbeat(finalCtx, nowMS()); err != nil {
				slog.Error("Final heartbeat failed.", "err", err)
			}
			return nil
		}
	}
}

func (d *Daemon) runIteration(ctx context.Context) {
	start := time.Now()
	d.iteration++
	now := start

	d.taskHeartbeat(ctx, now)
	d.taskPeerReconciliation(ctx, now)
	d.taskPeerHealthMonitoring(ctx, now)
	d.taskContainerHealthSync(ctx, now)

	if d.iteration%gcEveryIterations == 0 {
		d.taskGC(ctx, now)
	}
	if d.iteration%diagnosticsEveryIterations == 0 {
		d.taskPublicIPRefresh(ctx, now)
		d.taskStoreHealth(ctx, now)
		d.taskSplitBrainDetector(ctx, now)
	}

	elapsed := time.Since(start)
	if elapsed > slowIterationThreshold {
		slog.Warn("Slow reconciliation iteration.", "iteration", d.iteration, "elapsed", elapsed)
	}
	if d.iteration%milestoneEveryIterations == 0 {
		slog.Info("Reconciler milestone.", "iteration", d.iteration, "uptime", time.Duration(d.iteration)*Period)
	}
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}
