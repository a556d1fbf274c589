package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/acidtib/jiji/internal/api"
	"github.com/acidtib/jiji/internal/dockerengine"
	"github.com/acidtib/jiji/internal/sshexec"
	"github.com/acidtib/jiji/internal/store"
)

// oldContainerTimeFormat is the timestamp suffix appended to a container
// being moved aside, giving the rename-then-replace sequence a unique,
// sortable name (§4.6 step 2: "N_old_<ts>").
const oldContainerTimeFormat = "20060102150405"

// defaultDeployTimeout bounds how long Deploy waits for a new container to
// report healthy when ServiceSpec.DeployTimeout is unset (§4.6 step 6).
const defaultDeployTimeout = 2 * time.Minute

const healthPollInterval = 2 * time.Second

// Engine drives deployments from the operator's workstation: it never
// runs on a fleet host itself, reaching each one over SSH for both the
// container engine API (tunneled) and the store's CLI/HTTP split
// (§4.6, §6.6).
type Engine struct {
	pool *sshexec.Pool

	// CorrosionConfigPath is the store config file path on every fleet
	// host, used for the CLI reads the engine issues over SSH.
	CorrosionConfigPath string
	// CorrosionAPIAddr is the store's loopback HTTP transaction address on
	// every fleet host, tunneled over SSH for writes.
	CorrosionAPIAddr netip.AddrPort
	// ServiceDomain backs ComputeProxyTarget's DNS fallback.
	ServiceDomain string
}

// NewEngine creates a deployment engine bound to pool for SSH access to
// the fleet.
func NewEngine(pool *sshexec.Pool, corrosionConfigPath string, corrosionAPIAddr netip.AddrPort, serviceDomain string) *Engine {
	return &Engine{
		pool:                pool,
		CorrosionConfigPath: corrosionConfigPath,
		CorrosionAPIAddr:    corrosionAPIAddr,
		ServiceDomain:       serviceDomain,
	}
}

// Deploy runs the full zero-downtime rename-then-replace sequence for one
// service on one target host (§4.6 steps 1-7). A failure during steps 3-6
// leaves any prior "_old_" container untouched and returns a failed
// Result rather than panicking or aborting other hosts' deployments.
func (e *Engine) Deploy(ctx context.Context, spec api.ServiceSpec, target store.Server) Result {
	s := newSlot(spec.Name, target.Hostname)

	release, err := e.pool.Acquire(ctx)
	if err != nil {
		return e.failResult(s, fmt.Errorf("acquire SSH pool slot: %w", err))
	}
	defer release()

	sshClient, err := e.pool.SSHClient(target.Hostname)
	if err != nil {
		return e.failResult(s, fmt.Errorf("dial SSH client: %w", err))
	}
	engine, err := dockerengine.NewClient(sshClient, dockerengine.DefaultSocket)
	if err != nil {
		return e.failResult(s, fmt.Errorf("create engine client: %w", err))
	}

	remote, err := remoteStore(e.pool, target.Hostname, e.CorrosionConfigPath, e.CorrosionAPIAddr, target.ID)
	if err != nil {
		return e.failResult(s, fmt.Errorf("bind store client: %w", err))
	}
	if err := remote.UpsertService(ctx, store.Service{Name: spec.Name, Project: spec.Project}); err != nil {
		return e.failResult(s, fmt.Errorf("register service metadata: %w", err))
	}

	containerName := spec.ContainerName()
	log := slog.With("service", spec.Name, "host", target.Hostname, "container", containerName)

	if err := s.advance(StatePreparing); err != nil {
		return e.failResult(s, err)
	}
	if err := engine.RemoveByNamePrefix(ctx, containerName+"_old_"); err != nil {
		return e.failResult(s, fmt.Errorf("clean up prior aborted deploy: %w", err))
	}

	var oldID, oldName string
	if inspect, running, err := engine.InspectRunning(ctx, containerName); err != nil {
		return e.failResult(s, fmt.Errorf("inspect existing container: %w", err))
	} else if running {
		oldID = inspect.ID
		oldName = fmt.Sprintf("%s_old_%s", containerName, time.Now().UTC().Format(oldContainerTimeFormat))
		if err := engine.Rename(ctx, oldID, oldName); err != nil {
			return e.failResult(s, fmt.Errorf("rename existing container out of the way: %w", err))
		}
		log.Info("Renamed existing container out of the way.", "old_name", oldName)
	}

	if err := engine.Pull(ctx, spec.Image); err != nil {
		return e.failResult(s, fmt.Errorf("pull image: %w", err))
	}

	if err := s.advance(StateStarting); err != nil {
		return e.failResult(s, err)
	}
	networkID, err := engine.EnsureNetwork(ctx, FabricNetworkName, "")
	if err != nil {
		return e.failResult(s, fmt.Errorf("ensure fabric network: %w", err))
	}
	config, hostConfig, networkConfig, err := buildContainerSpec(spec, networkID)
	if err != nil {
		return e.failResult(s, fmt.Errorf("build container spec: %w", err))
	}
	newID, err := engine.CreateAndStart(ctx, containerName, config, hostConfig, networkConfig)
	if err != nil {
		return e.failResult(s, fmt.Errorf("create and start new container: %w", err))
	}

	if err := engine.WaitRunning(ctx, newID); err != nil {
		_ = engine.Remove(ctx, newID)
		return e.failResult(s, fmt.Errorf("wait for new container to start: %w", err))
	}

	if err := s.advance(StateHealthChecking); err != nil {
		return e.failResult(s, err)
	}
	containerIP, err := e.registerAndAwaitHealthy(ctx, remote, engine, spec, target, newID)
	if err != nil {
		_ = engine.Remove(ctx, newID)
		return e.failResult(s, err)
	}

	if err := s.advance(StateSwitchingProxy); err != nil {
		return e.failResult(s, err)
	}
	if err := e.deployProxyTargets(ctx, engine, spec, containerName, containerIP, e.ServiceDomain); err != nil {
		_ = engine.Remove(ctx, newID)
		return e.failResult(s, fmt.Errorf("switch reverse-proxy target: %w", err))
	}

	if err := s.advance(StateCleanup); err != nil {
		return e.failResult(s, err)
	}
	if oldID != "" {
		if err := engine.Stop(ctx, oldID); err != nil {
			log.Warn("Failed to stop replaced container.", "old_name", oldName, "err", err)
		}
		if err := engine.Remove(ctx, oldID); err != nil {
			log.Warn("Failed to remove replaced container.", "old_name", oldName, "err", err)
		}
	}
	if err := engine.PruneImages(ctx, spec.Image, spec.ImageRetentionCount); err != nil {
		log.Warn("Failed to prune old images.", "err", err)
	}

	return Result{Service: spec.Name, Host: target.Hostname, State: s.state}
}

// registerAndAwaitHealthy inserts the new container's store row and polls
// it until the reconciler marks it healthy or spec.DeployTimeout elapses
// (§4.6 step 6). It returns the container's fabric IP once known, the
// address proxy switching needs.
func (e *Engine) registerAndAwaitHealthy(
	ctx context.Context, remote *store.Store, engine *dockerengine.Client, spec api.ServiceSpec, target store.Server, instanceID string,
) (string, error) {
	inspect, _, err := engine.InspectRunning(ctx, instanceID)
	if err != nil {
		return "", fmt.Errorf("inspect new container: %w", err)
	}
	containerIP := ""
	if network, ok := inspect.NetworkSettings.Networks[FabricNetworkName]; ok {
		containerIP = network.IPAddress
	}

	var healthPort *int
	if spec.HealthCheck.Kind == api.HealthCheckPort {
		port := spec.HealthCheck.Port
		healthPort = &port
	}

	row := store.Container{
		ID:         uuid.NewString(),
		Service:    spec.ContainerName(),
		ServerID:   target.ID,
		IP:         containerIP,
		StartedAt:  time.Now().UnixMilli(),
		InstanceID: instanceID,
		HealthPort: healthPort,
	}
	if err := remote.InsertContainer(ctx, row); err != nil {
		return containerIP, fmt.Errorf("register container row: %w", err)
	}

	timeout := spec.DeployTimeout
	if timeout <= 0 {
		timeout = defaultDeployTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		status, ok, err := remote.ContainerHealth(ctx, row.ID)
		if err != nil {
			return containerIP, fmt.Errorf("poll container health: %w", err)
		}
		if ok && status == store.HealthHealthy {
			return containerIP, nil
		}
		if ok && status == store.HealthUnhealthy {
			return containerIP, fmt.Errorf("new container %s reported unhealthy", instanceID)
		}
		if time.Now().After(deadline) {
			return containerIP, fmt.Errorf("new container %s did not become healthy within %s", instanceID, timeout)
		}

		select {
		case <-ctx.Done():
			return containerIP, ctx.Err()
		case <-time.After(healthPollInterval):
		}
	}
}

func (e *Engine) failResult(s *slot, err error) Result {
	wrapped := s.fail(err)
	return Result{Service: s.service, Host: s.host, State: s.state, Err: wrapped}
}
