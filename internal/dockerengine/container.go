package dockerengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
)

// ErrContainerDidNotStart is returned by WaitRunning when the container
// never reaches the running state within the polling window (§4.6 step 5).
var ErrContainerDidNotStart = errors.New("container did not start")

const (
	startPollAttempts = 10
	startPollInterval = 1 * time.Second
)

// CreateAndStart creates a container named name from config/hostConfig and
// starts it, matching §4.6 step 4's "Run the new container with name N".
func (c *Client) CreateAndStart(
	ctx context.Context, name string, config *container.Config, hostConfig *container.HostConfig,
	networkConfig *network.NetworkingConfig,
) (string, error) {
	resp, err := c.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, name)
	if err != nil {
		return "", fmt.Errorf("create container %q: %w", name, err)
	}
	if err = c.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return resp.ID, fmt.Errorf("start container %q: %w", name, err)
	}
	return resp.ID, nil
}

// WaitRunning polls the container's status until it reports running, up to
// 10 attempts at 1-second intervals (§4.6 step 5).
func (c *Client) WaitRunning(ctx context.Context, id string) error {
	for attempt := 0; attempt < startPollAttempts; attempt++ {
		inspect, err := c.ContainerInspect(ctx, id)
		if err != nil {
			return fmt.Errorf("inspect container %q: %w", id, err)
		}
		if inspect.State != nil && inspect.State.Running {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(startPollInterval):
		}
	}
	return fmt.Errorf("%w: %s", ErrContainerDidNotStart, id)
}

// Rename renames a running container, used to move the existing container
// for service N out of the way to N_old_<ts> before the replacement
// starts (§4.6 step 2).
func (c *Client) Rename(ctx context.Context, id, newName string) error {
	if err := c.ContainerRename(ctx, id, newName); err != nil {
		return fmt.Errorf("rename container %q to %q: %w", id, newName, err)
	}
	return nil
}

// Stop stops a running container, ignoring the case where it's already
// stopped or gone.
func (c *Client) Stop(ctx context.Context, id string) error {
	if err := c.ContainerStop(ctx, id, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop container %q: %w", id, err)
	}
	return nil
}

// Remove force-removes a container and its anonymous volumes, ignoring
// not-found errors so cleanup is idempotent.
func (c *Client) Remove(ctx context.Context, id string) error {
	err := c.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %q: %w", id, err)
	}
	return nil
}

// RemoveByNamePrefix force-removes every container whose name starts with
// prefix, implementing §4.6 step 1's cleanup of a prior aborted deploy's
// "<container_name>_old_*" leftovers.
func (c *Client) RemoveByNamePrefix(ctx context.Context, prefix string) error {
	containers, err := c.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", prefix)),
	})
	if err != nil {
		return fmt.Errorf("list containers matching %q: %w", prefix, err)
	}

	var errs []error
	for _, ctr := range containers {
		if err := c.Remove(ctx, ctr.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InspectRunning inspects a container by name, returning (inspect, true)
// if it exists and is running, or (_, false) if it doesn't exist.
func (c *Client) InspectRunning(ctx context.Context, name string) (container.InspectResponse, bool, error) {
	inspect, err := c.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return container.InspectResponse{}, false, nil
		}
		return container.InspectResponse{}, false, fmt.Errorf("inspect container %q: %w", name, err)
	}
	running := inspect.State != nil && inspect.State.Running
	return inspect, running, nil
}

// RemoveVolume removes a named volume, ignoring not-found errors.
func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	if err := c.VolumeRemove(ctx, name, true); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove volume %q: %w", name, err)
	}
	return nil
}

// ListVolumes lists volume names matching the given label filter.
func (c *Client) ListVolumes(ctx context.Context, labelFilter string) ([]string, error) {
	args := filters.NewArgs()
	if labelFilter != "" {
		args.Add("label", labelFilter)
	}
	resp, err := c.VolumeList(ctx, volume.ListOptions{Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	names := make([]string, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		names = append(names, v.Name)
	}
	return names, nil
}
