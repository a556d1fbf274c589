package dockerengine

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	networktypes "github.com/docker/docker/api/types/network"
)

// EnsureNetwork creates the named bridge network if it doesn't already
// exist, used to provision the fabric network new containers attach to
// (§4.1, §4.6 step 4 "attaching it to the fabric network").
func (c *Client) EnsureNetwork(ctx context.Context, name, subnet string) (string, error) {
	if inspect, err := c.NetworkInspect(ctx, name, networktypes.InspectOptions{}); err == nil {
		return inspect.ID, nil
	} else if !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("inspect network %q: %w", name, err)
	}

	ipam := &networktypes.IPAM{
		Driver: "default",
	}
	if subnet != "" {
		ipam.Config = []networktypes.IPAMConfig{{Subnet: subnet}}
	}

	resp, err := c.NetworkCreate(ctx, name, networktypes.CreateOptions{
		Driver: "bridge",
		IPAM:   ipam,
	})
	if err != nil {
		return "", fmt.Errorf("create network %q: %w", name, err)
	}
	return resp.ID, nil
}

// RemoveNetwork removes a network by name, ignoring not-found errors.
func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	if err := c.NetworkRemove(ctx, name); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove network %q: %w", name, err)
	}
	return nil
}
