// Package dockerengine drives the container engine on a fleet host: pull,
// create, start, rename, inspect, remove, list, and prune, the operations
// the deployment engine shells out to while running from the operator's
// machine (§4.6). The engine is reached through the Docker API client
// tunneled over an already-established SSH connection rather than a local
// socket, since the deployment engine never runs on the target host
// itself. Podman's Docker-compatible socket speaks the same API for the
// subset of calls used here.
package dockerengine

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/docker/client"
	"golang.org/x/crypto/ssh"
)

// DefaultSocket is the engine socket path on the remote host for both
// Docker and Podman's Docker-compatible socket.
const DefaultSocket = "/var/run/docker.sock"

// Client wraps the engine API client, embedding it the way
// internal/docker.Client does in the teacher, but dialed through an SSH
// connection instead of the local environment.
type Client struct {
	*client.Client
}

// NewClient builds an engine client that reaches socketPath on the other
// end of sshClient, the same tunneling trick `docker -H ssh://...` performs
// via its connection helper.
func NewClient(sshClient *ssh.Client, socketPath string) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	dial := func(_ context.Context, _, _ string) (net.Conn, error) {
		return sshClient.Dial("unix", socketPath)
	}

	cli, err := client.NewClientWithOpts(
		client.WithHost("http://engine.sock"),
		client.WithDialContext(dial),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create engine client: %w", err)
	}
	return &Client{Client: cli}, nil
}

// NewLocalClient builds an engine client against the local environment's
// Docker host (DOCKER_HOST or the default socket), the way the reconciler
// reaches the engine on the same host it runs on, mirroring the teacher's
// repeated `client.NewClientWithOpts(client.FromEnv, ...)` call sites.
func NewLocalClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create local engine client: %w", err)
	}
	return &Client{Client: cli}, nil
}

// WaitReady waits for the engine to respond to a ping, retrying with
// exponential backoff until ctx is canceled. Used right after a fresh
// provision, before the first deployment to a host.
func (c *Client) WaitReady(ctx context.Context) error {
	boff := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithMaxElapsedTime(0),
	), ctx)

	ping := func() error {
		_, err := c.Ping(ctx)
		if err != nil && !client.IsErrConnectionFailed(err) {
			return backoff.Permanent(fmt.Errorf("ping engine: %w", err))
		}
		return err
	}

	if err := backoff.Retry(ping, boff); err != nil {
		return fmt.Errorf("wait for engine: %w", err)
	}
	return nil
}
