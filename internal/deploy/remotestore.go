package deploy

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/acidtib/jiji/internal/corrosion"
	"github.com/acidtib/jiji/internal/sshexec"
	"github.com/acidtib/jiji/internal/store"
)

// sshCommandRunner implements corrosion.CommandRunner by invoking the CLI
// binary as a remote SSH command instead of a local subprocess, letting a
// Reader read a target host's store replica from the operator's
// workstation the same way it would read the local replica on that host.
type sshCommandRunner struct {
	pool *sshexec.Pool
	host string
}

func (r sshCommandRunner) Run(ctx context.Context, name string, args []string) (string, error) {
	cmd := sshexec.QuoteCommand(append([]string{name}, args...)...)
	return r.pool.Run(ctx, r.host, cmd)
}

// remoteStore builds a *store.Store bound to a target host's replica: CLI
// reads run over the SSH pool, writes go through the HTTP transaction
// endpoint tunneled over the same SSH connection (§9's CLI-reads/
// HTTP-writes split, applied from off-host). selfID scopes the writes to
// the target host's own server row, per the store's ownership rule.
func remoteStore(
	pool *sshexec.Pool, host, corrosionConfigPath string, corrosionAPIAddr netip.AddrPort, selfID string,
) (*store.Store, error) {
	sshClient, err := pool.SSHClient(host)
	if err != nil {
		return nil, fmt.Errorf("dial SSH client for %s: %w", host, err)
	}

	client, err := corrosion.NewTunneledClient(sshClient, corrosionAPIAddr)
	if err != nil {
		return nil, fmt.Errorf("create tunneled store client for %s: %w", host, err)
	}

	reader := corrosion.NewReader(corrosionConfigPath)
	reader.Runner = sshCommandRunner{pool: pool, host: host}

	return store.New(client, reader, selfID), nil
}

// Servers lists every server row in the cluster, read from anyHost's
// store replica. Since the store is fully replicated (§3), any reachable
// host's replica reflects the whole cluster's membership.
func (e *Engine) Servers(ctx context.Context, anyHost string) ([]store.Server, error) {
	remote, err := remoteStore(e.pool, anyHost, e.CorrosionConfigPath, e.CorrosionAPIAddr, "")
	if err != nil {
		return nil, fmt.Errorf("bind store client: %w", err)
	}
	return remote.AllServers(ctx)
}

// Services lists every service row in the cluster, read from anyHost's
// store replica.
func (e *Engine) Services(ctx context.Context, anyHost string) ([]store.Service, error) {
	remote, err := remoteStore(e.pool, anyHost, e.CorrosionConfigPath, e.CorrosionAPIAddr, "")
	if err != nil {
		return nil, fmt.Errorf("bind store client: %w", err)
	}
	return remote.Services(ctx)
}
