package sshexec

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize bounds concurrent SSH sessions across the whole fleet
// (§5): deployments to different hosts run in parallel but are globally
// rate-limited so a large fleet can't open thousands of sockets at once.
const DefaultPoolSize = 30

// Pool dials and caches one Remote per host, and bounds the number of
// commands running concurrently across all of them with a counting
// semaphore.
type Pool struct {
	user       string
	port       int
	sshKeyPath string

	sem *semaphore.Weighted

	mu      sync.Mutex
	remotes map[string]*Remote
}

// NewPool creates a Pool with the given global concurrency limit. A size
// of 0 uses DefaultPoolSize.
func NewPool(user string, port int, sshKeyPath string, size int64) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		user:       user,
		port:       port,
		sshKeyPath: sshKeyPath,
		sem:        semaphore.NewWeighted(size),
		remotes:    make(map[string]*Remote),
	}
}

// Run acquires a semaphore slot, dials host if not already connected
// (reusing the cached connection otherwise), and runs cmd on it.
func (p *Pool) Run(ctx context.Context, host, cmd string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire SSH pool slot for %s: %w", host, err)
	}
	defer p.sem.Release(1)

	remote, err := p.remote(host)
	if err != nil {
		return "", err
	}
	return remote.Run(ctx, cmd)
}

// Acquire reserves one pool slot until the returned release func is
// called. Used by collaborators that hold a tunneled connection (the
// Docker engine API over SSH) for an extended operation rather than a
// single Run call, so the same global concurrency bound (§5, default 30)
// still applies.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire SSH pool slot: %w", err)
	}
	return func() { p.sem.Release(1) }, nil
}

// SSHClient returns the raw *ssh.Client for host, dialing and caching it
// if needed, for collaborators that need to tunnel a non-shell protocol
// (the Docker engine API) over the same connection rather than run shell
// commands.
func (p *Pool) SSHClient(host string) (*ssh.Client, error) {
	remote, err := p.remote(host)
	if err != nil {
		return nil, err
	}
	return remote.Client(), nil
}

func (p *Pool) remote(host string) (*Remote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.remotes[host]; ok {
		return r, nil
	}

	client, err := Connect(p.user, host, p.port, p.sshKeyPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", host, err)
	}
	remote := NewRemote(client)
	p.remotes[host] = remote
	return remote, nil
}

// Close closes every cached connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for host, r := range p.remotes {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection to %s: %w", host, err))
		}
		delete(p.remotes, host)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("close pool: %v", errs)
}
