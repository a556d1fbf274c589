package sshexec

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Remote runs commands over one SSH connection.
type Remote struct {
	client *ssh.Client
}

// NewRemote wraps an already-dialed SSH client.
func NewRemote(client *ssh.Client) *Remote {
	return &Remote{client: client}
}

// Run executes cmd on the remote host and returns its combined output with
// leading/trailing whitespace trimmed. Cancelling ctx sends SIGINT to the
// remote process rather than killing the local goroutine outright, giving
// the remote command a chance to exit cleanly.
func (r *Remote) Run(ctx context.Context, cmd string) (string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("create SSH session: %w", err)
	}
	defer func() { _ = session.Close() }()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, runErr := session.CombinedOutput(cmd)
		done <- result{out: strings.TrimSpace(string(out)), err: runErr}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return res.out, fmt.Errorf("run remote command: %w: %s", res.err, res.out)
		}
		return res.out, nil
	case <-ctx.Done():
		if err = session.Signal(ssh.SIGINT); err != nil {
			return "", fmt.Errorf("interrupt remote command: %w", err)
		}
		return "", fmt.Errorf("remote command canceled: %w", ctx.Err())
	}
}

// Client returns the underlying SSH client, for collaborators that need
// to dial additional channels over the same connection (e.g. tunneling
// the Docker engine API to a remote Unix socket).
func (r *Remote) Client() *ssh.Client {
	return r.client
}

// Close closes the underlying SSH connection.
func (r *Remote) Close() error {
	return r.client.Close()
}
