// Package sshexec runs commands on remote hosts over SSH: the connection
// and auth logic the deployment engine and reconciler bootstrap use to
// reach SSH-reachable hosts from the operator's workstation (§1), plus a
// semaphore-bounded pool for running the same command across a fleet.
package sshexec

import (
	"fmt"
	"net"
	"os"
	osuser "os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// connectTimeout bounds the initial TCP+handshake dial.
const connectTimeout = 5 * time.Second

// Connect dials an SSH host, preferring the running SSH agent and falling
// back to a private key file. user defaults to the current OS user and
// port defaults to 22, matching the `ssh` CLI's own defaults.
func Connect(user, host string, port int, sshKeyPath string) (*ssh.Client, error) {
	if user == "" {
		if u, err := osuser.Current(); err == nil {
			user = u.Username
		}
	}
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	agentAuth, closeAgent, agentErr := sshAgentAuth()
	if agentErr == nil {
		defer closeAgent()
		config := &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{agentAuth},
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         connectTimeout,
		}
		if client, err := ssh.Dial("tcp", addr, config); err == nil {
			return client, nil
		} else {
			agentErr = err
		}
	}

	if sshKeyPath == "" {
		return nil, fmt.Errorf("connect using SSH agent: %w", agentErr)
	}

	keyAuth, err := privateKeyAuth(sshKeyPath)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{keyAuth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("connect using private key %q: %w", sshKeyPath, err)
	}
	return client, nil
}

func sshAgentAuth() (ssh.AuthMethod, func(), error) {
	conn, err := net.Dial("unix", os.Getenv("SSH_AUTH_SOCK"))
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect to SSH agent: %w", err)
	}
	auth := ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
	return auth, func() { _ = conn.Close() }, nil
}

func privateKeyAuth(path string) (ssh.AuthMethod, error) {
	path = expandHomeDir(path)
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file %q: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

// expandHomeDir expands a leading "~" to the current user's home
// directory, the same convention the `ssh` CLI applies to key paths.
func expandHomeDir(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	rest := strings.TrimPrefix(path, "~")
	return filepath.Join(home, rest)
}
