package dockerengine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ExecResult carries the combined output and exit code of an in-container
// exec.
type ExecResult struct {
	Output   string
	ExitCode int
}

// Exec runs cmd inside the named container and waits for it to finish,
// used to invoke the reverse-proxy sidecar's own deploy command
// (§4.6 step 6, "exec into the proxy sidecar container and invoke its
// deploy command").
func (c *Client) Exec(ctx context.Context, containerName string, cmd []string) (ExecResult, error) {
	var result ExecResult

	execResp, err := c.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return result, fmt.Errorf("create exec in %q: %w", containerName, err)
	}

	attach, err := c.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return result, fmt.Errorf("attach to exec in %q: %w", containerName, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return result, fmt.Errorf("read exec output from %q: %w", containerName, err)
	}

	inspect, err := c.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return result, fmt.Errorf("inspect exec in %q: %w", containerName, err)
	}

	result.ExitCode = inspect.ExitCode
	result.Output = stdout.String() + stderr.String()
	if result.ExitCode != 0 {
		return result, fmt.Errorf("exec in %q exited %d: %s", containerName, result.ExitCode, result.Output)
	}
	return result, nil
}
