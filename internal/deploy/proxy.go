package deploy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/acidtib/jiji/internal/api"
	"github.com/acidtib/jiji/internal/dockerengine"
)

// ComputeProxyTarget picks the reverse-proxy deploy target for one
// app port, per §4.6's closing rule: a command-based health check always
// targets the container by name (so the proxy can exec into it); else a
// known container IP is used directly; else it falls back to the
// project/service DNS name.
func ComputeProxyTarget(spec api.ServiceSpec, appPort int, containerName, containerIP, serviceDomain string) string {
	if spec.HealthCheck.IsCommandBased() {
		return fmt.Sprintf("%s:%d", containerName, appPort)
	}
	if containerIP != "" {
		return fmt.Sprintf("%s:%d", containerIP, appPort)
	}
	return fmt.Sprintf("%s-%s.%s:%d", spec.Project, spec.Name, serviceDomain, appPort)
}

// deployProxyTargets execs the proxy deploy command into the sidecar
// container for every configured app port (§4.6 step 6, "multi-target
// services deploy each target independently").
func (e *Engine) deployProxyTargets(
	ctx context.Context, engine *dockerengine.Client, spec api.ServiceSpec, containerName, containerIP, serviceDomain string,
) error {
	if !spec.Proxy.Enabled() {
		return nil
	}

	for _, appPort := range spec.Proxy.AppPorts {
		ok, err := dockerengine.ContainsContainerPort(spec.Ports, appPort)
		if err != nil {
			return fmt.Errorf("parse service %q ports: %w", spec.Name, err)
		}
		if !ok {
			return fmt.Errorf("proxy app port %d is not in service %q's ports list", appPort, spec.Name)
		}

		target := ComputeProxyTarget(spec, appPort, containerName, containerIP, serviceDomain)
		cmd := e.proxyDeployCommand(spec, target)

		if _, err := engine.Exec(ctx, spec.Proxy.ContainerName(), cmd); err != nil {
			return fmt.Errorf("exec proxy deploy for target %s: %w", target, err)
		}
	}
	return nil
}

// proxyDeployCommand builds the sidecar's deploy invocation with the
// configured host, path-prefix, TLS, and health-check flags (§4.6 step 6).
func (e *Engine) proxyDeployCommand(spec api.ServiceSpec, target string) []string {
	cmd := []string{"deploy", spec.Name, "--target", target}

	for _, host := range spec.TargetHosts() {
		cmd = append(cmd, "--host", host)
	}
	if spec.Proxy.PathPrefix != "" {
		cmd = append(cmd, "--path-prefix", spec.Proxy.PathPrefix)
	}
	if spec.Proxy.TLS {
		cmd = append(cmd, "--tls")
	}
	switch spec.HealthCheck.Kind {
	case api.HealthCheckPort:
		cmd = append(cmd, "--health-check-path", "/", "--health-check-port", strconv.Itoa(spec.HealthCheck.Port))
	case api.HealthCheckCommand:
		cmd = append(cmd, "--health-check-cmd", fmt.Sprintf("%q", spec.HealthCheck.Command))
	}
	return cmd
}
