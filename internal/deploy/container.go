package deploy

import (
	"fmt"

	dockercontainer "github.com/docker/docker/api/types/container"
	dockernetwork "github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"

	"github.com/acidtib/jiji/internal/api"
)

// FabricNetworkName is the bridge network every service container
// attaches to, the container-side counterpart of the WireGuard mesh
// (§4.6 step 4 "attaching it to the fabric network").
const FabricNetworkName = "jiji"

// buildContainerSpec translates a ServiceSpec into the engine's container
// creation arguments: image, command, environment, ports, volumes,
// resource limits, and the always-on "unless-stopped" restart policy
// (§4.6 step 4).
func buildContainerSpec(
	spec api.ServiceSpec, networkID string,
) (*dockercontainer.Config, *dockercontainer.HostConfig, *dockernetwork.NetworkingConfig, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	exposedPorts, portBindings, err := nat.ParsePortSpecs(spec.Ports)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse port specs: %w", err)
	}

	config := &dockercontainer.Config{
		Image:        spec.Image,
		Cmd:          spec.Command,
		Entrypoint:   spec.Entrypoint,
		Env:          env,
		ExposedPorts: exposedPorts,
		Labels: map[string]string{
			"jiji.service": spec.Name,
			"jiji.project": spec.Project,
		},
	}

	hostConfig := &dockercontainer.HostConfig{
		Binds:        spec.Volumes,
		PortBindings: portBindings,
		RestartPolicy: dockercontainer.RestartPolicy{
			Name: dockercontainer.RestartPolicyUnlessStopped,
		},
		Resources: dockercontainer.Resources{
			NanoCPUs: spec.Resources.CPU,
			Memory:   spec.Resources.Memory,
		},
	}

	networkConfig := &dockernetwork.NetworkingConfig{
		EndpointsConfig: map[string]*dockernetwork.EndpointSettings{},
	}
	if networkID != "" {
		networkConfig.EndpointsConfig[FabricNetworkName] = &dockernetwork.EndpointSettings{NetworkID: networkID}
	}

	return config, hostConfig, networkConfig, nil
}
