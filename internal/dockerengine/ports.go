package dockerengine

import (
	"fmt"
	"strconv"

	"github.com/docker/go-connections/nat"
)

// ExposedPort is a host-bound port the firewall needs to open, per §8 S6.
type ExposedPort struct {
	Port     int
	Protocol string
}

// ExtractExposedPorts parses Docker-style port-mapping strings (e.g.
// "127.0.0.1:3000:3000", "80:8080/tcp", "5432/tcp") and returns the subset
// that are bound to a host port on a non-loopback address, since those are
// the only ones the firewall needs to open (§8 S6). Ports with no host
// binding (container-only) or bound to 127.0.0.1 are excluded.
func ExtractExposedPorts(specs []string) ([]ExposedPort, error) {
	_, bindings, err := nat.ParsePortSpecs(specs)
	if err != nil {
		return nil, fmt.Errorf("parse port specs: %w", err)
	}

	var exposed []ExposedPort
	for containerPort := range bindings {
		for _, binding := range bindings[containerPort] {
			if binding.HostIP == "127.0.0.1" || binding.HostIP == "::1" {
				continue
			}
			if binding.HostPort == "" {
				continue
			}
			port, err := strconv.Atoi(binding.HostPort)
			if err != nil {
				return nil, fmt.Errorf("parse host port %q: %w", binding.HostPort, err)
			}
			exposed = append(exposed, ExposedPort{Port: port, Protocol: containerPort.Proto()})
		}
	}
	return exposed, nil
}

// ContainsContainerPort reports whether port appears anywhere in specs as
// a container-side port, regardless of whether it is published to the
// host or on what address. Used to validate that a proxy's configured
// app_port is actually declared on the service (§4.6 step 6, "every
// app_port listed must appear in the service's ports list"), which is a
// broader check than ExtractExposedPorts' host-exposed subset.
func ContainsContainerPort(specs []string, port int) (bool, error) {
	exposedPorts, _, err := nat.ParsePortSpecs(specs)
	if err != nil {
		return false, fmt.Errorf("parse port specs: %w", err)
	}
	for containerPort := range exposedPorts {
		if containerPort.Int() == port {
			return true, nil
		}
	}
	return false, nil
}
