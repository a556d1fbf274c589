// Package api defines the typed configuration the deployment engine
// consumes for one service: image, ports, volumes, environment, resource
// limits, and the reverse-proxy/health-check options. Loading this
// configuration from an operator-facing file is out of scope; this
// package only defines the shape a loader must produce.
package api

import (
	"fmt"
	"time"

	"github.com/distribution/reference"
)

// ServiceSpec is the full desired configuration for one named service.
type ServiceSpec struct {
	Name    string
	Project string
	Image   string

	Command    []string
	Entrypoint []string
	Env        map[string]string
	Volumes    []string
	// Ports are Docker-style port-mapping strings (e.g. "80:8080/tcp"),
	// parsed by the deployment engine into the container's exposed ports
	// and host port bindings.
	Ports []string

	Resources ContainerResources

	// Host is a single target hostname; Hosts is a list of several. At
	// most one of the two may be set.
	Host  string
	Hosts []string

	Proxy ProxySpec

	HealthCheck HealthCheck

	// DeployTimeout bounds how long the deployment engine waits for the
	// new container to report healthy before declaring the deployment
	// failed (§4.6 step 6).
	DeployTimeout time.Duration

	// ImageRetentionCount overrides dockerengine.DefaultImageRetentionCount
	// when non-zero (§4.6 step 7, §8 supplemented feature).
	ImageRetentionCount int
}

// Validate checks field-level invariants that don't require contacting a
// host or the store.
func (s *ServiceSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("service name must not be empty")
	}
	if _, err := reference.ParseDockerRef(s.Image); err != nil {
		return fmt.Errorf("invalid image %q: %w", s.Image, err)
	}
	if s.Host != "" && len(s.Hosts) > 0 {
		return fmt.Errorf("service %q: host and hosts are mutually exclusive", s.Name)
	}
	if err := s.HealthCheck.Validate(); err != nil {
		return fmt.Errorf("service %q: %w", s.Name, err)
	}
	if err := s.Proxy.Validate(); err != nil {
		return fmt.Errorf("service %q: %w", s.Name, err)
	}
	return nil
}

// TargetHosts returns the effective list of target hostnames, collapsing
// the Host/Hosts mutual-exclusion into a single slice.
func (s *ServiceSpec) TargetHosts() []string {
	if s.Host != "" {
		return []string{s.Host}
	}
	return s.Hosts
}

// ContainerName is the stable container name N for this service on a
// single host (§4.6): the rename-then-replace sequence operates on this
// name.
func (s *ServiceSpec) ContainerName() string {
	if s.Project == "" {
		return s.Name
	}
	return s.Project + "-" + s.Name
}
