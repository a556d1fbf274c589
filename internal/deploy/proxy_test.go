package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/acidtib/jiji/internal/api"
)

func TestComputeProxyTarget_CommandHealthCheck(t *testing.T) {
	spec := api.ServiceSpec{
		Project:     "acme",
		Name:        "web",
		HealthCheck: api.HealthCheck{Kind: api.HealthCheckCommand, Command: []string{"curl", "-f", "/"}},
	}

	target := ComputeProxyTarget(spec, 3000, "acme-web", "10.210.0.5", "svc.internal")
	assert.Equal(t, "acme-web:3000", target)
}

func TestComputeProxyTarget_KnownContainerIP(t *testing.T) {
	spec := api.ServiceSpec{Project: "acme", Name: "web"}

	target := ComputeProxyTarget(spec, 3000, "acme-web", "10.210.0.5", "svc.internal")
	assert.Equal(t, "10.210.0.5:3000", target)
}

func TestComputeProxyTarget_DNSFallback(t *testing.T) {
	spec := api.ServiceSpec{Project: "acme", Name: "web"}

	target := ComputeProxyTarget(spec, 3000, "acme-web", "", "svc.internal")
	assert.Equal(t, "acme-web.svc.internal:3000", target)
}
