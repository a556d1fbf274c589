package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ServiceSpec
		wantErr string
	}{
		{
			name: "valid minimal spec",
			spec: ServiceSpec{
				Name:  "web",
				Image: "nginx:latest",
			},
		},
		{
			name: "empty name",
			spec: ServiceSpec{
				Image: "nginx:latest",
			},
			wantErr: "service name must not be empty",
		},
		{
			name: "invalid image reference",
			spec: ServiceSpec{
				Name:  "web",
				Image: "UPPER:not:valid",
			},
			wantErr: "invalid image",
		},
		{
			name: "host and hosts both set",
			spec: ServiceSpec{
				Name:  "web",
				Image: "nginx:latest",
				Host:  "a.example.com",
				Hosts: []string{"b.example.com"},
			},
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestServiceSpec_TargetHosts(t *testing.T) {
	single := ServiceSpec{Host: "a.example.com"}
	assert.Equal(t, []string{"a.example.com"}, single.TargetHosts())

	multi := ServiceSpec{Hosts: []string{"a.example.com", "b.example.com"}}
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, multi.TargetHosts())

	none := ServiceSpec{}
	assert.Empty(t, none.TargetHosts())
}

func TestServiceSpec_ContainerName(t *testing.T) {
	assert.Equal(t, "web", (&ServiceSpec{Name: "web"}).ContainerName())
	assert.Equal(t, "myapp-web", (&ServiceSpec{Name: "web", Project: "myapp"}).ContainerName())
}

func TestHealthCheck_Validate(t *testing.T) {
	tests := []struct {
		name    string
		hc      HealthCheck
		wantErr string
	}{
		{name: "empty is valid (no health check configured)"},
		{name: "valid port", hc: HealthCheck{Kind: HealthCheckPort, Port: 3000}},
		{name: "invalid port", hc: HealthCheck{Kind: HealthCheckPort, Port: 0}, wantErr: "invalid health check port"},
		{name: "valid command", hc: HealthCheck{Kind: HealthCheckCommand, Command: []string{"curl", "-f", "localhost"}}},
		{name: "empty command", hc: HealthCheck{Kind: HealthCheckCommand}, wantErr: "non-empty command"},
		{name: "invalid kind", hc: HealthCheck{Kind: "bogus"}, wantErr: "invalid health check kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.hc.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestHealthCheck_IsCommandBased(t *testing.T) {
	assert.False(t, (&HealthCheck{Kind: HealthCheckPort}).IsCommandBased())
	assert.True(t, (&HealthCheck{Kind: HealthCheckCommand}).IsCommandBased())
}

func TestProxySpec_ContainerName(t *testing.T) {
	assert.Equal(t, DefaultProxyContainerName, (&ProxySpec{}).ContainerName())
	assert.Equal(t, "custom-proxy", (&ProxySpec{SidecarContainer: "custom-proxy"}).ContainerName())
}

func TestProxySpec_Enabled(t *testing.T) {
	assert.False(t, (&ProxySpec{}).Enabled())
	assert.True(t, (&ProxySpec{AppPorts: []int{3000}}).Enabled())
}
