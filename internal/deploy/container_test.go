package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acidtib/jiji/internal/api"
)

func TestBuildContainerSpec(t *testing.T) {
	spec := api.ServiceSpec{
		Name:    "web",
		Project: "acme",
		Image:   "acme/web:latest",
		Command: []string{"serve"},
		Env:     map[string]string{"FOO": "bar"},
		Ports:   []string{"80:8080/tcp"},
		Volumes: []string{"data:/var/lib/data"},
		Resources: api.ContainerResources{
			CPU:    2 * api.Core,
			Memory: 512 * 1024 * 1024,
		},
	}

	config, hostConfig, netConfig, err := buildContainerSpec(spec, "net-123")
	require.NoError(t, err)

	assert.Equal(t, "acme/web:latest", config.Image)
	assert.Equal(t, []string{"serve"}, config.Cmd)
	assert.Contains(t, config.Env, "FOO=bar")
	assert.Equal(t, "web", config.Labels["jiji.service"])
	assert.Equal(t, "acme", config.Labels["jiji.project"])

	assert.Equal(t, []string{"data:/var/lib/data"}, hostConfig.Binds)
	assert.EqualValues(t, 2*api.Core, hostConfig.Resources.NanoCPUs)
	assert.EqualValues(t, 512*1024*1024, hostConfig.Resources.Memory)

	require.Contains(t, netConfig.EndpointsConfig, FabricNetworkName)
	assert.Equal(t, "net-123", netConfig.EndpointsConfig[FabricNetworkName].NetworkID)
}

func TestBuildContainerSpec_NoNetworkID(t *testing.T) {
	spec := api.ServiceSpec{Name: "web", Image: "acme/web:latest"}

	_, _, netConfig, err := buildContainerSpec(spec, "")
	require.NoError(t, err)
	assert.Empty(t, netConfig.EndpointsConfig)
}

func TestBuildContainerSpec_InvalidPortSpec(t *testing.T) {
	spec := api.ServiceSpec{Name: "web", Image: "acme/web:latest", Ports: []string{"not-a-port"}}

	_, _, _, err := buildContainerSpec(spec, "")
	assert.Error(t, err)
}
