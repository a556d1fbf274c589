package dockerengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractExposedPorts(t *testing.T) {
	specs := []string{"127.0.0.1:3000:3000", "80:8080/tcp", "5432/tcp"}

	exposed, err := ExtractExposedPorts(specs)
	require.NoError(t, err)

	assert.Equal(t, []ExposedPort{{Port: 80, Protocol: "tcp"}}, exposed)
}

func TestExtractExposedPorts_NoMappings(t *testing.T) {
	exposed, err := ExtractExposedPorts([]string{"5432/tcp", "6379/tcp"})
	require.NoError(t, err)
	assert.Empty(t, exposed)
}

func TestExtractExposedPorts_InvalidSpec(t *testing.T) {
	_, err := ExtractExposedPorts([]string{"not-a-port-spec:::"})
	assert.Error(t, err)
}

func TestContainsContainerPort(t *testing.T) {
	specs := []string{"127.0.0.1:3000:3000", "5432/tcp"}

	ok, err := ContainsContainerPort(specs, 3000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ContainsContainerPort(specs, 5432)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ContainsContainerPort(specs, 9999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContainsContainerPort_InvalidSpec(t *testing.T) {
	_, err := ContainsContainerPort([]string{"not-a-port-spec:::"}, 80)
	assert.Error(t, err)
}
