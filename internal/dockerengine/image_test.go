package dockerengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandImageRef(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{name: "bare name gets docker.io/library and latest", ref: "redis", want: "docker.io/library/redis:latest"},
		{name: "namespaced name gets docker.io only", ref: "myorg/web", want: "docker.io/myorg/web:latest"},
		{name: "explicit tag kept", ref: "myorg/web:v2", want: "docker.io/myorg/web:v2"},
		{name: "explicit registry host kept", ref: "registry.example.com/myorg/web:v2", want: "registry.example.com/myorg/web:v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandImageRef(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandImageRef_Invalid(t *testing.T) {
	_, err := ExpandImageRef("Invalid_Upper:Case:Ref")
	assert.Error(t, err)
}
