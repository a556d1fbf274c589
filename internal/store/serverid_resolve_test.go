package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acidtib/jiji/internal/corrosion"
)

type fakeIDRunner struct {
	output string
}

func (f fakeIDRunner) Run(_ context.Context, _ string, _ []string) (string, error) {
	return f.output, nil
}

func TestResolveServerID_NoCollision(t *testing.T) {
	reader := corrosion.NewReader("/tmp/config.toml")
	reader.Runner = fakeIDRunner{output: ""}

	id, err := ResolveServerID(context.Background(), reader, "web-01")
	require.NoError(t, err)
	assert.Equal(t, "web-01", id)
}

func TestResolveServerID_CollisionPicksNextFreeSuffix(t *testing.T) {
	reader := corrosion.NewReader("/tmp/config.toml")
	reader.Runner = fakeIDRunner{output: `{"id":"web-01"}` + "\n" + `{"id":"web-01-2"}` + "\n"}

	id, err := ResolveServerID(context.Background(), reader, "web-01")
	require.NoError(t, err)
	assert.Equal(t, "web-01-3", id)
}
