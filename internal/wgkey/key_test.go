package wgkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_GeneratesDistinctKeys(t *testing.T) {
	k1, err := New()
	require.NoError(t, err)
	k2, err := New()
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.False(t, k1.IsZero())
}

func TestKey_Public_IsDeterministic(t *testing.T) {
	k, err := New()
	require.NoError(t, err)

	pub1 := k.Public()
	pub2 := k.Public()
	assert.Equal(t, pub1, pub2)
	assert.NotEqual(t, k, pub1)
}

func TestKey_StringAndParse_RoundTrip(t *testing.T) {
	k, err := New()
	require.NoError(t, err)

	parsed, err := Parse(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestParse_InvalidLength(t *testing.T) {
	_, err := Parse("dG9vc2hvcnQ=")
	assert.Error(t, err)
}
