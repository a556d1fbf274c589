package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveServerID(t *testing.T) {
	tests := []struct {
		hostname string
		want     string
	}{
		{"Web-01.Example.Com", "web-01-example-com"},
		{"web_01", "web-01"},
		{"  leading-trim  ", "leading-trim"},
		{"a...b", "a-b"},
		{"UPPER", "upper"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveServerID(tt.hostname), "hostname %q", tt.hostname)
	}
}
