package sshexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPool_DefaultSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
	}{
		{name: "zero uses default", size: 0},
		{name: "negative uses default", size: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool("root", 22, "", tt.size)
			assert.True(t, p.sem.TryAcquire(DefaultPoolSize))
			assert.False(t, p.sem.TryAcquire(1))
		})
	}
}

func TestNewPool_CustomSize(t *testing.T) {
	p := NewPool("root", 22, "", 2)
	assert.True(t, p.sem.TryAcquire(2))
	assert.False(t, p.sem.TryAcquire(1))
}

func TestPool_Close_NoConnections(t *testing.T) {
	p := NewPool("root", 22, "", 1)
	assert.NoError(t, p.Close())
}
