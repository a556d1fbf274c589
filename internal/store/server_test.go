package store

import (
	"context"
	"net/netip"
	"testing"

	"github.com/acidtib/jiji/internal/corrosion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, selfID string) *Store {
	t.Helper()
	client, err := corrosion.NewClient(netip.MustParseAddrPort("127.0.0.1:1"))
	require.NoError(t, err)
	reader := corrosion.NewReader("/tmp/does-not-matter/config.toml")
	return New(client, reader, selfID)
}

func TestUpsertServer_RefusesForeignID(t *testing.T) {
	s := newTestStore(t, "host-a")
	err := s.UpsertServer(context.Background(), Server{ID: "host-b"})
	assert.ErrorContains(t, err, "not owned by this host")
}

func TestInsertContainer_RefusesForeignServerID(t *testing.T) {
	s := newTestStore(t, "host-a")
	err := s.InsertContainer(context.Background(), Container{ServerID: "host-b"})
	assert.ErrorContains(t, err, "not this host")
}

func TestDeleteOfflineServerContainers_RefusesSelf(t *testing.T) {
	s := newTestStore(t, "host-a")
	err := s.DeleteOfflineServerContainers(context.Background(), "host-a")
	assert.ErrorContains(t, err, "refusing to GC")
}
