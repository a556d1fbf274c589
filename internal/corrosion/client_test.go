package corrosion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ExecContext_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transactions", r.URL.Path)

		var statements []Statement
		require.NoError(t, json.NewDecoder(r.Body).Decode(&statements))
		require.Len(t, statements, 1)
		assert.Equal(t, "UPDATE server SET last_seen = ? WHERE id = ?", statements[0].Query)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ExecResponse{
			Results: []ExecResult{{RowsAffected: 1}},
			Time:    0.001,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	result, err := c.ExecContext(context.Background(), "UPDATE server SET last_seen = ? WHERE id = ?", 12345, "host-a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.RowsAffected)
}

func TestClient_ExecContext_StatementError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := "UNIQUE constraint failed"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ExecResponse{
			Results: []ExecResult{{Error: &msg}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ExecContext(context.Background(), "INSERT INTO server (id) VALUES (?)", "host-a")
	assert.ErrorContains(t, err, "UNIQUE constraint failed")
}

func TestClient_ExecContext_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ExecResponse{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ExecContext(context.Background(), "SELECT 1")
	assert.Error(t, err)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(netip.MustParseAddrPort("127.0.0.1:1"))
	require.NoError(t, err)
	c.baseURL.Host = srv.Listener.Addr().String()
	c.http = srv.Client()
	return c
}
