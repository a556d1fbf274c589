// Package corrosion is the client for the replicated SQL store (Corrosion):
// an HTTP transaction client for writes and a CLI-based reader for queries.
// The split is deliberate (§9 Open Questions): only HTTP writes propagate
// through the gossip layer and trigger downstream subscriptions, so every
// mutation in this codebase goes through ExecContext/ExecMultiContext and
// every read goes through the CLI query functions in cli.go.
package corrosion

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/crypto/ssh"
	"golang.org/x/net/http2"
)

const (
	// http2ConnectTimeout bounds how long the client waits to establish
	// the loopback connection to the store's HTTP API.
	http2ConnectTimeout = 3 * time.Second
	// http2MaxRetryTime bounds the cumulative time spent retrying a single
	// transaction request on transient network errors.
	http2MaxRetryTime = 10 * time.Second
)

// Client writes transactions to the Corrosion HTTP API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient creates a Client talking to the store's loopback HTTP API
// (§8: store HTTP 8080 loopback). Requests retry on network errors with an
// exponential backoff capped at http2MaxRetryTime.
func NewClient(addr netip.AddrPort, opts ...ClientOption) (*Client, error) {
	baseURL, err := url.Parse(fmt.Sprintf("http://%s", addr))
	if err != nil {
		return nil, fmt.Errorf("invalid corrosion API address: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: &retryRoundTripper{
				base: &http2.Transport{
					AllowHTTP: true,
					DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
						dialer := &net.Dialer{Timeout: http2ConnectTimeout}
						return dialer.DialContext(ctx, network, addr)
					},
				},
				newBackoff: func() backoff.BackOff {
					return backoff.NewExponentialBackOff(
						backoff.WithInitialInterval(100*time.Millisecond),
						backoff.WithMaxInterval(1*time.Second),
						backoff.WithMaxElapsedTime(http2MaxRetryTime),
					)
				},
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewTunneledClient creates a Client that reaches a remote host's
// loopback-only transaction API by tunneling through an already-dialed
// SSH connection, the same trick dockerengine.NewClient uses for the
// container engine socket. The deployment engine uses this to write
// container/service rows on a target host it never has a direct route to.
func NewTunneledClient(sshClient *ssh.Client, addr netip.AddrPort, opts ...ClientOption) (*Client, error) {
	baseURL, err := url.Parse(fmt.Sprintf("http://%s", addr))
	if err != nil {
		return nil, fmt.Errorf("invalid corrosion API address: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport: &retryRoundTripper{
				base: &http2.Transport{
					AllowHTTP: true,
					DialTLSContext: func(_ context.Context, _, addr string, _ *tls.Config) (net.Conn, error) {
						return sshClient.Dial("tcp", addr)
					},
				},
				newBackoff: func() backoff.BackOff {
					return backoff.NewExponentialBackOff(
						backoff.WithInitialInterval(100*time.Millisecond),
						backoff.WithMaxInterval(1*time.Second),
						backoff.WithMaxElapsedTime(http2MaxRetryTime),
					)
				},
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithHTTPClient overrides the retrying HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

type retryRoundTripper struct {
	base       http.RoundTripper
	newBackoff func() backoff.BackOff
}

func (rt *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	attempt := func() (*http.Response, error) {
		resp, err := rt.base.RoundTrip(req)
		if err != nil {
			var opErr *net.OpError
			if errors.As(err, &opErr) {
				slog.Debug("Retrying store transaction request after network error.", "err", err)
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}
	boff := backoff.WithContext(rt.newBackoff(), req.Context())
	return backoff.RetryWithData(attempt, boff)
}

// Statement is one SQL statement with positional parameters, sent to the
// store's /v1/transactions endpoint.
type Statement struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

// ExecResponse is the store's response to a batch of statements.
type ExecResponse struct {
	Results []ExecResult `json:"results"`
	Time    float64      `json:"time"`
	Version *uint        `json:"version"`
}

// ExecResult is the per-statement result within an ExecResponse.
type ExecResult struct {
	RowsAffected uint    `json:"rows_affected"`
	Time         float64 `json:"time"`
	Error        *string `json:"error"`
}

// ExecContext executes a single write statement and returns its result.
// Corrosion gossips the change to every peer once the local write commits.
func (c *Client) ExecContext(ctx context.Context, query string, args ...any) (*ExecResult, error) {
	resp, err := c.ExecMultiContext(ctx, Statement{Query: query, Params: args})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("no results in transaction response: %+v", resp)
	}
	return &resp.Results[0], nil
}

// ExecMultiContext executes one or more write statements as a single
// transaction.
func (c *Client) ExecMultiContext(ctx context.Context, statements ...Statement) (*ExecResponse, error) {
	body, err := json.Marshal(statements)
	if err != nil {
		return nil, fmt.Errorf("marshal statements: %w", err)
	}

	txURL := c.baseURL.JoinPath("/v1/transactions").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, txURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create transaction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send transaction request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var execResp ExecResponse
	switch resp.StatusCode {
	case http.StatusOK:
		if err = json.NewDecoder(resp.Body).Decode(&execResp); err != nil {
			return nil, fmt.Errorf("decode transaction response: %w", err)
		}
		var errs []error
		for _, result := range execResp.Results {
			if result.Error != nil {
				errs = append(errs, errors.New(*result.Error))
			}
		}
		return &execResp, errors.Join(errs...)
	case http.StatusInternalServerError:
		respBody, rErr := io.ReadAll(resp.Body)
		if rErr != nil {
			return nil, fmt.Errorf("read error response body: %w", rErr)
		}
		if err = json.Unmarshal(respBody, &execResp); err == nil &&
			len(execResp.Results) > 0 && execResp.Results[0].Error != nil {
			return nil, errors.New(*execResp.Results[0].Error)
		}
		return nil, fmt.Errorf("internal server error: %s", respBody)
	default:
		respBody, rErr := io.ReadAll(resp.Body)
		if rErr != nil {
			return nil, fmt.Errorf("read response body: %w", rErr)
		}
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, respBody)
	}
}
