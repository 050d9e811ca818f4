// Package predict provides HTTP clients for the external model services the
// backends consume: the span-matching model, the biomedical entity linker,
// the mention extractor, and the term-similarity mapper. The clients are
// plain JSON-over-HTTP plumbing; inference itself lives behind the services.
//
// Each client makes exactly one attempt per call. Retry machinery is
// deliberately absent: a backend gets one shot per request and the
// aggregator degrades gracefully on failure.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/semtag/backend"
)

// maxResponseSize limits a model service response body.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

const defaultTimeout = 60 * time.Second

// Client is the shared transport for the model service clients.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = timeout
	}
}

func newClient(baseURL string, opts ...Option) Client {
	c := Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// post sends a JSON request and decodes the JSON response into out.
// Non-2xx statuses become *backend.StatusError so the backends can classify
// service unavailability apart from transport failures.
func (c Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &backend.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
