// Package external holds thin clients for the third-party services the API
// delegates to: file storage, a generative language model, web search, a
// medical knowledge graph and speech synthesis.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrNotConfigured is returned by every client whose credentials are missing.
	ErrNotConfigured = errors.New("external service is not configured")
	// ErrUpstream wraps any non-2xx answer or transport failure.
	ErrUpstream = errors.New("external service failed")
)

// DefaultTimeout bounds each outbound call when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 8 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// doJSON sends body as JSON (when non-nil) and decodes a JSON answer into out
// (when non-nil). Calls are not retried.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	data, err := send(client, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}

// send executes req and returns the body of a 2xx response.
func send(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s returned %d", ErrUpstream, req.Method, req.URL.Path, resp.StatusCode)
	}
	return data, nil
}
