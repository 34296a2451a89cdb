// Package research provides the optional lookup service used by the
// external quality gate.
package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Service answers lookup queries for gate validation. Implementations must
// honor the context deadline; callers impose a hard timeout and treat any
// failure as a skipped check, never a chunk failure.
type Service interface {
	Query(ctx context.Context, topic string) (string, error)
}

// HTTPClient queries a lookup endpoint over HTTP.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClient creates a lookup client with a hard per-query timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Query issues a lookup and returns the response body. The timeout applies
// regardless of the parent context's deadline.
func (c *HTTPClient) Query(ctx context.Context, topic string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/lookup?q=%s", c.baseURL, url.QueryEscape(topic))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build lookup request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lookup query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read lookup response: %w", err)
	}
	return string(body), nil
}

var _ Service = (*HTTPClient)(nil)
