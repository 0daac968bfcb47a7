// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// Client wraps http.Client for outbound collaborator calls. The timeout is
// a hard per-request ceiling; callers layer their own retry policy on top.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req.WithContext(ctx))
}
