package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"beacon/pkg/circuitbreaker"
)

// HostCallback tells the sender's server that a message arrived by issuing
// GET <host>?id=<message id>.
type HostCallback struct {
	client  *http.Client
	breaker *circuitbreaker.Wrapper
}

func NewHostCallback(timeout time.Duration, breaker *circuitbreaker.Wrapper) *HostCallback {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HostCallback{client: &http.Client{Timeout: timeout}, breaker: breaker}
}

func (c *HostCallback) Notify(ctx context.Context, host, id string) error {
	u, err := url.Parse(host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid callback host %q", host)
	}
	q := u.Query()
	q.Set("id", id)
	u.RawQuery = q.Encode()

	_, err = circuitbreaker.Do(ctx, c.breaker, func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return 0, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode >= 500 {
			return resp.StatusCode, fmt.Errorf("callback returned status %d", resp.StatusCode)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return fmt.Errorf("host callback failed: %w", err)
	}
	return nil
}
