package drivers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Prober reports whether the network is reachable enough to attempt a download
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProbe issues a HEAD request to a known endpoint with its own short timeout
type HTTPProbe struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

func (p *HTTPProbe) Probe(ctx context.Context) error {
	if p.URL == "" {
		return fmt.Errorf("no connectivity probe URL configured")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return fmt.Errorf("invalid probe URL %s: %w", p.URL, err)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connectivity probe to %s failed: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("connectivity probe to %s returned %d", p.URL, resp.StatusCode)
	}
	return nil
}
