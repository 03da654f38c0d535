// Package fetch retrieves listing pages and candidate documents over HTTP.
// Every request is bounded by a timeout; transport errors and non-2xx
// statuses surface as ordinary errors for the caller to soft-fail on.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultUserAgent identifies the collector to source servers.
const DefaultUserAgent = "editalwatch-collector/1.0 (+contato@editalwatch.org)"

// Client wraps two HTTP clients sharing a user agent: a download client
// and a shorter-lived one for HEAD probes.
type Client struct {
	userAgent string
	http      *http.Client
	probe     *http.Client
}

// New constructs a Client. timeout bounds page and document downloads,
// probeTimeout bounds content-type probes. An empty userAgent falls back
// to DefaultUserAgent.
func New(timeout, probeTimeout time.Duration, userAgent string) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
		probe:     &http.Client{Timeout: probeTimeout},
	}
}

// Get downloads url and returns the response body. Any transport error or
// non-2xx status is an error.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	return body, nil
}

// ContentType issues a HEAD request, following redirects, and returns the
// lowercased Content-Type header. Used to promote keyword candidates to
// PDF candidates without downloading them.
func (c *Client) ContentType(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.probe.Do(req)
	if err != nil {
		return "", fmt.Errorf("http HEAD %s: %w", url, err)
	}
	resp.Body.Close()

	return strings.ToLower(resp.Header.Get("Content-Type")), nil
}
