// Package ipfs fetches documents from a content-addressed gateway,
// used to pull policy text for indexing.
package ipfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultGateway serves public IPFS content over HTTP.
const DefaultGateway = "https://ipfs.io/ipfs/"

// Client fetches content by CID through an HTTP gateway.
type Client struct {
	gateway    string
	httpClient *http.Client
}

// NewClient creates a gateway client. An empty gateway uses
// DefaultGateway.
func NewClient(gateway string) *Client {
	if gateway == "" {
		gateway = DefaultGateway
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &Client{
		gateway:    gateway,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Fetch returns the content stored at the given CID.
func (c *Client) Fetch(ctx context.Context, cid string) (string, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return "", fmt.Errorf("ipfs: cid is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gateway+cid, nil)
	if err != nil {
		return "", fmt.Errorf("ipfs: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs: fetch %s: %w", cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipfs: fetch %s: gateway returned status %d", cid, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ipfs: read %s: %w", cid, err)
	}
	return string(body), nil
}
