// Package username resolves commit author logins to chat usernames through
// the directory HTTP API.
package username

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"build-notifier/internal/domain/ports/adapter"
)

var _ adapter.UsernameResolver = (*Client)(nil)

type Client struct {
	url  string
	http *http.Client
}

func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// Resolve posts {"username": login} and returns the response body as the
// username. An empty body means the login is unknown.
func (c *Client) Resolve(ctx context.Context, login string) (string, error) {
	body, err := json.Marshal(map[string]string{"username": login})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build username request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("username request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("username api status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read username response: %w", err)
	}
	return strings.Trim(strings.TrimSpace(string(raw)), `"`), nil
}
