// Package http is a small JSON-over-HTTP client shared by the remote sources.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/errors"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "repokit/1.0"

// maxErrorBody bounds how much of a failed response is kept in HTTPError.
const maxErrorBody = 4096

// HTTPError is returned for any response outside the 2xx range.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client is the default Doer.
type Client struct {
	client    *http.Client
	userAgent string
	auth      Authenticator
}

var _ Doer = (*Client)(nil)

// NewClient creates a client with the given timeout and user agent.
func NewClient(timeout time.Duration, userAgent string) *Client {
	return NewClientWith(&http.Client{Timeout: timeout}, userAgent)
}

// NewClientWith wraps an existing http.Client.
func NewClientWith(client *http.Client, userAgent string) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{client: client, userAgent: userAgent}
}

// WithAuthenticator makes every request carry a's credentials.
func (c *Client) WithAuthenticator(a Authenticator) *Client {
	c.auth = a
	return c
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	return c.doJSON(ctx, http.MethodGet, rawURL, headers, nil, out)
}

// PostJSON encodes in as the body of a POST and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "failed to encode request body")
	}
	return c.doJSON(ctx, http.MethodPost, rawURL, headers, body, out)
}

// Get performs a GET and returns the raw body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, headers map[string]string, body []byte, out any) error {
	h := map[string]string{"Accept": "application/json"}
	if body != nil {
		h["Content-Type"] = "application/json"
	}
	for k, v := range headers {
		h[k] = v
	}

	resp, err := c.do(ctx, method, rawURL, h, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", rawURL)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers map[string]string, body []byte) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.auth != nil {
		if err := c.auth.Apply(req); err != nil {
			return nil, errors.Wrap(err, "failed to authenticate request")
		}
	}

	logger.Debug("Sending request", logger.Fields{"method": method, "url": rawURL})
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", method, rawURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{Method: method, URL: rawURL, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	return resp, nil
}
