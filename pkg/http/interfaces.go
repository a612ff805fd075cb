package http

import "context"

// Doer issues JSON and raw requests against a remote endpoint.
type Doer interface {
	// GetJSON performs a GET and decodes the JSON response into out.
	GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error

	// PostJSON encodes in as the request body and decodes the JSON response into out.
	PostJSON(ctx context.Context, rawURL string, headers map[string]string, in, out any) error

	// Get performs a GET and returns the raw response body.
	Get(ctx context.Context, rawURL string) ([]byte, error)
}
