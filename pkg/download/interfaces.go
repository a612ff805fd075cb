//go:generate mockgen -destination=mocks/manager.go -package=mocks . Manager
package download

import (
	"context"
)

// Manager fetches remote or local resources such as index packages and manifests.
type Manager interface {
	// Fetch copies item into opts.Dir, verifying its checksum when one is given,
	// and returns the absolute local path.
	Fetch(ctx context.Context, item Item, opts Options) (string, error)

	// Read returns the content at location.
	Read(ctx context.Context, location string) ([]byte, error)
}

// Item represents one resource to download.
type Item struct {
	ID       string // identifier used in logs
	Location string // http(s) URL, file:// URL or local path
	Checksum string // optional hex-encoded SHA-256 checksum; if provided, will be verified
	Filename string // optional preferred filename; if empty, a name will be derived
}

// Options control the behavior of the download manager.
type Options struct {
	Dir string // destination directory. Must be absolute.
}
