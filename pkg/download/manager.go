package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/repokit/internal/logger"
	pkgerrors "github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
)

// ManagerImpl downloads over HTTP(S) and copies local files, with optional
// checksum verification.
type ManagerImpl struct {
	client    *http.Client
	userAgent string
}

var _ Manager = (*ManagerImpl)(nil)

// NewManager creates a new download manager with the given timeout and user agent.
func NewManager(timeout time.Duration, userAgent string) *ManagerImpl {
	return NewManagerWithClient(&http.Client{Timeout: timeout}, userAgent)
}

// NewManagerWithClient creates a download manager on top of an existing client.
func NewManagerWithClient(client *http.Client, userAgent string) *ManagerImpl {
	if userAgent == "" {
		userAgent = "repokit/1.0"
	}
	return &ManagerImpl{client: client, userAgent: userAgent}
}

// Fetch downloads a single item and returns the path to the downloaded file.
func (m *ManagerImpl) Fetch(ctx context.Context, item Item, opts Options) (string, error) {
	if opts.Dir == "" || !filepath.IsAbs(opts.Dir) {
		return "", fmt.Errorf("download dir must be absolute: %s: %w", opts.Dir, pkgerrors.ErrInvalidPath)
	}
	if item.Location == "" {
		return "", fmt.Errorf("empty location: %w", pkgerrors.ErrDownloadFailed)
	}
	if err := os.MkdirAll(opts.Dir, fsutil.DirModeSecure); err != nil {
		return "", pkgerrors.Wrap(err, "could not create download dir")
	}

	absPath := filepath.Join(opts.Dir, selectFilename(item))
	if item.Checksum != "" {
		if ok, err := verifySHA256(absPath, item.Checksum); err == nil && ok {
			logger.Debug("Reusing downloaded file", logger.Fields{"id": item.ID, "path": absPath})
			return absPath, nil
		}
	}

	body, err := m.open(ctx, item.Location)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	tmpPath, err := writeToTemp(body, absPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if item.Checksum != "" {
		ok, err := verifySHA256(tmpPath, item.Checksum)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("checksum mismatch for %s: %w", item.Location, pkgerrors.ErrFileHashMismatch)
		}
	}
	if err := finalizeFile(tmpPath, absPath); err != nil {
		return "", err
	}
	logger.Debug("Downloaded file", logger.Fields{"id": item.ID, "location": item.Location, "path": absPath})
	return absPath, nil
}

// Read returns the whole content at location.
func (m *ManagerImpl) Read(ctx context.Context, location string) ([]byte, error) {
	body, err := m.open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "could not read %s", location)
	}
	return data, nil
}

func (m *ManagerImpl) open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsRemote(location) {
		f, err := os.Open(LocalPath(location))
		if err != nil {
			return nil, fmt.Errorf("could not open %s: %w: %w", location, pkgerrors.ErrDownloadFailed, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", m.userAgent)
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download of %s failed: %w: %w", location, pkgerrors.ErrDownloadFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, pkgerrors.ErrDownloadFailed)
	}
	return resp.Body, nil
}

// IsRemote reports whether location is an http or https URL.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "http") || strings.EqualFold(u.Scheme, "https")
}

// LocalPath turns a file:// URL into a path and returns anything else unchanged.
func LocalPath(location string) string {
	if u, err := url.Parse(location); err == nil && strings.EqualFold(u.Scheme, "file") {
		return filepath.FromSlash(u.Path)
	}
	return location
}

// JoinLocation appends a slash-separated relative path to a URL or local path.
func JoinLocation(base, rel string) (string, error) {
	if IsRemote(base) {
		return url.JoinPath(base, rel)
	}
	return filepath.Join(LocalPath(base), filepath.FromSlash(rel)), nil
}

func selectFilename(item Item) string {
	if item.Filename != "" {
		return item.Filename
	}
	if item.Checksum != "" {
		return item.Checksum
	}
	h := sha256.Sum256([]byte(item.Location))
	return hex.EncodeToString(h[:])
}

func writeToTemp(body io.Reader, absPath string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(absPath), "dl-*.tmp")
	if err != nil {
		return "", pkgerrors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()

	fail := func(err error, msg string) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", pkgerrors.Wrap(err, msg)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		return fail(err, "could not write file")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "could not sync file")
	}
	if err := tmp.Close(); err != nil {
		return fail(err, "could not close file")
	}
	return tmpPath, nil
}

func finalizeFile(tmpPath, absPath string) error {
	if err := fsutil.Move(tmpPath, absPath); err != nil {
		return pkgerrors.Wrap(err, "could not finalize file")
	}
	if err := os.Chmod(absPath, fsutil.FileModeSecure); err != nil {
		return pkgerrors.Wrap(err, "could not set permissions")
	}
	return nil
}

func verifySHA256(path string, wantHex string) (bool, error) {
	got, err := fsutil.HashFile(path)
	if err != nil {
		return false, pkgerrors.Wrap(err, "hashing")
	}
	return got == strings.ToLower(strings.TrimSpace(wantHex)), nil
}
