package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
)

func TestNewManager(t *testing.T) {
	tests := []struct {
		name       string
		timeout    time.Duration
		userAgent  string
		expectedUA string
	}{
		{
			name:       "default user agent",
			timeout:    time.Second,
			expectedUA: "repokit/1.0",
		},
		{
			name:       "custom user agent",
			timeout:    2 * time.Second,
			userAgent:  "test-agent/1.0",
			expectedUA: "test-agent/1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.timeout, tt.userAgent)
			require.NotNil(t, m)
			assert.Equal(t, tt.timeout, m.client.Timeout)
			assert.Equal(t, tt.expectedUA, m.userAgent)
		})
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("test content"))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	goodSum := fsutil.HashBytes([]byte("test content"))

	tests := []struct {
		name      string
		item      Item
		expectErr error
		expectMsg string
	}{
		{
			name: "successful download",
			item: Item{ID: "ok", Location: server.URL + "/ok"},
		},
		{
			name: "valid checksum",
			item: Item{ID: "ok", Location: server.URL + "/ok", Checksum: goodSum},
		},
		{
			name:      "invalid checksum",
			item:      Item{ID: "ok", Location: server.URL + "/ok", Checksum: "deadbeef"},
			expectErr: pkgerrors.ErrFileHashMismatch,
		},
		{
			name:      "not found",
			item:      Item{ID: "missing", Location: server.URL + "/missing"},
			expectErr: pkgerrors.ErrDownloadFailed,
			expectMsg: "unexpected status code: 404",
		},
		{
			name:      "server error",
			item:      Item{ID: "broken", Location: server.URL + "/broken"},
			expectErr: pkgerrors.ErrDownloadFailed,
			expectMsg: "unexpected status code: 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			m := NewManager(time.Second, "test")

			path, err := m.Fetch(context.Background(), tt.item, Options{Dir: dir})
			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
				if tt.expectMsg != "" {
					assert.Contains(t, err.Error(), tt.expectMsg)
				}
				entries, _ := os.ReadDir(dir)
				assert.Empty(t, entries, "temporary files must not be left behind")
				return
			}

			require.NoError(t, err)
			content, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "test content", string(content))
		})
	}
}

func TestFetchLocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "source.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte("local"), 0o600))

	m := NewManager(time.Second, "")
	for _, location := range []string{src, "file://" + filepath.ToSlash(src)} {
		path, err := m.Fetch(context.Background(), Item{Location: location, Filename: "copy"}, Options{Dir: t.TempDir()})
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "local", string(data))
	}
}

func TestFetchRejectsRelativeDir(t *testing.T) {
	m := NewManager(time.Second, "")
	_, err := m.Fetch(context.Background(), Item{Location: "/tmp/x"}, Options{Dir: "relative"})
	require.ErrorIs(t, err, pkgerrors.ErrInvalidPath)
}

func TestRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("remote"))
	}))
	defer server.Close()

	m := NewManager(time.Second, "")
	data, err := m.Read(context.Background(), server.URL+"/manifest.yaml")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(data))

	_, err = m.Read(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, pkgerrors.ErrDownloadFailed)
}

func TestJoinLocation(t *testing.T) {
	tests := []struct {
		base string
		rel  string
		want string
	}{
		{"https://example.com/cache", "source.tar.gz", "https://example.com/cache/source.tar.gz"},
		{"https://example.com/cache/", "manifests/f/Foo.Bar/1.0.yaml", "https://example.com/cache/manifests/f/Foo.Bar/1.0.yaml"},
		{"/srv/index", "manifests/a.yaml", filepath.Join("/srv/index", "manifests", "a.yaml")},
		{"file:///srv/index", "source.tar.gz", filepath.Join("/srv/index", "source.tar.gz")},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := JoinLocation(tt.base, tt.rel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com"))
	assert.True(t, IsRemote("HTTP://example.com"))
	assert.False(t, IsRemote("/srv/index"))
	assert.False(t, IsRemote("file:///srv/index"))
}
