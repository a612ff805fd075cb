package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/repokit/pkg/errors"
)

func buildArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	tempDir := t.TempDir()
	sourceDir := filepath.Join(tempDir, "source")
	for path, content := range files {
		fullPath := filepath.Join(sourceDir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}

	archivePath := filepath.Join(tempDir, "out", "source.tar.gz")
	require.NoError(t, NewManager().Create(context.Background(), sourceDir, archivePath))
	return archivePath
}

func TestExtractFile(t *testing.T) {
	archivePath := buildArchive(t, map[string]string{
		"Public/index.db": "sqlite bytes",
		"README":          "hello",
	})

	tests := []struct {
		name      string
		entry     string
		want      string
		expectErr error
	}{
		{name: "nested entry", entry: "Public/index.db", want: "sqlite bytes"},
		{name: "top level entry", entry: "README", want: "hello"},
		{name: "missing entry", entry: "Public/other.db", expectErr: errors.ErrArchiveMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "nested", "extracted")
			err := NewManager().ExtractFile(context.Background(), archivePath, tt.entry, dest)
			if tt.expectErr != nil {
				require.ErrorIs(t, err, tt.expectErr)
				assert.NoFileExists(t, dest)
				return
			}
			require.NoError(t, err)
			content, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(content))
		})
	}
}

func TestTestAcceptsValidArchive(t *testing.T) {
	archivePath := buildArchive(t, map[string]string{"a/b.txt": "b", "c.txt": "c"})
	assert.NoError(t, NewManager().Test(context.Background(), archivePath))
}
