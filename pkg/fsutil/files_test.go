package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sources.yaml")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), FileModeSecure))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), FileModeSecure))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileModeSecure), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestHashFileMatchesHashBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	content := []byte("index contents")
	require.NoError(t, os.WriteFile(path, content, FileModeDefault))

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(content), got)
	assert.Len(t, got, 64)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.txt")
	dst := filepath.Join(dir, "sub", "destination.txt")
	require.NoError(t, os.WriteFile(src, []byte("Hello"), FileModeDefault))

	require.NoError(t, Move(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(data))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestMoveRejectsEmptyPaths(t *testing.T) {
	assert.Error(t, Move("", "x"))
	assert.Error(t, Move("x", ""))
}

func TestSourceDataDir(t *testing.T) {
	assert.Equal(t, filepath.Join("state", "sources", "abc"), SourceDataDir("state", "abc"))
}
