// Package fsutil provides file system helpers shared by the source list, the
// index sources and the installed database.
package fsutil

import (
	"os"
	"path/filepath"
)

// EnsureDir creates path and its parents with DirModeDefault.
func EnsureDir(path string) error {
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of filePath.
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}
