// Package archive creates and reads the compressed packages index sources are shipped in.
package archive

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mholt/archives"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
)

// Manager handles archive extraction and creation operations.
type Manager struct{}

// NewManager creates a new Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// ExtractFile extracts a single file from an archive to destPath. The
// destination is replaced atomically.
func (am *Manager) ExtractFile(ctx context.Context, archivePath, filePath, destPath string) error {
	fsys, closeFS, err := open(ctx, archivePath)
	if err != nil {
		return err
	}
	defer closeFS()

	srcFile, err := fsys.Open(filePath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s in %s: %w", filePath, archivePath, errors.ErrArchiveMissing)
		}
		return fmt.Errorf("failed to open %s in archive: %w", filePath, err)
	}
	defer func() { _ = srcFile.Close() }()

	if err := fsutil.EnsureFileDir(destPath); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(tmp, srcFile); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", filePath, destPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, fsutil.FileModeSecure); err != nil {
		return fmt.Errorf("failed to set permissions for %s: %w", destPath, err)
	}
	return os.Rename(tmpPath, destPath)
}

// Test reads every entry of the archive and fails if any of them is corrupt.
func (am *Manager) Test(ctx context.Context, archivePath string) error {
	fsys, closeFS, err := open(ctx, archivePath)
	if err != nil {
		return err
	}
	defer closeFS()

	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("corrupt archive %s: %w", archivePath, err)
		}
		if d.IsDir() {
			return nil
		}
		f, err := fsys.Open(path)
		if err != nil {
			return fmt.Errorf("corrupt archive entry %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(io.Discard, f); err != nil {
			return fmt.Errorf("corrupt archive entry %s: %w", path, err)
		}
		return nil
	})
}

// Create writes a tar.gz of the contents of sourceDir to archivePath.
func (am *Manager) Create(ctx context.Context, sourceDir, archivePath string) error {
	absolutePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for source directory: %w", err)
	}

	archiveFiles, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absolutePath + string(os.PathSeparator): "",
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	if err := fsutil.EnsureFileDir(archivePath); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	if err := format.Archive(ctx, file, archiveFiles); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

func open(ctx context.Context, archivePath string) (fs.FS, func(), error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	closeFS := func() {
		if closer, ok := fsys.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return fsys, closeFS, nil
}
