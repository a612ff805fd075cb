package preindexed

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/archive"
	"github.com/glorpus-work/repokit/pkg/download"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
	"github.com/glorpus-work/repokit/pkg/index"
	"github.com/glorpus-work/repokit/pkg/source"
)

// Factory creates pre-indexed sources. Each source keeps its extracted index
// under <stateDir>/sources/<identifier>/.
type Factory struct {
	// DownloadDir stages downloaded index packages. Empty means the
	// source's own data directory.
	DownloadDir string

	stateDir  string
	downloads download.Manager
	archives  *archive.Manager
}

var _ source.Factory = (*Factory)(nil)

// NewFactory returns a factory storing source data below stateDir.
func NewFactory(stateDir string, downloads download.Manager) *Factory {
	return &Factory{
		stateDir:  stateDir,
		downloads: downloads,
		archives:  archive.NewManager(),
	}
}

func (f *Factory) Type() string { return source.TypePreIndexed }

// Create opens the extracted index of a previously added source.
func (f *Factory) Create(_ context.Context, details source.Details) (source.Source, error) {
	if err := source.CheckType(source.TypePreIndexed, details); err != nil {
		return nil, err
	}
	ix, err := index.Open(f.indexPath(details))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open source %s", details.Name)
	}
	return NewSource(details, ix, f.downloads), nil
}

// Add normalizes the type, assigns an identifier when there is none and
// downloads the index.
func (f *Factory) Add(ctx context.Context, details *source.Details) (bool, error) {
	if details.Type == "" {
		details.Type = source.TypePreIndexed
	}
	if err := source.CheckType(source.TypePreIndexed, *details); err != nil {
		return false, err
	}
	if details.Identifier == "" {
		details.Identifier = uuid.NewString()
	}
	if _, err := f.Update(ctx, details); err != nil {
		return false, err
	}
	return true, nil
}

// Update downloads <arg>/source.tar.gz, verifies it and replaces the
// extracted index. Data is set to the package hash.
func (f *Factory) Update(ctx context.Context, details *source.Details) (bool, error) {
	if err := source.CheckType(source.TypePreIndexed, *details); err != nil {
		return false, err
	}
	if details.Identifier == "" {
		return false, errors.Wrapf(errors.ErrInvalidArgument, "source %s has no identifier", details.Name)
	}

	location, err := download.JoinLocation(details.Arg, index.PackageFileName)
	if err != nil {
		return false, errors.Wrapf(errors.ErrInvalidArgument, "source argument %q: %v", details.Arg, err)
	}
	dir, filename := f.dataDir(*details), index.PackageFileName
	if f.DownloadDir != "" {
		dir, filename = f.DownloadDir, details.Identifier+"-"+index.PackageFileName
	}
	pkgPath, err := f.downloads.Fetch(ctx, download.Item{
		ID:       details.Name,
		Location: location,
		Filename: filename,
	}, download.Options{Dir: dir})
	if err != nil {
		return false, errors.Wrapf(err, "failed to download index for %s", details.Name)
	}
	defer func() { _ = os.Remove(pkgPath) }()

	if err := f.archives.Test(ctx, pkgPath); err != nil {
		return false, err
	}
	hash, err := fsutil.HashFile(pkgPath)
	if err != nil {
		return false, err
	}
	if err := f.archives.ExtractFile(ctx, pkgPath, index.PackageEntry, f.indexPath(*details)); err != nil {
		return false, err
	}

	changed := details.Data != hash
	details.Data = hash
	logger.Info("Source index updated", logger.Fields{"source": details.Name, "changed": changed})
	return changed, nil
}

// Remove deletes the source's data directory.
func (f *Factory) Remove(_ context.Context, details *source.Details) (bool, error) {
	if err := source.CheckType(source.TypePreIndexed, *details); err != nil {
		return false, err
	}
	if details.Identifier == "" {
		return false, nil
	}
	if err := os.RemoveAll(f.dataDir(*details)); err != nil {
		return false, errors.Wrapf(err, "failed to remove data of %s", details.Name)
	}
	return false, nil
}

func (f *Factory) dataDir(details source.Details) string {
	return fsutil.SourceDataDir(f.stateDir, details.Identifier)
}

func (f *Factory) indexPath(details source.Details) string {
	return filepath.Join(f.dataDir(details), index.FileName)
}
