package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/archive"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
	"github.com/glorpus-work/repokit/pkg/manifest"
)

// ManifestsDir is the directory manifests are published under, relative to
// the source root.
const ManifestsDir = "manifests"

// Generator builds a pre-indexed source from a directory of YAML manifests.
// The output directory becomes the source root: it receives source.tar.gz
// holding the index, and a manifests/ tree mirroring ManifestDir that the
// index points into.
type Generator struct {
	// ManifestDir is searched recursively for *.yaml and *.yml files.
	ManifestDir string
	// OutputDir is the source root to write.
	OutputDir string
	// ForceOverwrite replaces an existing package in OutputDir.
	ForceOverwrite bool

	archives *archive.Manager
}

// GenerateResult summarizes a generated source.
type GenerateResult struct {
	Packages    int
	Versions    int
	PackagePath string
	Hash        string
}

// NewGenerator creates a new Generator with default values.
func NewGenerator(manifestDir, outputDir string) *Generator {
	return &Generator{
		ManifestDir: manifestDir,
		OutputDir:   outputDir,
		archives:    archive.NewManager(),
	}
}

// Validate checks if the generator is properly configured.
func (g *Generator) Validate() error {
	if g.ManifestDir == "" {
		return errors.Wrap(errors.ErrIndexDirectory, "manifest directory is required")
	}
	if g.OutputDir == "" {
		return errors.Wrap(errors.ErrInvalidPath, "output directory is required")
	}
	fi, err := os.Stat(g.ManifestDir)
	if err != nil {
		return errors.Wrapf(errors.ErrIndexDirectory, "manifest directory %s: %v", g.ManifestDir, err)
	}
	if !fi.IsDir() {
		return errors.Wrapf(errors.ErrIndexDirectory, "not a directory: %s", g.ManifestDir)
	}
	if !g.ForceOverwrite {
		if _, err := os.Stat(g.packagePath()); err == nil {
			return fmt.Errorf("%w: %s", errors.ErrIndexOutputExists, g.packagePath())
		}
	}
	return nil
}

// Generate indexes every manifest and writes the package and manifest tree.
func (g *Generator) Generate(ctx context.Context) (*GenerateResult, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if g.archives == nil {
		g.archives = archive.NewManager()
	}
	files, err := g.findManifests()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(errors.ErrIndexDirectory, "no manifests found in %s", g.ManifestDir)
	}

	staging, err := os.MkdirTemp("", "repokit-index-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging directory")
	}
	defer func() { _ = os.RemoveAll(staging) }()

	ix, err := Create(filepath.Join(staging, filepath.FromSlash(PackageEntry)))
	if err != nil {
		return nil, err
	}
	for _, rel := range files {
		if err := g.addManifest(ctx, ix, rel); err != nil {
			_ = ix.Close()
			return nil, err
		}
	}
	packages, versions, err := ix.Counts(ctx)
	if err != nil {
		_ = ix.Close()
		return nil, err
	}
	if err := ix.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close index")
	}

	hash, err := g.writePackage(ctx, staging)
	if err != nil {
		return nil, err
	}

	logger.Info("Generated index", logger.Fields{
		"packages": packages,
		"versions": versions,
		"output":   g.packagePath(),
	})
	return &GenerateResult{
		Packages:    packages,
		Versions:    versions,
		PackagePath: g.packagePath(),
		Hash:        hash,
	}, nil
}

func (g *Generator) packagePath() string {
	return filepath.Join(g.OutputDir, PackageFileName)
}

// findManifests returns slash-separated paths relative to ManifestDir, sorted.
func (g *Generator) findManifests() ([]string, error) {
	var files []string
	err := filepath.WalkDir(g.ManifestDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		rel, err := filepath.Rel(g.ManifestDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (g *Generator) addManifest(ctx context.Context, ix *Index, rel string) error {
	src := filepath.Join(g.ManifestDir, filepath.FromSlash(rel))
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "failed to read manifest %s", src)
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return errors.Wrapf(err, "manifest %s", src)
	}

	published := path.Join(ManifestsDir, rel)
	if err := ix.AddManifest(ctx, m, published, fsutil.HashBytes(data)); err != nil {
		return errors.Wrapf(err, "failed to index %s", src)
	}

	dst := filepath.Join(g.OutputDir, filepath.FromSlash(published))
	if err := fsutil.WriteFileAtomic(dst, data, fsutil.FileModeDefault); err != nil {
		return errors.Wrapf(err, "failed to publish manifest %s", rel)
	}
	logger.Debug("Indexed manifest", logger.Fields{"id": m.PackageIdentifier, "version": m.PackageVersion, "path": published})
	return nil
}

// writePackage archives staging into OutputDir and returns the package hash.
func (g *Generator) writePackage(ctx context.Context, staging string) (string, error) {
	tmp := filepath.Join(g.OutputDir, "."+PackageFileName+".tmp")
	defer func() { _ = os.Remove(tmp) }()

	if err := g.archives.Create(ctx, staging, tmp); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, g.packagePath()); err != nil {
		return "", errors.Wrap(err, "failed to move package into place")
	}
	return fsutil.HashFile(g.packagePath())
}
