// Package preindexed implements sources backed by a downloaded SQLite index
// (Microsoft.PreIndexed.Package).
package preindexed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/glorpus-work/repokit/pkg/download"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
	"github.com/glorpus-work/repokit/pkg/index"
	"github.com/glorpus-work/repokit/pkg/manifest"
	"github.com/glorpus-work/repokit/pkg/source"
)

// Source is an open pre-indexed source.
type Source struct {
	details   source.Details
	downloads download.Manager
	ref       *source.Ref

	mu    sync.Mutex
	index *index.Index
}

var _ source.Source = (*Source)(nil)

// NewSource wraps an open index. The source owns ix and closes it on Close.
func NewSource(details source.Details, ix *index.Index, downloads download.Manager) *Source {
	s := &Source{details: details, index: ix, downloads: downloads}
	s.ref = source.NewRef(s)
	return s
}

func (s *Source) Details() source.Details { return s.details }

func (s *Source) Identifier() string { return s.details.Identifier }

// Search runs the request against the index and loads the versions of every
// matched package.
func (s *Source) Search(ctx context.Context, req source.SearchRequest) (*source.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil, errors.ErrNotValidState
	}
	rows, truncated, err := s.index.Search(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "search of %s failed", s.details.Name)
	}

	result := &source.SearchResult{Truncated: truncated}
	for _, r := range rows {
		pkg, err := s.buildPackage(ctx, r.Package)
		if err != nil {
			return nil, err
		}
		result.Matches = append(result.Matches, source.Match{Package: pkg, Criteria: r.Criteria})
	}
	return result, nil
}

func (s *Source) buildPackage(ctx context.Context, row index.PackageRow) (*source.AvailablePackage, error) {
	versions, err := s.index.Versions(ctx, row.RowID)
	if err != nil {
		return nil, err
	}

	entries := make([]source.VersionEntry, 0, len(versions))
	for _, v := range versions {
		props := map[source.VersionProperty]string{
			source.VersionPropertyID:               row.ID,
			source.VersionPropertyName:             v.Name,
			source.VersionPropertyVersion:          v.Version,
			source.VersionPropertyChannel:          v.Channel,
			source.VersionPropertyPublisher:        v.Publisher,
			source.VersionPropertyMoniker:          v.Moniker,
			source.VersionPropertySourceIdentifier: s.details.Identifier,
			source.VersionPropertySourceName:       s.details.Name,
			source.VersionPropertyRelativePath:     v.RelativePath,
		}
		entries = append(entries, source.NewBasicVersion(s.ref, props, nil, s.manifestLoader(v)).Entry())
	}

	identity := source.PackageIdentity{SourceIdentifier: s.details.Identifier, PackageID: row.ID}
	return source.NewAvailablePackage(identity, source.NewVersionSet(entries...)), nil
}

// manifestLoader reads the manifest from the source root, checks it against
// the indexed hash and parses it.
func (s *Source) manifestLoader(v index.VersionRow) source.ManifestLoader {
	return func(ctx context.Context) (*manifest.Manifest, error) {
		location, err := download.JoinLocation(s.details.Arg, v.RelativePath)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid manifest path %s", v.RelativePath)
		}
		data, err := s.downloads.Read(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errors.ErrManifestNotFound, location, err)
		}
		if v.Hash != "" && !hashMatches(data, v.Hash) {
			return nil, fmt.Errorf("manifest %s: %w", location, errors.ErrFileHashMismatch)
		}
		return manifest.Parse(data)
	}
}

func hashMatches(data []byte, want string) bool {
	return fsutil.HashBytes(data) == strings.ToLower(want)
}

// Close releases the index. Versions handed out earlier can no longer reach
// the source.
func (s *Source) Close() error {
	s.ref.Invalidate()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
