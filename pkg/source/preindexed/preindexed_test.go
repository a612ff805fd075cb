package preindexed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/repokit/pkg/download"
	"github.com/glorpus-work/repokit/pkg/download/mocks"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
	"github.com/glorpus-work/repokit/pkg/index"
	"github.com/glorpus-work/repokit/pkg/manifest"
	"github.com/glorpus-work/repokit/pkg/source"
)

type site struct {
	dir  string
	hash string
	srv  *httptest.Server
}

// newSite generates an index from manifests and serves it over TLS.
func newSite(t *testing.T, manifests ...manifest.Manifest) *site {
	t.Helper()
	manifestDir := t.TempDir()
	for i := range manifests {
		data, err := manifests[i].Marshal()
		require.NoError(t, err)
		path := filepath.Join(manifestDir, manifests[i].PackageIdentifier, manifests[i].PackageVersion+".yaml")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	dir := t.TempDir()
	res, err := index.NewGenerator(manifestDir, dir).Generate(context.Background())
	require.NoError(t, err)

	srv := httptest.NewTLSServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(srv.Close)
	return &site{dir: dir, hash: res.Hash, srv: srv}
}

func newFactory(t *testing.T, s *site) (*Factory, string) {
	t.Helper()
	stateDir := t.TempDir()
	return NewFactory(stateDir, download.NewManagerWithClient(s.srv.Client(), "")), stateDir
}

var fooBar = manifest.Manifest{
	PackageIdentifier: "Foo.Bar",
	PackageVersion:    "1.0",
	PackageName:       "Foo Bar",
	Publisher:         "Foo",
}

func TestEndToEnd(t *testing.T) {
	s := newSite(t, fooBar)
	f, _ := newFactory(t, s)
	ctx := context.Background()

	details := source.Details{Name: "test", Type: "", Arg: s.srv.URL}
	changed, err := f.Add(ctx, &details)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, source.TypePreIndexed, details.Type)
	assert.NotEmpty(t, details.Identifier)
	assert.Equal(t, s.hash, details.Data)

	src, err := f.Create(ctx, details)
	require.NoError(t, err)
	defer src.Close()

	result, err := src.Search(ctx, source.SearchRequest{
		Query: &source.RequestMatch{Type: source.MatchExact, Value: "Foo.Bar"},
	})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, source.FieldID, result.Matches[0].Criteria.Field)
	assert.Equal(t, source.MatchExact, result.Matches[0].Criteria.Type)

	pkg := result.Matches[0].Package
	assert.Equal(t, source.PackageIdentity{SourceIdentifier: details.Identifier, PackageID: "Foo.Bar"}, pkg.Identity())
	assert.Nil(t, pkg.InstalledVersion())

	latest := pkg.LatestAvailableVersion()
	require.NotNil(t, latest)
	assert.Equal(t, "test", latest.Property(source.VersionPropertySourceName))
	m, err := latest.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Foo.Bar", m.PackageIdentifier)

	none, err := src.Search(ctx, source.SearchRequest{
		Query: &source.RequestMatch{Type: source.MatchExact, Value: "nonexistent"},
	})
	require.NoError(t, err)
	assert.Empty(t, none.Matches)
}

func TestVersionOrderingAndLookup(t *testing.T) {
	s := newSite(t,
		manifest.Manifest{PackageIdentifier: "Multi.Pkg", PackageVersion: "1.0", Channel: "stable", PackageName: "Multi"},
		manifest.Manifest{PackageIdentifier: "Multi.Pkg", PackageVersion: "2.0", Channel: "beta", PackageName: "Multi"},
		manifest.Manifest{PackageIdentifier: "Multi.Pkg", PackageVersion: "1.5", Channel: "stable", PackageName: "Multi"},
	)
	f, _ := newFactory(t, s)
	ctx := context.Background()

	details := source.Details{Name: "multi", Arg: s.srv.URL}
	_, err := f.Add(ctx, &details)
	require.NoError(t, err)
	src, err := f.Create(ctx, details)
	require.NoError(t, err)
	defer src.Close()

	result, err := src.Search(ctx, source.SearchRequest{
		Query: &source.RequestMatch{Type: source.MatchExact, Value: "Multi.Pkg"},
	})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	pkg := result.Matches[0].Package

	keys := pkg.AvailableVersionKeys()
	require.Len(t, keys, 3)
	assert.Equal(t, []string{"2.0", "1.5", "1.0"}, []string{keys[0].Version, keys[1].Version, keys[2].Version})

	latest := pkg.LatestAvailableVersion()
	assert.Equal(t, "2.0", latest.Property(source.VersionPropertyVersion))
	assert.Same(t, latest, pkg.AvailableVersion(source.PackageVersionKey{}))
	assert.Nil(t, pkg.AvailableVersion(source.PackageVersionKey{Version: "bogus", Channel: "bogus"}))
	assert.Equal(t, "1.5", pkg.AvailableVersion(source.PackageVersionKey{Channel: "stable"}).Property(source.VersionPropertyVersion))
}

func TestUpdateAndRemove(t *testing.T) {
	s := newSite(t, fooBar)
	f, stateDir := newFactory(t, s)
	ctx := context.Background()

	details := source.Details{Name: "test", Arg: s.srv.URL}
	_, err := f.Add(ctx, &details)
	require.NoError(t, err)

	changed, err := f.Update(ctx, &details)
	require.NoError(t, err)
	assert.False(t, changed, "an unchanged package needs no persistence")

	dataDir := fsutil.SourceDataDir(stateDir, details.Identifier)
	assert.FileExists(t, filepath.Join(dataDir, index.FileName))
	assert.NoFileExists(t, filepath.Join(dataDir, index.PackageFileName))

	_, err = f.Remove(ctx, &details)
	require.NoError(t, err)
	assert.NoDirExists(t, dataDir)

	_, err = f.Create(ctx, details)
	assert.ErrorIs(t, err, errors.ErrSourceDataMissing)
}

func TestDownloadDirStaging(t *testing.T) {
	s := newSite(t, fooBar)
	f, stateDir := newFactory(t, s)
	f.DownloadDir = filepath.Join(t.TempDir(), "downloads")
	ctx := context.Background()

	details := source.Details{Name: "test", Arg: s.srv.URL}
	_, err := f.Add(ctx, &details)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(fsutil.SourceDataDir(stateDir, details.Identifier), index.FileName))
	entries, err := os.ReadDir(f.DownloadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged packages are removed after extraction")
}

func TestCloseInvalidatesVersions(t *testing.T) {
	s := newSite(t, fooBar)
	f, _ := newFactory(t, s)
	ctx := context.Background()

	details := source.Details{Name: "test", Arg: s.srv.URL}
	_, err := f.Add(ctx, &details)
	require.NoError(t, err)
	src, err := f.Create(ctx, details)
	require.NoError(t, err)

	result, err := src.Search(ctx, source.SearchRequest{})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	version := result.Matches[0].Package.LatestAvailableVersion()

	got, err := version.Source()
	require.NoError(t, err)
	assert.Equal(t, details.Identifier, got.Identifier())

	require.NoError(t, src.Close())
	_, err = version.Source()
	assert.ErrorIs(t, err, errors.ErrNotValidState)
	_, err = version.Manifest(ctx)
	assert.ErrorIs(t, err, errors.ErrNotValidState)
	_, err = src.Search(ctx, source.SearchRequest{})
	assert.ErrorIs(t, err, errors.ErrNotValidState)
}

func TestTamperedManifestRejected(t *testing.T) {
	s := newSite(t, fooBar)
	f, _ := newFactory(t, s)
	ctx := context.Background()

	details := source.Details{Name: "test", Arg: s.srv.URL}
	_, err := f.Add(ctx, &details)
	require.NoError(t, err)
	src, err := f.Create(ctx, details)
	require.NoError(t, err)
	defer src.Close()

	published := filepath.Join(s.dir, index.ManifestsDir, "Foo.Bar", "1.0.yaml")
	require.NoError(t, os.WriteFile(published, []byte("PackageIdentifier: Evil\nPackageVersion: \"1.0\"\n"), 0o644))

	result, err := src.Search(ctx, source.SearchRequest{})
	require.NoError(t, err)
	_, err = result.Matches[0].Package.LatestAvailableVersion().Manifest(ctx)
	assert.ErrorIs(t, err, errors.ErrFileHashMismatch)
}

func TestTypeMismatch(t *testing.T) {
	f := NewFactory(t.TempDir(), download.NewManager(0, ""))
	ctx := context.Background()

	_, err := f.Create(ctx, source.Details{Name: "x", Type: source.TypeRest})
	assert.ErrorIs(t, err, errors.ErrInvalidSourceType)

	details := source.Details{Name: "x", Type: source.TypeRest}
	_, err = f.Add(ctx, &details)
	assert.ErrorIs(t, err, errors.ErrInvalidSourceType)
}

func TestAddDownloadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	downloads := mocks.NewMockManager(ctrl)
	downloads.EXPECT().
		Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.ErrDownloadFailed)

	f := NewFactory(t.TempDir(), downloads)
	details := source.Details{Name: "test", Arg: "https://example.com"}
	changed, err := f.Add(context.Background(), &details)
	assert.ErrorIs(t, err, errors.ErrDownloadFailed)
	assert.False(t, changed)
	assert.Equal(t, source.TypePreIndexed, details.Type)
	assert.Empty(t, details.Data)
}
