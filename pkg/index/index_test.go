package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/manifest"
	"github.com/glorpus-work/repokit/pkg/source"
)

var fixtures = []manifest.Manifest{
	{
		PackageIdentifier: "Foo.Bar",
		PackageVersion:    "1.0",
		PackageName:       "Foo Bar",
		Publisher:         "Foo Inc.",
		Moniker:           "foobar",
		Tags:              []string{"utility", "cli"},
		Commands:          []string{"fb"},
		Installers:        []manifest.Installer{{ProductCode: "{FOO-BAR}"}},
	},
	{
		PackageIdentifier: "Foo.Bar",
		PackageVersion:    "2.0",
		PackageName:       "Foo Bar 2",
		Publisher:         "Foo Inc.",
		Moniker:           "foobar",
		Tags:              []string{"utility"},
	},
	{
		PackageIdentifier: "Baz.Qux",
		PackageVersion:    "0.9",
		PackageName:       "Baz Quxer",
		Publisher:         "Baz Ltd",
		Tags:              []string{"foo"},
		Installers:        []manifest.Installer{{PackageFamilyName: "Baz.Qux_abc"}},
	},
	{
		PackageIdentifier: "Other.Tool",
		PackageVersion:    "3.1",
		PackageName:       "Other Tool",
		Publisher:         "Others",
		Tags:              []string{"cli"},
	},
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Create(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	for i := range fixtures {
		m := fixtures[i]
		rel := "manifests/" + m.PackageIdentifier + "/" + m.PackageVersion + ".yaml"
		require.NoError(t, ix.AddManifest(context.Background(), &m, rel, "hash-"+m.PackageVersion))
	}
	return ix
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Package.ID
	}
	return out
}

func TestSearch(t *testing.T) {
	ix := newTestIndex(t)

	tests := []struct {
		name          string
		req           source.SearchRequest
		wantIDs       []string
		wantField     source.MatchField
		wantTruncated bool
	}{
		{
			name:      "exact id",
			req:       source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchExact, Value: "Foo.Bar"}},
			wantIDs:   []string{"Foo.Bar"},
			wantField: source.FieldID,
		},
		{
			name:    "exact is case sensitive",
			req:     source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchExact, Value: "foo.bar"}},
			wantIDs: []string{},
		},
		{
			name:      "case insensitive id",
			req:       source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchCaseInsensitive, Value: "foo.bar"}},
			wantIDs:   []string{"Foo.Bar"},
			wantField: source.FieldID,
		},
		{
			name:    "nonexistent",
			req:     source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchExact, Value: "nonexistent"}},
			wantIDs: []string{},
		},
		{
			name:      "query matches id before tag",
			req:       source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchSubstring, Value: "foo"}},
			wantIDs:   []string{"Foo.Bar", "Baz.Qux"},
			wantField: source.FieldID,
		},
		{
			name:      "moniker",
			req:       source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchExact, Value: "foobar"}},
			wantIDs:   []string{"Foo.Bar"},
			wantField: source.FieldMoniker,
		},
		{
			name:      "starts with escapes like wildcards",
			req:       source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchStartsWith, Value: "Foo_"}},
			wantIDs:   []string{},
			wantField: source.FieldID,
		},
		{
			name: "inclusion on product code",
			req: source.SearchRequest{Inclusions: []source.PackageMatchFilter{
				{Field: source.FieldProductCode, Type: source.MatchCaseInsensitive, Value: "{foo-bar}"},
			}},
			wantIDs:   []string{"Foo.Bar"},
			wantField: source.FieldProductCode,
		},
		{
			name: "filter narrows query",
			req: source.SearchRequest{
				Query:   &source.RequestMatch{Type: source.MatchExact, Value: "cli"},
				Filters: []source.PackageMatchFilter{{Field: source.FieldID, Type: source.MatchStartsWith, Value: "other"}},
			},
			wantIDs:   []string{"Other.Tool"},
			wantField: source.FieldTag,
		},
		{
			name: "filter only",
			req: source.SearchRequest{
				Filters: []source.PackageMatchFilter{{Field: source.FieldTag, Type: source.MatchExact, Value: "utility"}},
			},
			wantIDs:   []string{"Foo.Bar"},
			wantField: source.FieldTag,
		},
		{
			name:      "wildcard",
			req:       source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchWildcard, Value: "*.qux"}},
			wantIDs:   []string{"Baz.Qux"},
			wantField: source.FieldID,
		},
		{
			name:      "fuzzy",
			req:       source.SearchRequest{Query: &source.RequestMatch{Type: source.MatchFuzzy, Value: "utl"}},
			wantIDs:   []string{"Foo.Bar"},
			wantField: source.FieldTag,
		},
		{
			name: "normalized name and publisher",
			req: source.SearchRequest{Inclusions: []source.PackageMatchFilter{{
				Field: source.FieldNormalizedNameAndPublisher,
				Type:  source.MatchExact,
				Value: source.NormalizeNameAndPublisher("Baz Quxer (x64)", "Baz Ltd."),
			}}},
			wantIDs:   []string{"Baz.Qux"},
			wantField: source.FieldNormalizedNameAndPublisher,
		},
		{
			name:          "everything truncated",
			req:           source.SearchRequest{MaximumResults: 2},
			wantIDs:       []string{"Baz.Qux", "Foo.Bar"},
			wantTruncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, truncated, err := ix.Search(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, append([]string{}, ids(results)...))
			assert.Equal(t, tt.wantTruncated, truncated)
			if len(results) > 0 && tt.req.Query != nil {
				assert.Equal(t, tt.wantField, results[0].Criteria.Field)
				assert.Equal(t, tt.req.Query.Type, results[0].Criteria.Type)
			}
			if len(results) > 0 && tt.req.Query == nil && !tt.req.IsForEverything() {
				assert.Equal(t, tt.wantField, results[0].Criteria.Field)
			}
		})
	}
}

func TestLatestVersionDescribesPackage(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	p, err := ix.Package(ctx, "foo.bar")
	require.NoError(t, err)
	assert.Equal(t, "Foo.Bar", p.ID)
	assert.Equal(t, "Foo Bar 2", p.Name)
	assert.Equal(t, "2.0", p.LatestVersion)

	versions, err := ix.Versions(ctx, p.RowID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "manifests/Foo.Bar/1.0.yaml", versions[0].RelativePath)
	assert.Equal(t, "hash-2.0", versions[1].Hash)

	_, err = ix.Package(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrPackageNotFound)
}

func TestDuplicateVersionRejected(t *testing.T) {
	ix := newTestIndex(t)
	m := fixtures[0]
	assert.Error(t, ix.AddManifest(context.Background(), &m, "dup.yaml", ""))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.db"))
	assert.ErrorIs(t, err, errors.ErrSourceDataMissing)

	garbage := filepath.Join(dir, "garbage.db")
	require.NoError(t, os.WriteFile(garbage, []byte(strings.Repeat("not a database ", 128)), 0o600))
	_, err = Open(garbage)
	assert.ErrorIs(t, err, errors.ErrIndexInvalid)

	path := filepath.Join(dir, FileName)
	ix, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	_, err = Create(path)
	assert.ErrorIs(t, err, errors.ErrIndexOutputExists)

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	packages, versions, err := reopened.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, packages)
	assert.Zero(t, versions)
}
