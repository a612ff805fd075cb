package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchValue(t *testing.T) {
	tests := []struct {
		name      string
		matchType MatchType
		candidate string
		value     string
		want      bool
	}{
		{"exact hit", MatchExact, "Foo.Bar", "Foo.Bar", true},
		{"exact is case sensitive", MatchExact, "Foo.Bar", "foo.bar", false},
		{"case insensitive", MatchCaseInsensitive, "Foo.Bar", "foo.bar", true},
		{"starts with", MatchStartsWith, "Foo.Bar", "foo.", true},
		{"starts with miss", MatchStartsWith, "Foo.Bar", "bar", false},
		{"substring", MatchSubstring, "Foo.Bar", "O.B", true},
		{"wildcard", MatchWildcard, "Foo.Bar", "foo.*", true},
		{"wildcard miss", MatchWildcard, "Foo.Bar", "bar*", false},
		{"wildcard spans slash", MatchWildcard, "contoso/tools/cli", "contoso/*", true},
		{"wildcard single char", MatchWildcard, "Foo.Bar", "foo?bar", true},
		{"wildcard bad pattern", MatchWildcard, "Foo.Bar", "foo[", false},
		{"fuzzy subsequence", MatchFuzzy, "Visual Studio Code", "vscode", true},
		{"fuzzy miss", MatchFuzzy, "Visual Studio Code", "zzz", false},
		{"fuzzy substring", MatchFuzzySubstring, "PowerToys", "toys", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchValue(tt.matchType, tt.candidate, tt.value))
		})
	}
}

func TestEvaluate(t *testing.T) {
	values := FieldValues{
		FieldID:      {"Foo.Bar"},
		FieldName:    {"Foo Bar"},
		FieldMoniker: {"foobar"},
		FieldTag:     {"cli", "tools"},
	}

	tests := []struct {
		name    string
		req     SearchRequest
		want    PackageMatchFilter
		wantHit bool
	}{
		{
			name:    "query matches id first",
			req:     SearchRequest{Query: &RequestMatch{Type: MatchSubstring, Value: "foo"}},
			want:    PackageMatchFilter{Field: FieldID, Type: MatchSubstring, Value: "foo"},
			wantHit: true,
		},
		{
			name:    "query falls through to tag",
			req:     SearchRequest{Query: &RequestMatch{Type: MatchExact, Value: "tools"}},
			want:    PackageMatchFilter{Field: FieldTag, Type: MatchExact, Value: "tools"},
			wantHit: true,
		},
		{
			name: "inclusion after failed query",
			req: SearchRequest{
				Query:      &RequestMatch{Type: MatchExact, Value: "nope"},
				Inclusions: []PackageMatchFilter{{Field: FieldMoniker, Type: MatchCaseInsensitive, Value: "FOOBAR"}},
			},
			want:    PackageMatchFilter{Field: FieldMoniker, Type: MatchCaseInsensitive, Value: "FOOBAR"},
			wantHit: true,
		},
		{
			name: "filter rejects",
			req: SearchRequest{
				Query:   &RequestMatch{Type: MatchExact, Value: "Foo.Bar"},
				Filters: []PackageMatchFilter{{Field: FieldTag, Type: MatchExact, Value: "gui"}},
			},
		},
		{
			name:    "filter only",
			req:     SearchRequest{Filters: []PackageMatchFilter{{Field: FieldTag, Type: MatchExact, Value: "cli"}}},
			want:    PackageMatchFilter{Field: FieldTag, Type: MatchExact, Value: "cli"},
			wantHit: true,
		},
		{
			name:    "everything",
			req:     SearchRequest{},
			wantHit: true,
		},
		{
			name: "nothing matches",
			req:  SearchRequest{Query: &RequestMatch{Type: MatchExact, Value: "nonexistent"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.req.Evaluate(values)
			assert.Equal(t, tt.wantHit, hit)
			if tt.wantHit {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRank(t *testing.T) {
	inc := PackageMatchFilter{Field: FieldTag, Type: MatchExact, Value: "cli"}
	filter := PackageMatchFilter{Field: FieldMoniker, Type: MatchExact, Value: "x"}
	req := SearchRequest{
		Query:      &RequestMatch{Type: MatchSubstring, Value: "foo"},
		Inclusions: []PackageMatchFilter{inc},
		Filters:    []PackageMatchFilter{filter},
	}
	assert.Equal(t, 0, req.Rank(PackageMatchFilter{Field: FieldName, Type: MatchSubstring, Value: "foo"}))
	assert.Equal(t, 1, req.Rank(inc))
	assert.Equal(t, 2, req.Rank(filter))
}

func TestTruncate(t *testing.T) {
	r := &SearchResult{Matches: make([]Match, 5)}
	r.Truncate(0)
	assert.Len(t, r.Matches, 5)
	assert.False(t, r.Truncated)

	r.Truncate(3)
	assert.Len(t, r.Matches, 3)
	assert.True(t, r.Truncated)
}

func TestParseNames(t *testing.T) {
	f, ok := ParseMatchField("moniker")
	assert.True(t, ok)
	assert.Equal(t, FieldMoniker, f)
	_, ok = ParseMatchField("color")
	assert.False(t, ok)

	m, ok := ParseMatchType("startswith")
	assert.True(t, ok)
	assert.Equal(t, MatchStartsWith, m)
}
