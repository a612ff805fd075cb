package source

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/sahilm/fuzzy"
)

// MatchType is how a request value is compared against a package field.
type MatchType int

const (
	MatchExact MatchType = iota
	MatchCaseInsensitive
	MatchStartsWith
	MatchSubstring
	MatchWildcard
	MatchFuzzy
	MatchFuzzySubstring
)

func (m MatchType) String() string {
	switch m {
	case MatchExact:
		return "Exact"
	case MatchCaseInsensitive:
		return "CaseInsensitive"
	case MatchStartsWith:
		return "StartsWith"
	case MatchSubstring:
		return "Substring"
	case MatchWildcard:
		return "Wildcard"
	case MatchFuzzy:
		return "Fuzzy"
	case MatchFuzzySubstring:
		return "FuzzySubstring"
	default:
		return "Unknown"
	}
}

// MatchField is a searchable package field.
type MatchField int

const (
	FieldID MatchField = iota
	FieldName
	FieldMoniker
	FieldCommand
	FieldTag
	FieldPackageFamilyName
	FieldProductCode
	FieldNormalizedNameAndPublisher
)

func (f MatchField) String() string {
	switch f {
	case FieldID:
		return "Id"
	case FieldName:
		return "Name"
	case FieldMoniker:
		return "Moniker"
	case FieldCommand:
		return "Command"
	case FieldTag:
		return "Tag"
	case FieldPackageFamilyName:
		return "PackageFamilyName"
	case FieldProductCode:
		return "ProductCode"
	case FieldNormalizedNameAndPublisher:
		return "NormalizedNameAndPublisher"
	default:
		return "Unknown"
	}
}

// ParseMatchField maps a field name back to its MatchField.
func ParseMatchField(s string) (MatchField, bool) {
	for f := FieldID; f <= FieldNormalizedNameAndPublisher; f++ {
		if strings.EqualFold(f.String(), s) {
			return f, true
		}
	}
	return 0, false
}

// ParseMatchType maps a match type name back to its MatchType.
func ParseMatchType(s string) (MatchType, bool) {
	for m := MatchExact; m <= MatchFuzzySubstring; m++ {
		if strings.EqualFold(m.String(), s) {
			return m, true
		}
	}
	return 0, false
}

// QueryFields are the fields a free-form query is tried against, in order.
var QueryFields = []MatchField{FieldID, FieldName, FieldMoniker, FieldCommand, FieldTag}

// RequestMatch is the free-form part of a search.
type RequestMatch struct {
	Type  MatchType
	Value string
}

// PackageMatchFilter restricts one field.
type PackageMatchFilter struct {
	Field MatchField
	Type  MatchType
	Value string
}

// SearchRequest is a query plus optional inclusions (ORed) and filters (ANDed).
// With no query and no inclusions every package passing the filters matches.
type SearchRequest struct {
	Query          *RequestMatch
	Inclusions     []PackageMatchFilter
	Filters        []PackageMatchFilter
	MaximumResults int
}

// IsForEverything reports whether the request has nothing that narrows it.
func (r SearchRequest) IsForEverything() bool {
	return r.Query == nil && len(r.Inclusions) == 0 && len(r.Filters) == 0
}

// Match is one package result with the criterion that selected it.
type Match struct {
	Package  Package
	Criteria PackageMatchFilter
}

// SearchFailure records a member source that contributed nothing.
type SearchFailure struct {
	SourceName       string
	SourceIdentifier string
	Err              error
}

// SearchResult is the ordered outcome of a search.
type SearchResult struct {
	Matches   []Match
	Truncated bool
	Failures  []SearchFailure
}

// Truncate cuts the matches down to max (0 means unbounded).
func (r *SearchResult) Truncate(max int) {
	if max > 0 && len(r.Matches) > max {
		r.Matches = r.Matches[:max]
		r.Truncated = true
	}
}

// MatchValue compares candidate against value using t. Every type except
// Exact is case-insensitive.
func MatchValue(t MatchType, candidate, value string) bool {
	switch t {
	case MatchExact:
		return candidate == value
	case MatchCaseInsensitive:
		return strings.EqualFold(candidate, value)
	case MatchStartsWith:
		return strings.HasPrefix(strings.ToLower(candidate), strings.ToLower(value))
	case MatchSubstring:
		return strings.Contains(strings.ToLower(candidate), strings.ToLower(value))
	case MatchWildcard:
		return wildcardMatch(candidate, value)
	case MatchFuzzy:
		return fuzzyMatch(candidate, value)
	case MatchFuzzySubstring:
		return strings.Contains(strings.ToLower(candidate), strings.ToLower(value)) || fuzzyMatch(candidate, value)
	default:
		return false
	}
}

// wildcardMatch compiles pattern without separators so * also spans '/'.
func wildcardMatch(candidate, pattern string) bool {
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return false
	}
	return g.Match(strings.ToLower(candidate))
}

func fuzzyMatch(candidate, value string) bool {
	if value == "" {
		return true
	}
	return len(fuzzy.Find(value, []string{candidate})) > 0
}

// FieldValues holds a package's values per match field.
type FieldValues map[MatchField][]string

func (v FieldValues) match(field MatchField, t MatchType, value string) bool {
	for _, candidate := range v[field] {
		if MatchValue(t, candidate, value) {
			return true
		}
	}
	return false
}

// Evaluate applies r to a package in memory. It returns the criterion that
// selected the package: the first query field that matched, else the first
// inclusion, else the first filter for filter-only requests.
func (r SearchRequest) Evaluate(values FieldValues) (PackageMatchFilter, bool) {
	for _, f := range r.Filters {
		if !values.match(f.Field, f.Type, f.Value) {
			return PackageMatchFilter{}, false
		}
	}

	if r.Query != nil {
		for _, field := range QueryFields {
			if values.match(field, r.Query.Type, r.Query.Value) {
				return PackageMatchFilter{Field: field, Type: r.Query.Type, Value: r.Query.Value}, true
			}
		}
	}
	for _, inc := range r.Inclusions {
		if values.match(inc.Field, inc.Type, inc.Value) {
			return inc, true
		}
	}
	if r.Query != nil || len(r.Inclusions) > 0 {
		return PackageMatchFilter{}, false
	}
	if len(r.Filters) > 0 {
		return r.Filters[0], true
	}
	return PackageMatchFilter{}, true
}

// Rank orders criteria: query matches first, then inclusions, then filters.
func (r SearchRequest) Rank(c PackageMatchFilter) int {
	if r.Query != nil && c.Value == r.Query.Value && c.Type == r.Query.Type {
		for _, field := range QueryFields {
			if c.Field == field {
				return 0
			}
		}
	}
	for _, inc := range r.Inclusions {
		if inc == c {
			return 1
		}
	}
	return 2
}
