package source

import (
	"sort"
	"strings"
	"unicode"

	goversion "github.com/hashicorp/go-version"
)

// CompareVersions returns -1, 0 or 1. Versions go-version can parse are
// compared with it and always sort above versions it cannot parse, which
// compare among themselves in natural order (digit runs numerically).
func CompareVersions(a, b string) int {
	va, errA := goversion.NewVersion(a)
	vb, errB := goversion.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return naturalCompare(a, b)
	}
}

func naturalCompare(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		ca, cb := rune(a[0]), rune(b[0])
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			na, ra := digitRun(a)
			nb, rb := digitRun(b)
			if c := compareDigits(na, nb); c != 0 {
				return c
			}
			a, b = ra, rb
			continue
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		a, b = a[1:], b[1:]
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func digitRun(s string) (string, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return strings.TrimLeft(s[:i], "0"), s[i:]
}

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// compareKeys orders version descending, then channel ascending.
func compareKeys(a, b PackageVersionKey) int {
	if c := CompareVersions(a.Version, b.Version); c != 0 {
		return -c
	}
	return strings.Compare(strings.ToLower(a.Channel), strings.ToLower(b.Channel))
}

// Matches reports whether k satisfies the lookup key, treating empty
// lookup fields as wildcards.
func (k PackageVersionKey) Matches(lookup PackageVersionKey) bool {
	if lookup.SourceIdentifier != "" && !strings.EqualFold(lookup.SourceIdentifier, k.SourceIdentifier) {
		return false
	}
	if lookup.Version != "" && !strings.EqualFold(lookup.Version, k.Version) {
		return false
	}
	if lookup.Channel != "" && !strings.EqualFold(lookup.Channel, k.Channel) {
		return false
	}
	return true
}

// VersionEntry pairs a key with the version it identifies.
type VersionEntry struct {
	Key     PackageVersionKey
	Version PackageVersion
}

// VersionSet is an ordered, immutable set of available versions.
type VersionSet struct {
	entries []VersionEntry
}

// NewVersionSet sorts entries newest first with channel as the tiebreak.
func NewVersionSet(entries ...VersionEntry) *VersionSet {
	sorted := make([]VersionEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareKeys(sorted[i].Key, sorted[j].Key) < 0
	})
	return &VersionSet{entries: sorted}
}

// Keys returns the keys in sorted order.
func (s *VersionSet) Keys() []PackageVersionKey {
	keys := make([]PackageVersionKey, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.Key
	}
	return keys
}

// Latest returns the first version or nil.
func (s *VersionSet) Latest() PackageVersion {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[0].Version
}

// Find returns the first version in sorted order matching key, or nil.
func (s *VersionSet) Find(key PackageVersionKey) PackageVersion {
	for _, e := range s.entries {
		if e.Key.Matches(key) {
			return e.Version
		}
	}
	return nil
}

// Len returns the number of versions.
func (s *VersionSet) Len() int {
	return len(s.entries)
}

// Merge returns a new set holding the entries of s and other.
func (s *VersionSet) Merge(other *VersionSet) *VersionSet {
	entries := append(append([]VersionEntry{}, s.entries...), other.entries...)
	return NewVersionSet(entries...)
}
