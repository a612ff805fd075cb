// Package composite presents an optional installed source and any number of
// available sources as a single source. Searches fan out to every member,
// results are de-duplicated by package identity and installed packages are
// correlated with the available packages they correspond to.
package composite

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/correlation"
	"github.com/glorpus-work/repokit/pkg/source"
)

// Identity of every composite source.
const (
	Type       = "Composite"
	Name       = "*Composite"
	Identifier = "*CompositeSource"
)

// SearchBehavior selects which side of the composite a search returns.
type SearchBehavior int

const (
	// SearchAllPackages returns installed packages first, then available
	// packages that are not installed.
	SearchAllPackages SearchBehavior = iota
	// SearchInstalled returns installed packages only, each correlated with
	// its available counterpart.
	SearchInstalled
	// SearchAvailablePackages returns available packages only, each
	// correlated with its installed counterpart.
	SearchAvailablePackages
)

func (b SearchBehavior) String() string {
	switch b {
	case SearchAllPackages:
		return "all"
	case SearchInstalled:
		return "installed"
	case SearchAvailablePackages:
		return "available"
	default:
		return "unknown"
	}
}

// ParseSearchBehavior maps "all", "installed" or "available" to a behavior.
func ParseSearchBehavior(s string) (SearchBehavior, bool) {
	for b := SearchAllPackages; b <= SearchAvailablePackages; b++ {
		if strings.EqualFold(b.String(), s) {
			return b, true
		}
	}
	return 0, false
}

// Options configures a composite source.
type Options struct {
	Behavior SearchBehavior
	// Correlator pairs installed with available packages. Nil means correlation.Default().
	Correlator correlation.Correlator
	// MemberTimeout bounds each member's search. Zero means no bound beyond the caller's context.
	MemberTimeout time.Duration
}

// Source is a composite source. It owns its members and closes them on Close.
type Source struct {
	details   source.Details
	installed source.Source
	available []source.Source
	opts      Options
}

var _ source.Source = (*Source)(nil)

// New returns a composite over available and, if not nil, installed.
func New(installed source.Source, available []source.Source, opts Options) *Source {
	if opts.Correlator == nil {
		opts.Correlator = correlation.Default()
	}
	return &Source{
		details:   source.Details{Name: Name, Type: Type, Identifier: Identifier},
		installed: installed,
		available: append([]source.Source(nil), available...),
		opts:      opts,
	}
}

func (s *Source) Details() source.Details { return s.details }

func (s *Source) Identifier() string { return s.details.Identifier }

// InstalledSource returns the installed member or nil.
func (s *Source) InstalledSource() source.Source { return s.installed }

// AvailableSources returns the available members in search order.
func (s *Source) AvailableSources() []source.Source {
	return append([]source.Source(nil), s.available...)
}

// Behavior returns the configured search behavior.
func (s *Source) Behavior() SearchBehavior { return s.opts.Behavior }

// hit is a member match. Primary hits answer the caller's request; the rest
// were only looked up to correlate installed packages.
type hit struct {
	match   source.Match
	primary bool
}

type entry struct {
	pkg       source.Package
	criteria  source.PackageMatchFilter
	primary   bool
	installed source.Package
	emitted   bool
}

type ranked struct {
	match   source.Match
	section int
}

// Search runs req against every member. A member that fails or times out is
// reported in Failures and contributes nothing; only cancellation of ctx
// fails the whole search.
func (s *Source) Search(ctx context.Context, req source.SearchRequest) (*source.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &source.SearchResult{}

	var installedMatches []source.Match
	if s.installed != nil && s.opts.Behavior != SearchAvailablePackages {
		res, err := s.installed.Search(ctx, req)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			result.Failures = append(result.Failures, failure(s.installed, err))
		default:
			installedMatches = res.Matches
			result.Truncated = res.Truncated
		}
	}

	var primary *source.SearchRequest
	if s.opts.Behavior != SearchInstalled {
		primary = &req
	}
	hits, failures, truncated := s.fanOut(ctx, primary, correlationRequest(installedMatches))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Failures = append(result.Failures, failures...)
	result.Truncated = result.Truncated || truncated

	entries := merge(hits)
	pairs := make([]*entry, len(installedMatches))
	for i, im := range installedMatches {
		pairs[i] = s.correlate(ctx, im.Package, entries)
	}
	if s.installed != nil && s.opts.Behavior != SearchInstalled {
		if err := s.correlateRemaining(ctx, installedMatches, entries, result); err != nil {
			return nil, err
		}
	}

	var out []ranked
	if s.opts.Behavior != SearchAvailablePackages {
		for i, im := range installedMatches {
			var available source.Package
			if pairs[i] != nil {
				available = pairs[i].pkg
				pairs[i].emitted = true
			}
			out = append(out, ranked{match: source.Match{Package: newPackage(im.Package, available), Criteria: im.Criteria}})
		}
	}
	if s.opts.Behavior != SearchInstalled {
		for _, e := range entries {
			if !e.primary || e.emitted {
				continue
			}
			out = append(out, ranked{match: source.Match{Package: newPackage(e.installed, e.pkg), Criteria: e.criteria}, section: 1})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].section != out[j].section {
			return out[i].section < out[j].section
		}
		return req.Rank(out[i].match.Criteria) < req.Rank(out[j].match.Criteria)
	})
	for _, r := range out {
		result.Matches = append(result.Matches, r.match)
	}
	result.Truncate(req.MaximumResults)

	logger.Debug("Composite search finished", logger.Fields{
		"behavior": s.opts.Behavior.String(),
		"matches":  len(result.Matches),
		"failures": len(result.Failures),
	})
	return result, nil
}

// fanOut searches every available member concurrently and returns their hits
// in member order. A member whose correlation lookup fails keeps its primary
// hits and is reported as a failure as well.
func (s *Source) fanOut(ctx context.Context, primary, lookup *source.SearchRequest) ([][]hit, []source.SearchFailure, bool) {
	if primary == nil && lookup == nil {
		return nil, nil, false
	}

	hits := make([][]hit, len(s.available))
	errs := make([]error, len(s.available))
	truncated := make([]bool, len(s.available))

	var g errgroup.Group
	for i, member := range s.available {
		g.Go(func() error {
			hits[i], truncated[i], errs[i] = s.searchMember(ctx, member, primary, lookup)
			return nil
		})
	}
	_ = g.Wait()

	var failures []source.SearchFailure
	anyTruncated := false
	for i, err := range errs {
		if err != nil {
			failures = append(failures, failure(s.available[i], err))
		}
		anyTruncated = anyTruncated || truncated[i]
	}
	return hits, failures, anyTruncated
}

func (s *Source) searchMember(ctx context.Context, member source.Source, primary, lookup *source.SearchRequest) ([]hit, bool, error) {
	if s.opts.MemberTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.MemberTimeout)
		defer cancel()
	}

	var out []hit
	truncated := false
	if primary != nil {
		res, err := member.Search(ctx, *primary)
		if err != nil {
			return nil, false, err
		}
		for _, m := range res.Matches {
			out = append(out, hit{match: m, primary: true})
		}
		truncated = res.Truncated
	}
	if lookup != nil {
		res, err := member.Search(ctx, *lookup)
		if err != nil {
			return out, truncated, fmt.Errorf("correlation lookup: %w", err)
		}
		for _, m := range res.Matches {
			out = append(out, hit{match: m})
		}
	}
	return out, truncated, nil
}

// merge groups hits by package identity. The first member to return a
// package provides it; a later primary hit only upgrades a lookup hit.
func merge(hits [][]hit) []*entry {
	var entries []*entry
	byKey := map[string]*entry{}
	for _, memberHits := range hits {
		for _, h := range memberHits {
			key := h.match.Package.Identity().Key()
			if e, ok := byKey[key]; ok {
				if h.primary && !e.primary {
					e.primary = true
					e.criteria = h.match.Criteria
				}
				continue
			}
			e := &entry{pkg: h.match.Package, criteria: h.match.Criteria, primary: h.primary}
			byKey[key] = e
			entries = append(entries, e)
		}
	}
	return entries
}

// correlate pairs installed with the first free entry the correlator accepts.
func (s *Source) correlate(ctx context.Context, installed source.Package, entries []*entry) *entry {
	for _, e := range entries {
		if e.installed != nil {
			continue
		}
		ok, err := s.opts.Correlator.Correlate(ctx, installed, e.pkg)
		if err != nil {
			logger.Warn("Correlation failed", logger.Fields{
				"installed": installed.Identity().PackageID,
				"available": e.pkg.Identity().PackageID,
				"error":     err,
			})
			continue
		}
		if ok {
			e.installed = installed
			return e
		}
	}
	return nil
}

// correlateRemaining pairs primary entries left uncorrelated with installed
// packages the request itself did not match. A failed listing is recorded in
// result and leaves the entries uncorrelated.
func (s *Source) correlateRemaining(ctx context.Context, matched []source.Match, entries []*entry, result *source.SearchResult) error {
	var pending []*entry
	for _, e := range entries {
		if e.primary && e.installed == nil {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	res, err := s.installed.Search(ctx, source.SearchRequest{})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.Failures = append(result.Failures, failure(s.installed, fmt.Errorf("listing installed packages: %w", err)))
		return nil
	}

	taken := map[string]bool{}
	for _, m := range matched {
		taken[m.Package.Identity().Key()] = true
	}
	for _, m := range res.Matches {
		if taken[m.Package.Identity().Key()] {
			continue
		}
		if s.correlate(ctx, m.Package, pending) != nil {
			taken[m.Package.Identity().Key()] = true
		}
	}
	return nil
}

// correlationRequest looks installed packages up by id and by normalized
// name and publisher.
func correlationRequest(installed []source.Match) *source.SearchRequest {
	var inclusions []source.PackageMatchFilter
	seen := map[source.PackageMatchFilter]bool{}
	add := func(f source.PackageMatchFilter) {
		if !seen[f] {
			seen[f] = true
			inclusions = append(inclusions, f)
		}
	}
	for _, m := range installed {
		add(source.PackageMatchFilter{Field: source.FieldID, Type: source.MatchCaseInsensitive, Value: m.Package.Identity().PackageID})
		v := m.Package.InstalledVersion()
		if v == nil || v.Property(source.VersionPropertyPublisher) == "" {
			continue
		}
		add(source.PackageMatchFilter{
			Field: source.FieldNormalizedNameAndPublisher,
			Type:  source.MatchExact,
			Value: source.NormalizeNameAndPublisher(v.Property(source.VersionPropertyName), v.Property(source.VersionPropertyPublisher)),
		})
	}
	if len(inclusions) == 0 {
		return nil
	}
	return &source.SearchRequest{Inclusions: inclusions}
}

func failure(member source.Source, err error) source.SearchFailure {
	d := member.Details()
	logger.Warn("Source search failed", logger.Fields{"source": d.Name, "error": err})
	return source.SearchFailure{SourceName: d.Name, SourceIdentifier: member.Identifier(), Err: err}
}

// Close closes every member.
func (s *Source) Close() error {
	var errs []error
	if s.installed != nil {
		errs = append(errs, s.installed.Close())
	}
	for _, member := range s.available {
		errs = append(errs, member.Close())
	}
	return stderrors.Join(errs...)
}
