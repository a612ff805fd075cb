// Package rest implements sources backed by a remote REST catalog
// (Microsoft.Rest).
package rest

import (
	"context"
	"net/url"
	"strings"
	"sync"

	goversion "github.com/hashicorp/go-version"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/http"
	"github.com/glorpus-work/repokit/pkg/manifest"
	"github.com/glorpus-work/repokit/pkg/source"
)

// ContractVersion is the REST contract this client speaks.
const ContractVersion = "1.1.0"

// Endpoint paths relative to the source argument.
const (
	informationPath = "information"
	searchPath      = "manifestSearch"
	manifestsPath   = "packageManifests"
)

// maxPages bounds how many continuation pages one search follows.
const maxPages = 16

type infoState int

const (
	stateUninitialized infoState = iota
	stateReady
)

// Source is an open REST source.
type Source struct {
	details source.Details
	client  http.Doer
	ref     *source.Ref

	mu     sync.Mutex
	state  infoState
	info   Information
	closed bool
}

var (
	_ source.Source          = (*Source)(nil)
	_ source.AgreementSource = (*Source)(nil)
)

// NewSource returns a source talking to details.Arg through client. Nothing
// is requested until the first call that needs the server information.
func NewSource(details source.Details, client http.Doer) *Source {
	s := &Source{details: details, client: client}
	s.ref = source.NewRef(s)
	return s
}

func (s *Source) Details() source.Details { return s.details }

func (s *Source) Identifier() string { return s.details.Identifier }

// Information returns the server information, fetching it on first use. A
// failed fetch leaves the source uninitialized so the next call tries again.
func (s *Source) Information(ctx context.Context) (Information, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Information{}, errors.ErrNotValidState
	}
	if s.state == stateReady {
		return s.info, nil
	}

	info, err := fetchInformation(ctx, s.client, s.details.Arg)
	if err != nil {
		return Information{}, err
	}
	s.info = info
	s.state = stateReady
	return info, nil
}

func fetchInformation(ctx context.Context, client http.Doer, arg string) (Information, error) {
	endpoint, err := url.JoinPath(arg, informationPath)
	if err != nil {
		return Information{}, errors.Wrapf(errors.ErrInvalidArgument, "source argument %q: %v", arg, err)
	}
	var resp informationResponse
	if err := client.GetJSON(ctx, endpoint, versionHeader(), &resp); err != nil {
		return Information{}, errors.Wrapf(err, "failed to get information from %s", arg)
	}
	if strings.TrimSpace(resp.Data.SourceIdentifier) == "" {
		return Information{}, errors.Wrapf(errors.ErrInvalidOperation, "%s did not report a source identifier", arg)
	}
	if !supportsContract(resp.Data.ServerSupportedVersions) {
		return Information{}, errors.Wrapf(errors.ErrInvalidOperation, "%s supports none of the contract versions %v", arg, resp.Data.ServerSupportedVersions)
	}
	return resp.Data, nil
}

// supportsContract reports whether the server speaks a contract with our
// major version. An empty list is taken as compatible.
func supportsContract(versions []string) bool {
	if len(versions) == 0 {
		return true
	}
	ours := goversion.Must(goversion.NewVersion(ContractVersion))
	for _, v := range versions {
		theirs, err := goversion.NewVersion(v)
		if err != nil {
			continue
		}
		if theirs.Segments()[0] == ours.Segments()[0] {
			return true
		}
	}
	return false
}

// SourceAgreements returns the agreements the server reports.
func (s *Source) SourceAgreements(ctx context.Context) (source.Agreements, error) {
	info, err := s.Information(ctx)
	if err != nil {
		return source.Agreements{}, err
	}
	a := info.SourceAgreements
	if a == nil {
		return source.Agreements{}, nil
	}
	out := source.Agreements{Identifier: a.AgreementsIdentifier, Fields: a.Fields()}
	for _, entry := range a.Agreements {
		out.Entries = append(out.Entries, source.Agreement{Label: entry.AgreementLabel, Text: entry.Agreement, URL: entry.AgreementURL})
	}
	return out, nil
}

func versionHeader() map[string]string {
	return map[string]string{"Version": ContractVersion}
}

// Search posts the request to manifestSearch and follows continuation tokens
// until the result is complete or MaximumResults is reached.
func (s *Source) Search(ctx context.Context, req source.SearchRequest) (*source.SearchResult, error) {
	info, err := s.Information(ctx)
	if err != nil {
		return nil, err
	}
	body, err := buildSearch(info, req)
	if err != nil {
		return nil, err
	}
	if req.Query == nil && len(req.Inclusions) > 0 && len(body.Inclusions) == 0 {
		logger.Debug("No inclusion is supported by the source, nothing can match", logger.Fields{"source": s.details.Name})
		return &source.SearchResult{}, nil
	}
	endpoint, err := url.JoinPath(s.details.Arg, searchPath)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "source argument %q: %v", s.details.Arg, err)
	}

	result := &source.SearchResult{}
	headers := versionHeader()
	for page := 0; page < maxPages; page++ {
		var resp searchResponse
		if err := s.client.PostJSON(ctx, endpoint, headers, body, &resp); err != nil {
			return nil, errors.Wrapf(err, "search of %s failed", s.details.Name)
		}
		for _, p := range resp.Data {
			result.Matches = append(result.Matches, source.Match{
				Package:  s.buildPackage(p),
				Criteria: criteriaFor(req, p),
			})
		}
		if resp.ContinuationToken == "" {
			break
		}
		if req.MaximumResults > 0 && len(result.Matches) >= req.MaximumResults {
			result.Truncated = true
			break
		}
		headers = versionHeader()
		headers["ContinuationToken"] = resp.ContinuationToken
	}

	result.Truncate(req.MaximumResults)
	logger.Debug("REST search finished", logger.Fields{"source": s.details.Name, "matches": len(result.Matches)})
	return result, nil
}

// buildSearch checks req against the server capabilities. Inclusions on
// unsupported fields are dropped, so they add no results; filters on them
// cannot be honoured and fail the search.
func buildSearch(info Information, req source.SearchRequest) (searchRequest, error) {
	unsupported := fieldSet(info.UnsupportedPackageMatchFields)

	var inclusions []source.PackageMatchFilter
	for _, inc := range req.Inclusions {
		if unsupported[inc.Field] {
			logger.Debug("Dropping inclusion on unsupported field", logger.Fields{"field": inc.Field.String()})
			continue
		}
		inclusions = append(inclusions, inc)
	}
	for _, f := range req.Filters {
		if unsupported[f.Field] {
			return searchRequest{}, errors.Wrapf(errors.ErrUnsupportedMatchField, "filter on %s", f.Field)
		}
	}
	for _, name := range info.RequiredPackageMatchFields {
		field, ok := fieldFromWire(name)
		if !ok {
			return searchRequest{}, errors.Wrapf(errors.ErrRequiredMatchFieldMissing, "unknown required field %s", name)
		}
		if !usesField(req, field) {
			return searchRequest{}, errors.Wrapf(errors.ErrRequiredMatchFieldMissing, "%s", field)
		}
	}

	body := searchRequest{
		MaximumResults: req.MaximumResults,
		Inclusions:     toWireFilters(inclusions),
		Filters:        toWireFilters(req.Filters),
	}
	if req.Query != nil {
		body.Query = &requestMatch{KeyWord: req.Query.Value, MatchType: req.Query.Type.String()}
	}
	return body, nil
}

func fieldSet(names []string) map[source.MatchField]bool {
	set := make(map[source.MatchField]bool, len(names))
	for _, name := range names {
		if f, ok := fieldFromWire(name); ok {
			set[f] = true
		}
	}
	return set
}

func usesField(req source.SearchRequest, field source.MatchField) bool {
	for _, f := range req.Inclusions {
		if f.Field == field {
			return true
		}
	}
	for _, f := range req.Filters {
		if f.Field == field {
			return true
		}
	}
	return false
}

// criteriaFor works out which part of req selected p. The server does not
// say, so the request is evaluated against the fields the response carries
// and falls back to the query on the Id field.
func criteriaFor(req source.SearchRequest, p searchPackage) source.PackageMatchFilter {
	values := source.FieldValues{
		source.FieldID:                         {p.PackageIdentifier},
		source.FieldName:                       {p.PackageName},
		source.FieldNormalizedNameAndPublisher: {source.NormalizeNameAndPublisher(p.PackageName, p.Publisher)},
	}
	for _, v := range p.Versions {
		values[source.FieldPackageFamilyName] = append(values[source.FieldPackageFamilyName], v.PackageFamilyNames...)
		values[source.FieldProductCode] = append(values[source.FieldProductCode], v.ProductCodes...)
	}
	if c, ok := req.Evaluate(values); ok {
		return c
	}
	switch {
	case req.Query != nil:
		return source.PackageMatchFilter{Field: source.FieldID, Type: req.Query.Type, Value: req.Query.Value}
	case len(req.Inclusions) > 0:
		return req.Inclusions[0]
	case len(req.Filters) > 0:
		return req.Filters[0]
	default:
		return source.PackageMatchFilter{}
	}
}

func (s *Source) buildPackage(p searchPackage) *source.AvailablePackage {
	entries := make([]source.VersionEntry, 0, len(p.Versions))
	for _, v := range p.Versions {
		props := map[source.VersionProperty]string{
			source.VersionPropertyID:               p.PackageIdentifier,
			source.VersionPropertyName:             p.PackageName,
			source.VersionPropertyVersion:          v.PackageVersion,
			source.VersionPropertyChannel:          v.Channel,
			source.VersionPropertyPublisher:        p.Publisher,
			source.VersionPropertySourceIdentifier: s.details.Identifier,
			source.VersionPropertySourceName:       s.details.Name,
		}
		entries = append(entries, source.NewBasicVersion(s.ref, props, nil, s.manifestLoader(p.PackageIdentifier, v)).Entry())
	}
	identity := source.PackageIdentity{SourceIdentifier: s.details.Identifier, PackageID: p.PackageIdentifier}
	return source.NewAvailablePackage(identity, source.NewVersionSet(entries...))
}

// manifestLoader fetches packageManifests/{id} narrowed to one version and
// channel, honouring the query parameters the server does not support.
func (s *Source) manifestLoader(id string, v searchVersion) source.ManifestLoader {
	return func(ctx context.Context) (*manifest.Manifest, error) {
		info, err := s.Information(ctx)
		if err != nil {
			return nil, err
		}
		endpoint, err := url.JoinPath(s.details.Arg, manifestsPath, id)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidArgument, "manifest URL for %s: %v", id, err)
		}
		query, err := manifestQuery(info, v)
		if err != nil {
			return nil, errors.Wrapf(err, "manifest of %s %s", id, v.PackageVersion)
		}
		endpoint += query

		var resp manifestResponse
		if err := s.client.GetJSON(ctx, endpoint, versionHeader(), &resp); err != nil {
			return nil, errors.Wrapf(errors.ErrManifestNotFound, "%s %s: %v", id, v.PackageVersion, err)
		}
		if resp.Data == nil {
			return nil, errors.Wrapf(errors.ErrManifestNotFound, "%s %s", id, v.PackageVersion)
		}
		for _, mv := range resp.Data.Versions {
			if strings.EqualFold(mv.PackageVersion, v.PackageVersion) && strings.EqualFold(mv.Channel, v.Channel) {
				m := mv.toManifest(resp.Data.PackageIdentifier)
				if err := m.Validate(); err != nil {
					return nil, err
				}
				return m, nil
			}
		}
		return nil, errors.Wrapf(errors.ErrManifestNotFound, "%s %s", id, v.PackageVersion)
	}
}

// manifestQuery builds the query narrowing a manifest request to v. Every
// parameter the server requires must be one we can send with a value.
func manifestQuery(info Information, v searchVersion) (string, error) {
	unsupported := map[string]bool{}
	for _, p := range info.UnsupportedQueryParameters {
		unsupported[strings.ToLower(p)] = true
	}
	q := url.Values{}
	if !unsupported["version"] {
		q.Set("Version", v.PackageVersion)
	}
	if v.Channel != "" && !unsupported["channel"] {
		q.Set("Channel", v.Channel)
	}
	sent := map[string]bool{}
	for name := range q {
		sent[strings.ToLower(name)] = true
	}
	for _, p := range info.RequiredQueryParameters {
		if p = strings.TrimSpace(p); p != "" && !sent[strings.ToLower(p)] {
			return "", errors.Wrapf(errors.ErrRequiredQueryParameterMissing, "%s", p)
		}
	}
	if len(q) == 0 {
		return "", nil
	}
	return "?" + q.Encode(), nil
}

// Close invalidates versions handed out earlier.
func (s *Source) Close() error {
	s.ref.Invalidate()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
