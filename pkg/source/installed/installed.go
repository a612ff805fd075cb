// Package installed implements the predefined source that lists installed
// programs (Microsoft.Predefined.Installed).
package installed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/glorpus-work/repokit/pkg/errors"
	installeddb "github.com/glorpus-work/repokit/pkg/installed"
	"github.com/glorpus-work/repokit/pkg/manifest"
	"github.com/glorpus-work/repokit/pkg/source"
)

// Name and Identifier of the installed source.
const (
	Name       = "installed"
	Identifier = "*Predefined.Installed"
)

// Details returns the details of the installed source.
func Details() source.Details {
	return source.Details{
		Name:       Name,
		Type:       source.TypeInstalled,
		Identifier: Identifier,
		Origin:     source.OriginPredefined,
	}
}

// Source searches a snapshot of the installed programs database taken when
// the source was created.
type Source struct {
	details  source.Details
	programs []*installeddb.Program
	ref      *source.Ref

	mu     sync.Mutex
	closed bool
}

var _ source.Source = (*Source)(nil)

// NewSource returns a source over programs.
func NewSource(details source.Details, programs []*installeddb.Program) *Source {
	s := &Source{details: details, programs: programs}
	s.ref = source.NewRef(s)
	return s
}

func (s *Source) Details() source.Details { return s.details }

func (s *Source) Identifier() string { return s.details.Identifier }

// Search evaluates req against every program. Query matches come first,
// then inclusion matches, then filter-only matches; ties keep database order.
func (s *Source) Search(ctx context.Context, req source.SearchRequest) (*source.SearchResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.ErrNotValidState
	}

	result := &source.SearchResult{}
	for _, p := range s.programs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		criteria, ok := req.Evaluate(fieldValues(p))
		if !ok {
			continue
		}
		result.Matches = append(result.Matches, source.Match{Package: s.newPackage(p), Criteria: criteria})
	}
	sort.SliceStable(result.Matches, func(i, j int) bool {
		return req.Rank(result.Matches[i].Criteria) < req.Rank(result.Matches[j].Criteria)
	})
	result.Truncate(req.MaximumResults)
	return result, nil
}

// Close detaches versions from the source.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.ref.Invalidate()
	return nil
}

func fieldValues(p *installeddb.Program) source.FieldValues {
	return source.FieldValues{
		source.FieldID:                         {p.ID},
		source.FieldName:                       {p.Name},
		source.FieldMoniker:                    nonEmpty(p.Moniker),
		source.FieldCommand:                    p.Commands,
		source.FieldTag:                        p.Tags,
		source.FieldPackageFamilyName:          p.PackageFamilyNames,
		source.FieldProductCode:                p.ProductCodes,
		source.FieldNormalizedNameAndPublisher: {source.NormalizeNameAndPublisher(p.Name, p.Publisher)},
	}
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

// Package is an installed program. It has an installed version and no
// available versions until it is correlated with an available package.
type Package struct {
	identity source.PackageIdentity
	version  *source.BasicVersion
}

var _ source.Package = (*Package)(nil)

func (s *Source) newPackage(p *installeddb.Program) *Package {
	props := map[source.VersionProperty]string{
		source.VersionPropertyID:               p.ID,
		source.VersionPropertyName:             p.Name,
		source.VersionPropertyVersion:          p.Version,
		source.VersionPropertyChannel:          p.Channel,
		source.VersionPropertyPublisher:        p.Publisher,
		source.VersionPropertyMoniker:          p.Moniker,
		source.VersionPropertySourceIdentifier: p.SourceIdentifier,
		source.VersionPropertySourceName:       s.details.Name,
	}
	metadata := map[string]string{
		source.MetadataInstalledLocation: p.Location,
		source.MetadataInstalledScope:    string(p.Scope),
	}
	if !p.InstalledAt.IsZero() {
		metadata[source.MetadataInstallDate] = p.InstalledAt.UTC().Format(time.RFC3339)
	}

	program := *p
	load := func(context.Context) (*manifest.Manifest, error) {
		return programManifest(&program), nil
	}
	return &Package{
		identity: source.PackageIdentity{SourceIdentifier: s.details.Identifier, PackageID: p.ID},
		version:  source.NewBasicVersion(s.ref, props, metadata, load),
	}
}

// programManifest describes an installed program as a manifest.
func programManifest(p *installeddb.Program) *manifest.Manifest {
	m := &manifest.Manifest{
		PackageIdentifier: p.ID,
		PackageVersion:    p.Version,
		Channel:           p.Channel,
		PackageName:       p.Name,
		Publisher:         p.Publisher,
		Moniker:           p.Moniker,
		Tags:              p.Tags,
		Commands:          p.Commands,
	}
	for _, code := range p.ProductCodes {
		m.Installers = append(m.Installers, manifest.Installer{ProductCode: code})
	}
	for _, pfn := range p.PackageFamilyNames {
		m.Installers = append(m.Installers, manifest.Installer{PackageFamilyName: pfn})
	}
	return m
}

func (p *Package) Property(prop source.PackageProperty) string {
	switch prop {
	case source.PackagePropertyID:
		return p.identity.PackageID
	case source.PackagePropertyName:
		return p.version.Property(source.VersionPropertyName)
	default:
		return ""
	}
}

func (p *Package) Identity() source.PackageIdentity { return p.identity }

func (p *Package) InstalledVersion() source.PackageVersion { return p.version }

func (p *Package) AvailableVersionKeys() []source.PackageVersionKey { return nil }

func (p *Package) LatestAvailableVersion() source.PackageVersion { return nil }

func (p *Package) AvailableVersion(source.PackageVersionKey) source.PackageVersion { return nil }

func (p *Package) IsUpdateAvailable() bool { return false }
