package source

import (
	"context"
	"sync"

	"github.com/glorpus-work/repokit/pkg/manifest"
)

// ManifestLoader fetches the manifest of one version.
type ManifestLoader func(ctx context.Context) (*manifest.Manifest, error)

// BasicVersion is a PackageVersion with fixed properties and a lazily loaded,
// cached manifest.
type BasicVersion struct {
	ref      *Ref
	props    map[VersionProperty]string
	metadata map[string]string
	load     ManifestLoader

	mu     sync.Mutex
	cached *manifest.Manifest
}

var _ PackageVersion = (*BasicVersion)(nil)

// NewBasicVersion returns a version owned by the source behind ref.
func NewBasicVersion(ref *Ref, props map[VersionProperty]string, metadata map[string]string, load ManifestLoader) *BasicVersion {
	return &BasicVersion{ref: ref, props: props, metadata: metadata, load: load}
}

// Property returns the property or "".
func (v *BasicVersion) Property(prop VersionProperty) string {
	return v.props[prop]
}

// Metadata returns a copy of the version metadata.
func (v *BasicVersion) Metadata() map[string]string {
	out := make(map[string]string, len(v.metadata))
	for k, val := range v.metadata {
		out[k] = val
	}
	return out
}

// Manifest loads the manifest once and caches it. Failed loads are not cached.
func (v *BasicVersion) Manifest(ctx context.Context) (*manifest.Manifest, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cached != nil {
		return v.cached, nil
	}
	if _, err := v.ref.Get(); err != nil {
		return nil, err
	}
	m, err := v.load(ctx)
	if err != nil {
		return nil, err
	}
	v.cached = m
	return m, nil
}

// Source returns the owning source.
func (v *BasicVersion) Source() (Source, error) {
	return v.ref.Get()
}

// Key returns the lookup key of the version.
func (v *BasicVersion) Key() PackageVersionKey {
	return PackageVersionKey{
		SourceIdentifier: v.props[VersionPropertySourceIdentifier],
		Version:          v.props[VersionPropertyVersion],
		Channel:          v.props[VersionPropertyChannel],
	}
}

// Entry pairs the version with its key for a VersionSet.
func (v *BasicVersion) Entry() VersionEntry {
	return VersionEntry{Key: v.Key(), Version: v}
}

// AvailablePackage is a Package made of available versions only.
type AvailablePackage struct {
	identity PackageIdentity
	versions *VersionSet
}

var _ Package = (*AvailablePackage)(nil)

// NewAvailablePackage returns a package with the given identity and versions.
func NewAvailablePackage(identity PackageIdentity, versions *VersionSet) *AvailablePackage {
	return &AvailablePackage{identity: identity, versions: versions}
}

// Property returns the id, or the name of the latest version.
func (p *AvailablePackage) Property(prop PackageProperty) string {
	switch prop {
	case PackagePropertyID:
		return p.identity.PackageID
	case PackagePropertyName:
		if latest := p.versions.Latest(); latest != nil {
			return latest.Property(VersionPropertyName)
		}
	}
	return ""
}

func (p *AvailablePackage) Identity() PackageIdentity { return p.identity }

func (p *AvailablePackage) InstalledVersion() PackageVersion { return nil }

func (p *AvailablePackage) AvailableVersionKeys() []PackageVersionKey { return p.versions.Keys() }

func (p *AvailablePackage) LatestAvailableVersion() PackageVersion { return p.versions.Latest() }

func (p *AvailablePackage) AvailableVersion(key PackageVersionKey) PackageVersion {
	return p.versions.Find(key)
}

func (p *AvailablePackage) IsUpdateAvailable() bool { return false }

// Versions exposes the version set, for callers that merge packages.
func (p *AvailablePackage) Versions() *VersionSet { return p.versions }
