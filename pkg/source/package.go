package source

import (
	"context"
	"strings"

	"github.com/glorpus-work/repokit/pkg/manifest"
)

// PackageProperty is a package-level string property.
type PackageProperty int

const (
	PackagePropertyID PackageProperty = iota
	PackagePropertyName
)

// VersionProperty is a version-level string property.
type VersionProperty int

const (
	VersionPropertyID VersionProperty = iota
	VersionPropertyName
	VersionPropertyVersion
	VersionPropertyChannel
	VersionPropertyPublisher
	VersionPropertyMoniker
	VersionPropertySourceIdentifier
	VersionPropertySourceName
	VersionPropertyRelativePath
)

// Metadata keys carried by installed versions.
const (
	MetadataInstalledLocation = "InstalledLocation"
	MetadataInstalledScope    = "InstalledScope"
	MetadataInstallDate       = "InstallDate"
)

// PackageIdentity is the cross-source identity of a package: the identifier
// of the source that produced it and the backend's canonical package id.
type PackageIdentity struct {
	SourceIdentifier string
	PackageID        string
}

// IsSame compares identities case-insensitively.
func (p PackageIdentity) IsSame(other PackageIdentity) bool {
	return strings.EqualFold(p.SourceIdentifier, other.SourceIdentifier) &&
		strings.EqualFold(p.PackageID, other.PackageID)
}

// Key returns a normalized map key for the identity.
func (p PackageIdentity) Key() string {
	return strings.ToLower(p.SourceIdentifier) + "\x00" + strings.ToLower(p.PackageID)
}

// PackageVersionKey looks up a version. Empty fields match anything.
type PackageVersionKey struct {
	SourceIdentifier string
	Version          string
	Channel          string
}

// Package is a package identity with its installed and available versions.
type Package interface {
	Property(prop PackageProperty) string
	Identity() PackageIdentity
	// InstalledVersion returns nil if the package is not installed.
	InstalledVersion() PackageVersion
	AvailableVersionKeys() []PackageVersionKey
	// LatestAvailableVersion returns nil if there are no available versions.
	LatestAvailableVersion() PackageVersion
	// AvailableVersion returns nil if no version matches key.
	AvailableVersion(key PackageVersionKey) PackageVersion
	IsUpdateAvailable() bool
}

// PackageVersion is one immutable version of a package.
type PackageVersion interface {
	Property(prop VersionProperty) string
	Metadata() map[string]string
	// Manifest may fetch lazily; the result is cached.
	Manifest(ctx context.Context) (*manifest.Manifest, error)
	// Source returns the owning source, or ErrNotValidState once it is closed.
	Source() (Source, error)
}

// IsUpdateAvailable reports whether latest is newer than installed.
func IsUpdateAvailable(installed, latest PackageVersion) bool {
	if installed == nil || latest == nil {
		return false
	}
	return CompareVersions(latest.Property(VersionPropertyVersion), installed.Property(VersionPropertyVersion)) > 0
}
