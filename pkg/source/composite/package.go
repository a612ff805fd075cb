package composite

import (
	"github.com/glorpus-work/repokit/pkg/source"
)

// Package joins an installed package with the available package it was
// correlated with. Either side may be missing.
type Package struct {
	installed source.Package
	available source.Package
}

var _ source.Package = (*Package)(nil)

func newPackage(installed, available source.Package) source.Package {
	switch {
	case installed == nil:
		return available
	case available == nil:
		return &Package{installed: installed}
	default:
		return &Package{installed: installed, available: available}
	}
}

func (p *Package) Property(prop source.PackageProperty) string {
	if p.available != nil {
		return p.available.Property(prop)
	}
	return p.installed.Property(prop)
}

// Identity is the available package's identity when there is one, so results
// compare equal to the same package seen through its catalog.
func (p *Package) Identity() source.PackageIdentity {
	if p.available != nil {
		return p.available.Identity()
	}
	return p.installed.Identity()
}

func (p *Package) InstalledVersion() source.PackageVersion {
	if p.installed != nil {
		return p.installed.InstalledVersion()
	}
	return nil
}

func (p *Package) AvailableVersionKeys() []source.PackageVersionKey {
	if p.available == nil {
		return nil
	}
	return p.available.AvailableVersionKeys()
}

func (p *Package) LatestAvailableVersion() source.PackageVersion {
	if p.available == nil {
		return nil
	}
	return p.available.LatestAvailableVersion()
}

func (p *Package) AvailableVersion(key source.PackageVersionKey) source.PackageVersion {
	if p.available == nil {
		return nil
	}
	return p.available.AvailableVersion(key)
}

func (p *Package) IsUpdateAvailable() bool {
	return source.IsUpdateAvailable(p.InstalledVersion(), p.LatestAvailableVersion())
}
