// Package correlation decides whether an installed package is the same
// product as a package offered by an available source.
//
// No key is shared between the installed-programs view and the catalogs, so
// every strategy trades false positives against false negatives:
//
//   - ByIdentifier only pairs packages whose installed record names the
//     catalog and package id it came from. It never pairs unrelated products
//     but misses anything installed outside of a known source.
//   - ByNamePublisher pairs packages whose normalized name and publisher are
//     equal. It finds products installed by other means but can pair distinct
//     products sharing a generic name, and misses products renamed between
//     versions.
//   - Script delegates the decision to a user-supplied Tengo script.
//
// Chain tries strategies in order and is the usual way to combine them.
package correlation

import (
	"context"
	"strings"

	"github.com/glorpus-work/repokit/pkg/source"
)

// Correlator decides whether installed and available describe the same product.
type Correlator interface {
	Correlate(ctx context.Context, installed, available source.Package) (bool, error)
}

// Default pairs by identifier first and falls back to name and publisher.
func Default() Correlator {
	return Chain{ByIdentifier{}, ByNamePublisher{}}
}

// ByIdentifier pairs an installed package with the available package whose
// source identifier and package id match what the installed record carries.
type ByIdentifier struct{}

func (ByIdentifier) Correlate(_ context.Context, installed, available source.Package) (bool, error) {
	v := installed.InstalledVersion()
	if v == nil {
		return false, nil
	}
	sourceID := v.Property(source.VersionPropertySourceIdentifier)
	if sourceID == "" {
		return false, nil
	}
	return available.Identity().IsSame(source.PackageIdentity{
		SourceIdentifier: sourceID,
		PackageID:        installed.Identity().PackageID,
	}), nil
}

// ByNamePublisher pairs packages with equal normalized name and publisher.
// Packages without a publisher never pair.
type ByNamePublisher struct{}

func (ByNamePublisher) Correlate(_ context.Context, installed, available source.Package) (bool, error) {
	a := nameAndPublisher(installed.InstalledVersion())
	if a == "" {
		return false, nil
	}
	return a == nameAndPublisher(available.LatestAvailableVersion()), nil
}

func nameAndPublisher(v source.PackageVersion) string {
	if v == nil {
		return ""
	}
	publisher := v.Property(source.VersionPropertyPublisher)
	if strings.TrimSpace(publisher) == "" {
		return ""
	}
	return source.NormalizeNameAndPublisher(v.Property(source.VersionPropertyName), publisher)
}

// Chain reports a match as soon as one member does.
type Chain []Correlator

func (c Chain) Correlate(ctx context.Context, installed, available source.Package) (bool, error) {
	for _, member := range c {
		ok, err := member.Correlate(ctx, installed, available)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
