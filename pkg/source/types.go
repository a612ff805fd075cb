// Package source defines the contract every package source implements: the
// source itself, the packages it returns and their versions, plus the shared
// search, version-ordering and identity rules.
package source

import (
	"context"
	"strings"
	"time"
)

//go:generate mockgen -destination=mocks/source.go -package=mocks . Source,Package,PackageVersion,Factory

// Source type discriminators.
const (
	TypePreIndexed = "Microsoft.PreIndexed.Package"
	TypeRest       = "Microsoft.Rest"
	TypeInstalled  = "Microsoft.Predefined.Installed"

	// DefaultType is used when a source is added without a type.
	DefaultType = TypePreIndexed
)

// Origin is the provenance tier of a source record.
type Origin int

const (
	OriginDefault Origin = iota
	OriginUser
	OriginGroupPolicy
	OriginPredefined
	OriginMetadata
)

func (o Origin) String() string {
	switch o {
	case OriginDefault:
		return "Default"
	case OriginUser:
		return "User"
	case OriginGroupPolicy:
		return "GroupPolicy"
	case OriginPredefined:
		return "Predefined"
	case OriginMetadata:
		return "Metadata"
	default:
		return "Unknown"
	}
}

// TrustLevel is a bitset describing how much a source is trusted.
type TrustLevel uint32

const (
	TrustNone        TrustLevel = 0
	TrustTrusted     TrustLevel = 1 << 0
	TrustStoreOrigin TrustLevel = 1 << 1
)

// Has reports whether every bit of flag is set.
func (t TrustLevel) Has(flag TrustLevel) bool {
	return t&flag == flag
}

func (t TrustLevel) String() string {
	if t == TrustNone {
		return "None"
	}
	var parts []string
	if t.Has(TrustTrusted) {
		parts = append(parts, "Trusted")
	}
	if t.Has(TrustStoreOrigin) {
		parts = append(parts, "StoreOrigin")
	}
	return strings.Join(parts, "|")
}

// Details describes one configured source.
type Details struct {
	Name           string
	Type           string
	Arg            string
	Data           string
	Identifier     string
	Origin         Origin
	LastUpdateTime time.Time
	TrustLevel     TrustLevel
}

// SameTypeAndArg reports whether d and other point at the same backend location.
func (d Details) SameTypeAndArg(other Details) bool {
	return strings.EqualFold(d.Type, other.Type) && strings.EqualFold(d.Arg, other.Arg)
}

// Source is a searchable package repository.
type Source interface {
	Details() Details
	Identifier() string
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
	// Close releases the backend handle. Versions obtained from the source
	// fail with ErrNotValidState when asked for their source afterwards.
	Close() error
}

// Agreement is one term a source asks its users to accept.
type Agreement struct {
	Label string
	Text  string
	URL   string
}

// Agreements identify the terms of a source. Fields is a bitmask of the
// agreement fields present, so a source changing what it shows invalidates
// an earlier acceptance.
type Agreements struct {
	Identifier string
	Fields     int
	Entries    []Agreement
}

// IsEmpty reports whether there is nothing to accept.
func (a Agreements) IsEmpty() bool {
	return a.Identifier == "" && a.Fields == 0
}

// AgreementSource is implemented by sources that may require agreements.
type AgreementSource interface {
	SourceAgreements(ctx context.Context) (Agreements, error)
}
