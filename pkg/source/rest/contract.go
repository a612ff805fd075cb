package rest

import (
	"strings"

	"github.com/glorpus-work/repokit/pkg/manifest"
	"github.com/glorpus-work/repokit/pkg/source"
)

// Wire types of the REST catalog. Only the parts the source consumes are modeled.

type informationResponse struct {
	Data Information `json:"Data"`
}

// Information is what a REST catalog reports about itself.
type Information struct {
	SourceIdentifier              string           `json:"SourceIdentifier"`
	ServerSupportedVersions       []string         `json:"ServerSupportedVersions"`
	SourceAgreements              *SourceAgreement `json:"SourceAgreements,omitempty"`
	UnsupportedPackageMatchFields []string         `json:"UnsupportedPackageMatchFields,omitempty"`
	RequiredPackageMatchFields    []string         `json:"RequiredPackageMatchFields,omitempty"`
	UnsupportedQueryParameters    []string         `json:"UnsupportedQueryParameters,omitempty"`
	RequiredQueryParameters       []string         `json:"RequiredQueryParameters,omitempty"`
}

// SourceAgreement is the set of agreements a user must accept to use the catalog.
type SourceAgreement struct {
	AgreementsIdentifier string      `json:"AgreementsIdentifier"`
	Agreements           []Agreement `json:"Agreements"`
}

// Agreement is one agreement entry.
type Agreement struct {
	AgreementLabel string `json:"AgreementLabel,omitempty"`
	Agreement      string `json:"Agreement,omitempty"`
	AgreementURL   string `json:"AgreementUrl,omitempty"`
}

type requestMatch struct {
	KeyWord   string `json:"KeyWord"`
	MatchType string `json:"MatchType"`
}

type searchFilter struct {
	PackageMatchField string       `json:"PackageMatchField"`
	RequestMatch      requestMatch `json:"RequestMatch"`
}

type searchRequest struct {
	MaximumResults    int            `json:"MaximumResults,omitempty"`
	FetchAllManifests bool           `json:"FetchAllManifests"`
	Query             *requestMatch  `json:"Query,omitempty"`
	Inclusions        []searchFilter `json:"Inclusions,omitempty"`
	Filters           []searchFilter `json:"Filters,omitempty"`
}

type searchResponse struct {
	Data              []searchPackage `json:"Data"`
	ContinuationToken string          `json:"ContinuationToken,omitempty"`
}

type searchPackage struct {
	PackageIdentifier string          `json:"PackageIdentifier"`
	PackageName       string          `json:"PackageName"`
	Publisher         string          `json:"Publisher"`
	Versions          []searchVersion `json:"Versions"`
}

type searchVersion struct {
	PackageVersion     string   `json:"PackageVersion"`
	Channel            string   `json:"Channel,omitempty"`
	PackageFamilyNames []string `json:"PackageFamilyNames,omitempty"`
	ProductCodes       []string `json:"ProductCodes,omitempty"`
}

type manifestResponse struct {
	Data *packageManifest `json:"Data"`
}

type packageManifest struct {
	PackageIdentifier string            `json:"PackageIdentifier"`
	Versions          []manifestVersion `json:"Versions"`
}

type manifestVersion struct {
	PackageVersion string               `json:"PackageVersion"`
	Channel        string               `json:"Channel,omitempty"`
	DefaultLocale  manifestLocale       `json:"DefaultLocale"`
	Installers     []manifest.Installer `json:"Installers,omitempty"`
	Commands       []string             `json:"Commands,omitempty"`
}

type manifestLocale struct {
	PackageLocale    string   `json:"PackageLocale,omitempty"`
	PackageName      string   `json:"PackageName"`
	Publisher        string   `json:"Publisher"`
	Moniker          string   `json:"Moniker,omitempty"`
	ShortDescription string   `json:"ShortDescription,omitempty"`
	License          string   `json:"License,omitempty"`
	Tags             []string `json:"Tags,omitempty"`
}

func (v manifestVersion) toManifest(id string) *manifest.Manifest {
	return &manifest.Manifest{
		PackageIdentifier: id,
		PackageVersion:    v.PackageVersion,
		Channel:           v.Channel,
		PackageLocale:     v.DefaultLocale.PackageLocale,
		PackageName:       v.DefaultLocale.PackageName,
		Publisher:         v.DefaultLocale.Publisher,
		Moniker:           v.DefaultLocale.Moniker,
		ShortDescription:  v.DefaultLocale.ShortDescription,
		License:           v.DefaultLocale.License,
		Tags:              v.DefaultLocale.Tags,
		Commands:          v.Commands,
		Installers:        v.Installers,
	}
}

var wireFields = map[source.MatchField]string{
	source.FieldID:                         "PackageIdentifier",
	source.FieldName:                       "PackageName",
	source.FieldMoniker:                    "Moniker",
	source.FieldCommand:                    "Command",
	source.FieldTag:                        "Tag",
	source.FieldPackageFamilyName:          "PackageFamilyName",
	source.FieldProductCode:                "ProductCode",
	source.FieldNormalizedNameAndPublisher: "NormalizedPackageNameAndPublisher",
}

func wireField(f source.MatchField) string {
	return wireFields[f]
}

func fieldFromWire(s string) (source.MatchField, bool) {
	for f, name := range wireFields {
		if strings.EqualFold(name, s) {
			return f, true
		}
	}
	return 0, false
}

func toWireFilters(filters []source.PackageMatchFilter) []searchFilter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]searchFilter, 0, len(filters))
	for _, f := range filters {
		out = append(out, searchFilter{
			PackageMatchField: wireField(f.Field),
			RequestMatch:      requestMatch{KeyWord: f.Value, MatchType: f.Type.String()},
		})
	}
	return out
}

// Agreement field flags, as persisted in AcceptedAgreementFields.
const (
	AgreementFieldLabel = 1 << iota
	AgreementFieldText
	AgreementFieldURL
)

// Fields returns the bitmask of agreement fields present in a.
func (a *SourceAgreement) Fields() int {
	if a == nil {
		return 0
	}
	fields := 0
	for _, agreement := range a.Agreements {
		if agreement.AgreementLabel != "" {
			fields |= AgreementFieldLabel
		}
		if agreement.Agreement != "" {
			fields |= AgreementFieldText
		}
		if agreement.AgreementURL != "" {
			fields |= AgreementFieldURL
		}
	}
	return fields
}
