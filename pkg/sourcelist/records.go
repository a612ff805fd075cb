package sourcelist

import (
	"strings"
	"time"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/source"
	"gopkg.in/yaml.v3"
)

type userSourcesDocument struct {
	Sources []userSourceRecord `yaml:"Sources"`
}

type userSourceRecord struct {
	Name        string `yaml:"Name"`
	Type        string `yaml:"Type,omitempty"`
	Arg         string `yaml:"Arg,omitempty"`
	Data        string `yaml:"Data,omitempty"`
	Identifier  string `yaml:"Identifier,omitempty"`
	IsTombstone bool   `yaml:"IsTombstone"`
}

type metadataDocument struct {
	Sources []metadataRecord `yaml:"Sources"`
}

type metadataRecord struct {
	Name                         string `yaml:"Name"`
	LastUpdate                   int64  `yaml:"LastUpdate"`
	AcceptedAgreementsIdentifier string `yaml:"AcceptedAgreementsIdentifier,omitempty"`
	AcceptedAgreementFields      int    `yaml:"AcceptedAgreementFields,omitempty"`
}

func decode(data []byte, out interface{}, stream string) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(errors.ErrSourcesInvalid, "%s: %v", stream, err)
	}
	return nil
}

func parseUserSources(data []byte, stream string) ([]*DetailsInternal, error) {
	var doc userSourcesDocument
	if err := decode(data, &doc, stream); err != nil {
		return nil, err
	}
	out := make([]*DetailsInternal, 0, len(doc.Sources))
	for i, r := range doc.Sources {
		if r.Name == "" {
			return nil, errors.Wrapf(errors.ErrSourcesInvalid, "%s: source %d has no name", stream, i)
		}
		if !r.IsTombstone && r.Type == "" {
			return nil, errors.Wrapf(errors.ErrSourcesInvalid, "%s: source %s has no type", stream, r.Name)
		}
		out = append(out, &DetailsInternal{
			Details: source.Details{
				Name:       r.Name,
				Type:       r.Type,
				Arg:        r.Arg,
				Data:       r.Data,
				Identifier: r.Identifier,
				Origin:     source.OriginUser,
			},
			IsTombstone: r.IsTombstone,
			IsVisible:   true,
		})
	}
	return out, nil
}

func serializeUserSources(list []*DetailsInternal) ([]byte, error) {
	var doc userSourcesDocument
	for _, d := range list {
		if d.Origin != source.OriginUser {
			continue
		}
		doc.Sources = append(doc.Sources, userSourceRecord{
			Name:        d.Name,
			Type:        d.Type,
			Arg:         d.Arg,
			Data:        d.Data,
			Identifier:  d.Identifier,
			IsTombstone: d.IsTombstone,
		})
	}
	return yaml.Marshal(&doc)
}

func parseMetadata(data []byte, stream string) ([]metadataRecord, error) {
	var doc metadataDocument
	if err := decode(data, &doc, stream); err != nil {
		return nil, err
	}
	for i, r := range doc.Sources {
		if r.Name == "" {
			return nil, errors.Wrapf(errors.ErrSourcesInvalid, "%s: metadata entry %d has no name", stream, i)
		}
	}
	return doc.Sources, nil
}

func serializeMetadata(list []*DetailsInternal) ([]byte, error) {
	var doc metadataDocument
	for _, d := range list {
		if d.IsTombstone {
			continue
		}
		r := metadataRecord{
			Name:                         d.Name,
			AcceptedAgreementsIdentifier: d.AcceptedAgreementsIdentifier,
			AcceptedAgreementFields:      d.AcceptedAgreementFields,
		}
		if !d.LastUpdateTime.IsZero() {
			r.LastUpdate = d.LastUpdateTime.Unix()
		}
		if r.LastUpdate == 0 && r.AcceptedAgreementsIdentifier == "" && r.AcceptedAgreementFields == 0 {
			continue
		}
		doc.Sources = append(doc.Sources, r)
	}
	return yaml.Marshal(&doc)
}

func (r metadataRecord) apply(d *DetailsInternal) {
	d.LastUpdateTime = time.Time{}
	if r.LastUpdate != 0 {
		d.LastUpdateTime = time.Unix(r.LastUpdate, 0)
	}
	d.AcceptedAgreementsIdentifier = r.AcceptedAgreementsIdentifier
	d.AcceptedAgreementFields = r.AcceptedAgreementFields
}
