package sourcelist

import (
	"strings"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/policy"
	"github.com/glorpus-work/repokit/pkg/source"
)

// mergeOrder is the priority order of origins; earlier origins win name conflicts.
var mergeOrder = []source.Origin{source.OriginGroupPolicy, source.OriginUser, source.OriginDefault}

func (l *SourceList) reload() error {
	var merged []*DetailsInternal
	for _, origin := range mergeOrder {
		sources, err := l.getSourcesByOrigin(origin)
		if err != nil {
			return err
		}
		merged = overwriteSourceList(merged, sources)
	}
	l.sources = merged
	return l.reloadMetadata()
}

func (l *SourceList) reloadMetadata() error {
	data, version, err := l.opts.Metadata.Read()
	if err != nil {
		return err
	}
	records, err := parseMetadata(data, l.opts.Metadata.Name())
	if err != nil {
		return err
	}
	l.sources = overwriteMetadata(l.sources, records)
	l.metadataVersion = version
	return nil
}

func (l *SourceList) getSourcesByOrigin(origin source.Origin) ([]*DetailsInternal, error) {
	switch origin {
	case source.OriginDefault:
		return getWellKnownSources(l.opts.Policy), nil

	case source.OriginGroupPolicy:
		var out []*DetailsInternal
		for _, s := range l.opts.Policy.Sources(policy.AdditionalSources) {
			out = append(out, &DetailsInternal{Details: s.Details(), IsVisible: true})
		}
		return out, nil

	case source.OriginUser:
		data, version, err := l.opts.UserSources.Read()
		if err != nil {
			return nil, err
		}
		parsed, err := parseUserSources(data, l.opts.UserSources.Name())
		if err != nil {
			return nil, err
		}
		l.userVersion = version

		out := make([]*DetailsInternal, 0, len(parsed))
		for _, d := range parsed {
			blocking := policy.GetPolicyBlockingUserSource(l.opts.Policy, d.Name, d.Type, d.Arg, d.IsTombstone)
			if blocking != policy.None {
				logger.Warn("Ignoring user source blocked by policy", logger.Fields{
					"source": d.Name, "policy": string(blocking), "tombstone": d.IsTombstone,
				})
				continue
			}
			out = append(out, d)
		}
		return out, nil

	default:
		return nil, nil
	}
}

// getWellKnownSources returns the built-in sources whose policy allows them.
func getWellKnownSources(p policy.Provider) []*DetailsInternal {
	var out []*DetailsInternal
	for _, ws := range source.WellKnownSources {
		if !policy.IsWellKnownSourceEnabled(p, ws) {
			logger.Debug("Built-in source disabled by policy", logger.Fields{"policy": string(policy.ForWellKnownSource(ws))})
			continue
		}
		details, visible := source.WellKnownDetails(ws)
		out = append(out, &DetailsInternal{Details: details, IsVisible: visible})
	}
	return out
}

// overwriteSourceList appends incoming sources whose name is not already
// taken. Within one origin the first record of a name wins as well.
func overwriteSourceList(kept, incoming []*DetailsInternal) []*DetailsInternal {
	for _, d := range incoming {
		var conflict *DetailsInternal
		for _, k := range kept {
			if strings.EqualFold(k.Name, d.Name) {
				conflict = k
				break
			}
		}
		if conflict == nil {
			kept = append(kept, d)
			continue
		}
		fields := logger.Fields{
			"source":      d.Name,
			"origin":      d.Origin.String(),
			"kept_origin": conflict.Origin.String(),
		}
		if conflict.Origin == d.Origin {
			logger.Warn("Dropping duplicate source name within origin", fields)
		} else {
			logger.Debug("Source shadowed by higher priority origin", fields)
		}
	}
	return kept
}

// overwriteMetadata overlays metadata records by name. Records without a
// matching source are kept as metadata-only entries so they survive writes.
func overwriteMetadata(sources []*DetailsInternal, records []metadataRecord) []*DetailsInternal {
	for _, d := range sources {
		if d.Origin != source.OriginMetadata {
			metadataRecord{}.apply(d)
		}
	}
	out := sources[:0]
	for _, d := range sources {
		if d.Origin != source.OriginMetadata {
			out = append(out, d)
		}
	}

	for _, r := range records {
		var target *DetailsInternal
		for _, d := range out {
			if strings.EqualFold(d.Name, r.Name) {
				target = d
				break
			}
		}
		switch {
		case target == nil:
			target = &DetailsInternal{Details: source.Details{Name: r.Name, Origin: source.OriginMetadata}}
			out = append(out, target)
		case target.IsTombstone:
			continue
		}
		r.apply(target)
	}
	return out
}
