// Package policy decides whether user-managed sources are permitted under
// the administrator's source policies.
package policy

import (
	"strings"

	"github.com/glorpus-work/repokit/pkg/source"
)

// Policy names one source policy. The zero value means no policy applies.
type Policy string

const (
	None                    Policy = ""
	DefaultSource           Policy = "DefaultSource"
	MSStoreSource           Policy = "MSStoreSource"
	DesktopFrameworksSource Policy = "DesktopFrameworksSource"
	AdditionalSources       Policy = "AdditionalSources"
	AllowedSources          Policy = "AllowedSources"
)

// State is the configured state of a policy.
type State int

const (
	NotConfigured State = iota
	Enabled
	Disabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "Enabled"
	case Disabled:
		return "Disabled"
	default:
		return "NotConfigured"
	}
}

// SourceFromPolicy is a source listed by the AdditionalSources or
// AllowedSources policy.
type SourceFromPolicy struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Arg        string   `yaml:"arg"`
	Data       string   `yaml:"data,omitempty"`
	Identifier string   `yaml:"identifier,omitempty"`
	TrustLevel []string `yaml:"trust_level,omitempty"`
}

// Details converts the entry into GroupPolicy-origin source details.
func (s SourceFromPolicy) Details() source.Details {
	d := source.Details{
		Name:       s.Name,
		Type:       s.Type,
		Arg:        s.Arg,
		Data:       s.Data,
		Identifier: s.Identifier,
		Origin:     source.OriginGroupPolicy,
	}
	if d.Type == "" {
		d.Type = source.DefaultType
	}
	for _, t := range s.TrustLevel {
		switch strings.ToLower(t) {
		case "trusted":
			d.TrustLevel |= source.TrustTrusted
		case "storeorigin":
			d.TrustLevel |= source.TrustStoreOrigin
		}
	}
	return d
}

// Provider exposes the current policy configuration.
type Provider interface {
	State(p Policy) State
	Sources(p Policy) []SourceFromPolicy
}

// ForWellKnownSource returns the policy gating a built-in source.
func ForWellKnownSource(s source.WellKnownSource) Policy {
	switch s {
	case source.WellKnownWinGet:
		return DefaultSource
	case source.WellKnownMSStore:
		return MSStoreSource
	default:
		return DesktopFrameworksSource
	}
}

// IsWellKnownSourceEnabled reports whether s may be used: its policy is not
// explicitly disabled.
func IsWellKnownSourceEnabled(p Provider, s source.WellKnownSource) bool {
	return p.State(ForWellKnownSource(s)) != Disabled
}

// IsWellKnownSourceExplicitlyRequired reports whether the policy for s is
// explicitly enabled, which makes the source mandatory.
func IsWellKnownSourceExplicitlyRequired(p Provider, s source.WellKnownSource) bool {
	return p.State(ForWellKnownSource(s)) == Enabled
}

// GetPolicyBlockingUserSource returns the policy that forbids adding (or
// tombstoning) the described user source, or None when it is allowed.
func GetPolicyBlockingUserSource(p Provider, name, sourceType, arg string, isTombstone bool) Policy {
	if isTombstone {
		for _, ws := range source.WellKnownSources {
			details, _ := source.WellKnownDetails(ws)
			if name == details.Name && IsWellKnownSourceExplicitlyRequired(p, ws) {
				return ForWellKnownSource(ws)
			}
		}
		return None
	}

	if sourceType == "" {
		sourceType = source.DefaultType
	}

	// Re-adding a built-in source under any name is decided by its own policy.
	for _, ws := range source.WellKnownSources {
		details, _ := source.WellKnownDetails(ws)
		if strings.EqualFold(sourceType, details.Type) && strings.EqualFold(arg, details.Arg) {
			if IsWellKnownSourceEnabled(p, ws) {
				return None
			}
			return ForWellKnownSource(ws)
		}
	}

	// Shadowing a mandatory built-in source with a different backend.
	for _, ws := range source.WellKnownSources {
		details, _ := source.WellKnownDetails(ws)
		if strings.EqualFold(name, details.Name) && IsWellKnownSourceExplicitlyRequired(p, ws) {
			return ForWellKnownSource(ws)
		}
	}

	switch p.State(AllowedSources) {
	case Disabled:
		return AllowedSources
	case Enabled:
		for _, allowed := range p.Sources(AllowedSources) {
			if allowed.Name == name && strings.EqualFold(allowed.Type, sourceType) && strings.EqualFold(allowed.Arg, arg) {
				return None
			}
		}
		return AllowedSources
	}

	return None
}
