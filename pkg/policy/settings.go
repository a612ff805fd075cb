package policy

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/glorpus-work/repokit/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Settings is a static Provider, usually loaded from a policy file:
//
//	policies:
//	  DefaultSource: enabled
//	  AllowedSources: enabled
//	additional_sources:
//	  - name: corp
//	    type: Microsoft.Rest
//	    arg: https://packages.corp.example/api
//	allowed_sources:
//	  - name: team
//	    type: Microsoft.PreIndexed.Package
//	    arg: https://team.example/cache
type Settings struct {
	States            map[Policy]State
	AdditionalSources []SourceFromPolicy
	AllowedSources    []SourceFromPolicy
}

var _ Provider = (*Settings)(nil)

type settingsFile struct {
	Policies          map[string]string  `yaml:"policies"`
	AdditionalSources []SourceFromPolicy `yaml:"additional_sources"`
	AllowedSources    []SourceFromPolicy `yaml:"allowed_sources"`
}

// NotConfiguredProvider returns a provider with every policy NotConfigured.
func NotConfiguredProvider() *Settings {
	return &Settings{States: map[Policy]State{}}
}

// State implements Provider.
func (s *Settings) State(p Policy) State {
	if s == nil {
		return NotConfigured
	}
	return s.States[p]
}

// Sources implements Provider. Lists are only returned while their policy
// is enabled.
func (s *Settings) Sources(p Policy) []SourceFromPolicy {
	if s == nil || s.State(p) != Enabled {
		return nil
	}
	switch p {
	case AdditionalSources:
		return s.AdditionalSources
	case AllowedSources:
		return s.AllowedSources
	default:
		return nil
	}
}

// LoadSettings reads a policy file. A missing file means no policy is configured.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return NotConfiguredProvider(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NotConfiguredProvider(), nil
		}
		return nil, errors.Wrapf(err, "failed to open policy file %s", path)
	}
	defer func() { _ = f.Close() }()
	return ParseSettings(f)
}

// ParseSettings decodes a policy document.
func ParseSettings(r io.Reader) (*Settings, error) {
	var doc settingsFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	s := NotConfiguredProvider()
	for name, value := range doc.Policies {
		p, ok := parsePolicy(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown policy %q", errors.ErrConfigValidation, name)
		}
		state, ok := parseState(value)
		if !ok {
			return nil, fmt.Errorf("%w: invalid state %q for policy %s", errors.ErrConfigValidation, value, name)
		}
		s.States[p] = state
	}
	s.AdditionalSources = doc.AdditionalSources
	s.AllowedSources = doc.AllowedSources
	return s, nil
}

func parsePolicy(name string) (Policy, bool) {
	for _, p := range []Policy{DefaultSource, MSStoreSource, DesktopFrameworksSource, AdditionalSources, AllowedSources} {
		if strings.EqualFold(string(p), name) {
			return p, true
		}
	}
	return None, false
}

func parseState(value string) (State, bool) {
	switch strings.ToLower(value) {
	case "enabled":
		return Enabled, true
	case "disabled":
		return Disabled, true
	case "", "notconfigured", "not_configured":
		return NotConfigured, true
	default:
		return NotConfigured, false
	}
}
