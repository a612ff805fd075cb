// Package manifest parses package manifests served by index and REST sources.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"github.com/glorpus-work/repokit/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest describes one version of a package.
type Manifest struct {
	ManifestVersion   string `yaml:"ManifestVersion,omitempty" json:"ManifestVersion,omitempty"`
	PackageIdentifier string `yaml:"PackageIdentifier" json:"PackageIdentifier"`
	PackageVersion    string `yaml:"PackageVersion" json:"PackageVersion"`
	Channel           string `yaml:"Channel,omitempty" json:"Channel,omitempty"`
	PackageLocale     string `yaml:"PackageLocale,omitempty" json:"PackageLocale,omitempty"`

	// Default localization.
	PackageName      string   `yaml:"PackageName" json:"PackageName"`
	Publisher        string   `yaml:"Publisher" json:"Publisher"`
	Moniker          string   `yaml:"Moniker,omitempty" json:"Moniker,omitempty"`
	ShortDescription string   `yaml:"ShortDescription,omitempty" json:"ShortDescription,omitempty"`
	License          string   `yaml:"License,omitempty" json:"License,omitempty"`
	Tags             []string `yaml:"Tags,omitempty" json:"Tags,omitempty"`

	Commands   []string    `yaml:"Commands,omitempty" json:"Commands,omitempty"`
	Installers []Installer `yaml:"Installers,omitempty" json:"Installers,omitempty"`
}

// Installer is a single installer entry of a manifest.
type Installer struct {
	Architecture      string `yaml:"Architecture,omitempty" json:"Architecture,omitempty"`
	InstallerType     string `yaml:"InstallerType,omitempty" json:"InstallerType,omitempty"`
	InstallerURL      string `yaml:"InstallerUrl,omitempty" json:"InstallerUrl,omitempty"`
	InstallerSha256   string `yaml:"InstallerSha256,omitempty" json:"InstallerSha256,omitempty"`
	ProductCode       string `yaml:"ProductCode,omitempty" json:"ProductCode,omitempty"`
	PackageFamilyName string `yaml:"PackageFamilyName,omitempty" json:"PackageFamilyName,omitempty"`
}

// Parse decodes and validates a YAML manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrManifestInvalid, err.Error())
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	return m, nil
}

// Validate checks the fields every source relies on.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.PackageIdentifier) == "" {
		return fmt.Errorf("%w: PackageIdentifier is required", errors.ErrManifestInvalid)
	}
	if strings.TrimSpace(m.PackageVersion) == "" {
		return fmt.Errorf("%w: PackageVersion is required for %s", errors.ErrManifestInvalid, m.PackageIdentifier)
	}
	return nil
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// ProductCodes returns the distinct non-empty product codes of all installers.
func (m *Manifest) ProductCodes() []string {
	return m.collect(func(i Installer) string { return i.ProductCode })
}

// PackageFamilyNames returns the distinct non-empty family names of all installers.
func (m *Manifest) PackageFamilyNames() []string {
	return m.collect(func(i Installer) string { return i.PackageFamilyName })
}

func (m *Manifest) collect(get func(Installer) string) []string {
	var out []string
	seen := map[string]bool{}
	for _, inst := range m.Installers {
		v := get(inst)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
