package correlation

import (
	"context"
	"fmt"
	"os"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/source"
)

// scriptVars are the variables a correlation script can read. The script
// reports its decision through the boolean "match" and may set "err".
var scriptVars = []string{
	"installed_id", "installed_name", "installed_publisher", "installed_version", "installed_source",
	"available_id", "available_name", "available_publisher", "available_source",
}

// Script runs a Tengo script for every candidate pair. The script is compiled
// once and each evaluation runs on a clone of the compiled program.
type Script struct {
	compiled *tengo.Compiled
}

var _ Correlator = (*Script)(nil)

// NewScript compiles src.
func NewScript(src string) (*Script, error) {
	s := tengo.NewScript([]byte(src))
	s.SetImports(stdlib.GetModuleMap("fmt", "text"))

	for _, name := range scriptVars {
		if err := s.Add(name, ""); err != nil {
			return nil, fmt.Errorf("failed to add %s to script: %w", name, err)
		}
	}
	if err := s.Add("match", false); err != nil {
		return nil, fmt.Errorf("failed to add match to script: %w", err)
	}
	if err := s.Add("err", ""); err != nil {
		return nil, fmt.Errorf("failed to add err to script: %w", err)
	}

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrCorrelationScript, err)
	}
	return &Script{compiled: compiled}, nil
}

// LoadScript compiles the script stored at path.
func LoadScript(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read correlation script %s", path)
	}
	return NewScript(string(src))
}

func (s *Script) Correlate(ctx context.Context, installed, available source.Package) (bool, error) {
	run := s.compiled.Clone()

	vars := map[string]string{
		"installed_id":     installed.Identity().PackageID,
		"available_id":     available.Identity().PackageID,
		"available_source": available.Identity().SourceIdentifier,
	}
	if v := installed.InstalledVersion(); v != nil {
		vars["installed_name"] = v.Property(source.VersionPropertyName)
		vars["installed_publisher"] = v.Property(source.VersionPropertyPublisher)
		vars["installed_version"] = v.Property(source.VersionPropertyVersion)
		vars["installed_source"] = v.Property(source.VersionPropertySourceIdentifier)
	}
	if v := available.LatestAvailableVersion(); v != nil {
		vars["available_name"] = v.Property(source.VersionPropertyName)
		vars["available_publisher"] = v.Property(source.VersionPropertyPublisher)
	}
	for name, value := range vars {
		if err := run.Set(name, value); err != nil {
			return false, fmt.Errorf("failed to set %s: %w", name, err)
		}
	}

	if err := run.RunContext(ctx); err != nil {
		return false, fmt.Errorf("%w: %w", errors.ErrCorrelationScript, err)
	}
	if msg := run.Get("err").String(); msg != "" {
		return false, fmt.Errorf("%w: %s", errors.ErrCorrelationScript, msg)
	}
	return run.Get("match").Bool(), nil
}
