package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// DriverManifest is an optional YAML side-file listing additional
// driver-to-triple bindings beyond the built-in set (SPEC_FULL.md "Domain
// stack"). LoadManifest only parses, defaults and validates it; nothing in
// the repository loads a manifest or registers its entries. Grounded on the teacher's config.Config load/defaults/validate
// shape (its LoadConfig: read file, unmarshal, apply defaults, then
// validate with errors.Join over per-field checks).
type DriverManifest struct {
	// Drivers lists the (superclass, class, type) triples this manifest
	// wants bound, and the shared-object-style name used to look them up
	// in a registry.DriverTable built from compiled-in drivers.
	Drivers []DriverBinding `yaml:"drivers"`

	// DefaultHost names a host for bare record names (no "host:" prefix).
	// LoadManifest defaults it to "localhost"; no other code reads it, and
	// list-file parsing still rejects field ids without a host.
	DefaultHost string `yaml:"default_host"`

	// MaxStringLength is parsed from the manifest but not read by any
	// codec; string decoding uses each field's own MaxStringLen.
	MaxStringLength int `yaml:"max_string_length"`
}

// DriverBinding names one entry of DriverManifest.Drivers.
type DriverBinding struct {
	Name       string `yaml:"name"`
	Superclass string `yaml:"superclass"`
	Class      string `yaml:"class"`
	Type       string `yaml:"type"`
}

// LoadManifest reads, parses, defaults, and validates the YAML manifest at
// path.
func LoadManifest(path string) (*DriverManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mxerr.Wrapf("config", mxerr.FileIO, err, "reading manifest %q", path)
	}

	var m DriverManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, mxerr.Wrapf("config", mxerr.UnparseableString, err, "parsing manifest %q", path)
	}

	applyManifestDefaults(&m)

	if err := validateManifest(&m); err != nil {
		return nil, mxerr.Wrapf("config", mxerr.IllegalArgument, err, "validating manifest %q", path)
	}

	return &m, nil
}

func applyManifestDefaults(m *DriverManifest) {
	if m.DefaultHost == "" {
		m.DefaultHost = "localhost"
	}
}

func validateManifest(m *DriverManifest) error {
	var errs []error
	seen := make(map[string]bool, len(m.Drivers))
	for i, d := range m.Drivers {
		prefix := fmt.Sprintf("drivers[%d]", i)
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", prefix))
		}
		if d.Superclass == "" || d.Class == "" || d.Type == "" {
			errs = append(errs, fmt.Errorf("%s: superclass, class, and type are all required", prefix))
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate driver name %q", prefix, d.Name))
		}
		seen[d.Name] = true
	}
	return errors.Join(errs...)
}
