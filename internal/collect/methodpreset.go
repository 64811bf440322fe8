package collect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MethodPreset is the on-disk shape of an operator-authored collection
// method preset (SPEC_FULL.md §7): a named, reusable alternative to
// spelling out --collection-methods on every invocation.
type MethodPreset struct {
	Name    string   `yaml:"name"`
	Methods []string `yaml:"methods"`
}

// LoadMethodPreset reads and parses a YAML preset file, returning the
// method name tokens it lists for ParseMethodNames to resolve.
func LoadMethodPreset(path string) (MethodPreset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MethodPreset{}, fmt.Errorf("reading method preset %q: %w", path, err)
	}

	var preset MethodPreset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return MethodPreset{}, fmt.Errorf("parsing method preset %q: %w", path, err)
	}
	if len(preset.Methods) == 0 {
		return MethodPreset{}, fmt.Errorf("method preset %q names no methods", path)
	}
	return preset, nil
}
