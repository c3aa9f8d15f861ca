package research

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Preset is a named, reusable research request. Presets let recurring
// objectives ("find the vendor list on this marketplace") run without
// retyping them.
type Preset struct {
	Name      string `yaml:"name"`
	Objective string `yaml:"objective"`
	Site      string `yaml:"site"`
	MaxPages  int    `yaml:"max_pages,omitempty"`
	Output    string `yaml:"output,omitempty"`
}

// LoadPresets reads presets from a YAML file.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "preset: read %s", path)
	}

	// The YAML has a top-level "presets" key
	var wrapper struct {
		Presets []Preset `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "preset: parse file")
	}

	for _, p := range wrapper.Presets {
		if p.Name == "" || p.Objective == "" || p.Site == "" {
			return nil, eris.Errorf("preset: %q is missing a name, objective, or site", p.Name)
		}
	}

	return wrapper.Presets, nil
}

// FindPreset returns the preset with the given name, case-insensitively.
func FindPreset(presets []Preset, name string) (*Preset, error) {
	for i := range presets {
		if strings.EqualFold(presets[i].Name, name) {
			return &presets[i], nil
		}
	}
	return nil, eris.Errorf("preset: %q not found", name)
}
