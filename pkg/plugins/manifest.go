package plugins

import (
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/harness/pkg/version"
)

var nameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidateManifest performs basic validation on a plugin manifest
func ValidateManifest(name string, manifest *Manifest) error {
	if manifest == nil {
		return Errorf(KindBadManifest, name, "manifest is nil")
	}

	if !manifest.ABIVersion.CompatibleWith(ABIVersion) {
		return Errorf(KindAbiMismatch, name, "plugin ABI %s, harness ABI %s", manifest.ABIVersion, ABIVersion)
	}

	if manifest.Arch != "" && manifest.Arch != Arch() {
		return Errorf(KindAbiMismatch, name, "plugin built for %s, harness runs on %s", manifest.Arch, Arch())
	}

	if _, err := manifest.Designators(); err != nil {
		return &Error{Kind: KindBadManifest, Plugin: name, Err: err}
	}

	for _, conflict := range manifest.Conflicts {
		if !nameRegex.MatchString(conflict) {
			return Errorf(KindBadManifest, name, "invalid conflict entry %q", conflict)
		}
	}

	return nil
}

// Designators parses the requires entries
func (m *Manifest) Designators() ([]version.Designator, error) {
	result := make([]version.Designator, 0, len(m.Requires))
	for _, entry := range m.Requires {
		d, err := version.ParseDesignator(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid requires entry %q: %w", entry, err)
		}
		result = append(result, d)
	}
	return result, nil
}

// manifestInfo is the YAML view printed by "harness -info"
type manifestInfo struct {
	Name     string   `yaml:"name"`
	Location string   `yaml:"location"`
	Manifest `yaml:",inline"`
	Hooks    []string `yaml:"hooks,omitempty"`
}

// WriteManifest writes the manifest of a loaded module as YAML
func WriteManifest(w io.Writer, module *Module) error {
	info := manifestInfo{
		Name:     module.Name,
		Location: module.Location,
		Manifest: *module.Manifest,
	}

	init, deinit, start := Hooks(module.Plugin)
	if init {
		info.Hooks = append(info.Hooks, "init")
	}
	if deinit {
		info.Hooks = append(info.Hooks, "deinit")
	}
	if start {
		info.Hooks = append(info.Hooks, "start")
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(info); err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return enc.Close()
}
