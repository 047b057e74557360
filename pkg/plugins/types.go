package plugins

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/harness/pkg/config"
	"github.com/platinummonkey/harness/pkg/observability"
	"github.com/platinummonkey/harness/pkg/version"
)

// ABI is a plugin interface version: major in the high byte, minor in the low byte
type ABI uint16

// ABIVersion is the interface version this harness implements
const ABIVersion ABI = 0x0100

// Major returns the major byte
func (a ABI) Major() int { return int(a >> 8) }

// Minor returns the minor byte
func (a ABI) Minor() int { return int(a & 0xff) }

func (a ABI) String() string {
	return fmt.Sprintf("%d.%d", a.Major(), a.Minor())
}

// MarshalYAML renders the ABI as "major.minor"
func (a ABI) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

// CompatibleWith reports whether a plugin built against a can be loaded by a
// harness implementing host: same major, and no newer minor than the host.
func (a ABI) CompatibleWith(host ABI) bool {
	return a.Major() == host.Major() && a.Minor() <= host.Minor()
}

// Arch returns the architecture tag of the running harness
func Arch() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// Plugin is the base interface all plugins must implement.
// Lifecycle hooks are optional and discovered through Initializer,
// Deinitializer and Starter.
type Plugin interface {
	Manifest() *Manifest
}

// Manifest describes a plugin module. It is shared, read-only, by every
// instance of the module.
type Manifest struct {
	ABIVersion ABI             `yaml:"abi_version"`
	Arch       string          `yaml:"arch,omitempty"` // GOOS/GOARCH, empty for any
	Brief      string          `yaml:"brief"`
	Version    version.Version `yaml:"version"`
	Requires   []string        `yaml:"requires,omitempty"`  // designators, e.g. "magic (>>1.0)"
	Conflicts  []string        `yaml:"conflicts,omitempty"` // plugin names
}

// Initializer is implemented by plugins with one-time module setup.
// Init runs once per module, before any instance starts.
type Initializer interface {
	Init(env *Env) error
}

// Deinitializer is implemented by plugins with module teardown
type Deinitializer interface {
	Deinit(env *Env) error
}

// Starter is implemented by plugins with a long-running service entry point.
// Start runs once per instance in its own goroutine. The harness never
// cancels ctx; stopping is up to the plugin and its external caller.
type Starter interface {
	Start(ctx context.Context, rt *Runtime) error
}

// Env is handed to Init and Deinit
type Env struct {
	// Name is the plugin (section) name of the module
	Name string

	// Program is the program identity from the DEFAULT section
	Program string

	// Config is the harness configuration
	Config *config.Store

	// Sink is the harness log sink. Init hooks may redirect its output.
	Sink *observability.Sink

	// Log carries the plugin and run fields
	Log *logrus.Entry
}

// Sections returns the configuration sections declared for the module
func (e *Env) Sections() []*config.Section {
	if e.Config == nil {
		return nil
	}
	return e.Config.Sections(e.Name)
}

// Defaults returns the DEFAULT section
func (e *Env) Defaults() *config.Section {
	if e.Config == nil {
		return nil
	}
	return e.Config.Defaults()
}

// Runtime is handed to Start
type Runtime struct {
	Name    string
	Key     string
	Section *config.Section
	Log     *logrus.Entry
}

// Hooks reports which lifecycle hooks a plugin implements
func Hooks(p Plugin) (init, deinit, start bool) {
	_, init = p.(Initializer)
	_, deinit = p.(Deinitializer)
	_, start = p.(Starter)
	return
}
