// Package plugins defines the plugin module contract and locates, opens and
// validates modules.
//
// # Overview
//
// A module exports a value implementing Plugin. Its Manifest declares the
// ABI version it was built for, an optional architecture tag, its version,
// and the plugins it requires or conflicts with. The lifecycle hooks are
// optional interfaces:
//
//	type Initializer interface {
//		Init(env *Env) error
//	}
//
//	type Deinitializer interface {
//		Deinit(env *Env) error
//	}
//
//	type Starter interface {
//		Start(ctx context.Context, rt *Runtime) error
//	}
//
// Init and Deinit run once per module. Start runs once per configured
// section, in its own goroutine.
//
// # Module Sources
//
// Catalog: modules registered at compile time, usually from an init func
//
//	func init() {
//		plugins.MustRegister("magic", func() plugins.Plugin { return &Magic{} })
//	}
//
// Shared objects: <dir>/<library>.so on the registry search path, built
// with -buildmode=plugin and exporting a symbol named Plugin.
//
// # Usage Example
//
//	registry := plugins.NewRegistry([]string{"/usr/lib/harness"}, logger)
//
//	module, err := registry.Load("magic", "magic")
//	if errors.Is(err, plugins.ErrAbiMismatch) {
//		log.Fatal(err)
//	}
//	plugins.WriteManifest(os.Stdout, module)
//
// # Related Packages
//
//   - pkg/harness: loads, starts and joins plugin instances
//   - pkg/dependencies: resolves requires and conflicts
//   - pkg/plugins/builtin: the logger and keepalive plugins
package plugins
