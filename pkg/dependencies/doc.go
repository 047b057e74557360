// Package dependencies resolves plugin requires constraints into an
// initialization order and records the resulting dependency graph.
//
// # Overview
//
// Resolver walks requires entries depth first. A plugin is placed in the
// order only after all of its dependencies, so the order is the post-order
// of the walk. Roots are taken in the order requested; nothing orders
// mutually independent plugins beyond that.
//
// Resolution fails with:
//
//   - config.ErrNotFound when a requested plugin has no section
//   - plugins.ErrMissingDependency when a required plugin has no section
//   - plugins.ErrCyclicDependency when a plugin is reached again while it
//     is still being resolved; the error names the cycle ("a -> b -> a")
//   - plugins.ErrVersionMismatch when a dependency's version violates the
//     designator, e.g. "magic (>>1.2.3)" against magic 1.2.3
//
// The resolver also owns the set of initialized modules of the run, which
// CheckConflicts consults in both directions before each init.
//
// # Usage Example
//
//	resolver := dependencies.NewResolver(dependencies.ModulesFunc(open), store)
//	order, err := resolver.Resolve("example")
//	for _, module := range order {
//		if err := resolver.CheckConflicts(module); err != nil {
//			return err
//		}
//		// init module
//		resolver.MarkInitialized(module)
//	}
//
// Render the graph:
//
//	resolver.Graph().WriteDOT(os.Stdout)
//
// # Related Packages
//
//   - pkg/harness: Drives the resolver from Loader.Load
//   - pkg/version: Designator parsing and matching
package dependencies
