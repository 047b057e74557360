package dependencies

import (
	"strings"

	"github.com/platinummonkey/harness/pkg/config"
	"github.com/platinummonkey/harness/pkg/plugins"
)

// Modules opens plugin modules by plugin name
type Modules interface {
	Module(name string) (*plugins.Module, error)
}

// ModulesFunc adapts a function to Modules
type ModulesFunc func(name string) (*plugins.Module, error)

// Module calls f(name)
func (f ModulesFunc) Module(name string) (*plugins.Module, error) {
	return f(name)
}

// Sections reports whether a plugin name has configuration.
// *config.Store implements it.
type Sections interface {
	Has(name string) bool
}

// Resolver computes initialization orders over the requires constraints of
// plugin modules and tracks which modules are initialized in this run.
type Resolver struct {
	modules  Modules
	sections Sections
	graph    *DependencyGraph
	pending  map[string]*Node

	initialized map[string]*plugins.Module
	initOrder   []string
}

// NewResolver creates a resolver
func NewResolver(modules Modules, sections Sections) *Resolver {
	return &Resolver{
		modules:     modules,
		sections:    sections,
		graph:       NewDependencyGraph(),
		pending:     make(map[string]*Node),
		initialized: make(map[string]*plugins.Module),
	}
}

// Graph returns the graph of every committed module
func (r *Resolver) Graph() *DependencyGraph {
	return r.graph
}

// Resolve returns the modules needed by roots in initialization order: the
// post-order of a depth-first walk over requires, roots taken in the order
// given. Modules already initialized are included. The graph is not touched
// until the caller commits the result.
func (r *Resolver) Resolve(roots ...string) ([]*plugins.Module, error) {
	var (
		order     []*plugins.Module
		nodes     []*Node
		done      = make(map[string]*plugins.Module)
		resolving = make(map[string]bool)
		path      []string
	)

	var visit func(name, parent string) (*plugins.Module, error)
	visit = func(name, parent string) (*plugins.Module, error) {
		name = strings.ToLower(name)
		if resolving[name] {
			cycle := cyclePath(path, name)
			return nil, plugins.Errorf(plugins.KindCyclicDependency, cycle[0], "%s", strings.Join(cycle, " -> "))
		}
		if module, ok := done[name]; ok {
			return module, nil
		}

		if !r.sections.Has(name) {
			if parent == "" {
				return nil, &config.Error{Kind: config.KindNotFound, Section: name, Msg: "section does not exist"}
			}
			return nil, plugins.Errorf(plugins.KindMissingDependency, parent, "requires %s, which has no configuration section", name)
		}

		module, err := r.modules.Module(name)
		if err != nil {
			return nil, err
		}

		designators, err := module.Manifest.Designators()
		if err != nil {
			return nil, &plugins.Error{Kind: plugins.KindBadManifest, Plugin: name, Err: err}
		}

		resolving[name] = true
		path = append(path, name)

		node := &Node{
			Plugin:    name,
			Version:   module.Manifest.Version.String(),
			Conflicts: conflictsOf(module),
		}
		for _, d := range designators {
			dep, err := visit(d.Plugin, name)
			if err != nil {
				return nil, err
			}
			if !d.Satisfied(dep.Manifest.Version) {
				return nil, plugins.Errorf(plugins.KindVersionMismatch, name,
					"requires %s, found %s %s", d, d.Plugin, dep.Manifest.Version)
			}
			node.Dependencies = append(node.Dependencies, Dependency{
				Plugin:     d.Plugin,
				Constraint: d.ConstraintString(),
				Type:       "direct",
			})
		}

		path = path[:len(path)-1]
		delete(resolving, name)

		done[name] = module
		order = append(order, module)
		nodes = append(nodes, node)
		return module, nil
	}

	for _, root := range roots {
		if _, err := visit(root, ""); err != nil {
			return nil, err
		}
	}

	for _, node := range nodes {
		r.pending[node.Plugin] = node
	}
	return order, nil
}

// Commit adds the nodes of resolved modules to the graph. Call it once the
// modules are initialized, so a failed load leaves the graph as it was.
func (r *Resolver) Commit(modules []*plugins.Module) {
	for _, module := range modules {
		name := strings.ToLower(module.Name)
		if node, ok := r.pending[name]; ok {
			r.graph.AddNode(node)
			delete(r.pending, name)
		}
	}
}

// CheckConflicts fails when module conflicts with an initialized module, or
// an initialized module conflicts with it
func (r *Resolver) CheckConflicts(module *plugins.Module) error {
	self := strings.ToLower(module.Name)
	for _, conflict := range conflictsOf(module) {
		if _, ok := r.initialized[conflict]; ok && conflict != self {
			return plugins.Errorf(plugins.KindConflict, module.Name, "conflicts with initialized plugin %s", conflict)
		}
	}

	for _, name := range r.initOrder {
		for _, conflict := range conflictsOf(r.initialized[name]) {
			if conflict == self {
				return plugins.Errorf(plugins.KindConflict, module.Name, "initialized plugin %s conflicts with it", name)
			}
		}
	}
	return nil
}

// conflictsOf returns the conflicts entries of module, lowercased
func conflictsOf(module *plugins.Module) []string {
	if len(module.Manifest.Conflicts) == 0 {
		return nil
	}
	result := make([]string, len(module.Manifest.Conflicts))
	for i, c := range module.Manifest.Conflicts {
		result[i] = strings.ToLower(c)
	}
	return result
}

// MarkInitialized records a successful init
func (r *Resolver) MarkInitialized(module *plugins.Module) {
	if _, ok := r.initialized[module.Name]; ok {
		return
	}
	r.initialized[module.Name] = module
	r.initOrder = append(r.initOrder, module.Name)
}

// Unmark forgets an initialized module after its deinit
func (r *Resolver) Unmark(name string) {
	if _, ok := r.initialized[name]; !ok {
		return
	}
	delete(r.initialized, name)
	for i, n := range r.initOrder {
		if n == name {
			r.initOrder = append(r.initOrder[:i], r.initOrder[i+1:]...)
			break
		}
	}
}

// IsInitialized reports whether a module is initialized
func (r *Resolver) IsInitialized(name string) bool {
	_, ok := r.initialized[name]
	return ok
}

// Initialized returns initialized modules in initialization order
func (r *Resolver) Initialized() []*plugins.Module {
	result := make([]*plugins.Module, 0, len(r.initOrder))
	for _, name := range r.initOrder {
		result = append(result, r.initialized[name])
	}
	return result
}
