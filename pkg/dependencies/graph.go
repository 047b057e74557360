package dependencies

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Dependency represents a plugin dependency
type Dependency struct {
	Plugin     string `json:"plugin"`
	Constraint string `json:"constraint,omitempty"`
	Type       string `json:"type"` // "direct" or "transitive"
}

// DependencyGraph records the requires and conflicts edges of resolved plugins
type DependencyGraph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string][]string // plugin -> required plugins
}

// Node represents a plugin in the dependency graph
type Node struct {
	Plugin       string       `json:"plugin"`
	Version      string       `json:"version"`
	Dependencies []Dependency `json:"dependencies"`
	Conflicts    []string     `json:"conflicts,omitempty"`
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*Node),
		edges: make(map[string][]string),
	}
}

// AddNode adds a node to the graph, replacing any previous node of that name
func (g *DependencyGraph) AddNode(node *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes[node.Plugin] = node

	edges := make([]string, 0, len(node.Dependencies))
	for _, dep := range node.Dependencies {
		edges = append(edges, dep.Plugin)
	}
	g.edges[node.Plugin] = edges
}

// GetNode retrieves a node from the graph
func (g *DependencyGraph) GetNode(plugin string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[plugin]
}

// Plugins returns the plugin names in the graph, sorted
func (g *DependencyGraph) Plugins() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDependencies returns the direct dependencies of a plugin
func (g *DependencyGraph) GetDependencies(plugin string) []Dependency {
	node := g.GetNode(plugin)
	if node == nil {
		return nil
	}
	return node.Dependencies
}

// GetTransitiveDependencies returns all transitive dependencies
func (g *DependencyGraph) GetTransitiveDependencies(plugin string) []Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	result := make([]Dependency, 0)

	var traverse func(string)
	traverse = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true

		node := g.nodes[name]
		if node == nil {
			return
		}

		for _, dep := range node.Dependencies {
			if visited[dep.Plugin] {
				continue
			}
			result = append(result, Dependency{
				Plugin:     dep.Plugin,
				Constraint: dep.Constraint,
				Type:       "transitive",
			})
			traverse(dep.Plugin)
		}
	}

	traverse(plugin)
	return result
}

// GetDependents returns all plugins that directly require plugin
func (g *DependencyGraph) GetDependents(plugin string) []Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dependents := make([]Dependency, 0)
	for name, edges := range g.edges {
		for _, edge := range edges {
			if edge == plugin {
				dependents = append(dependents, Dependency{
					Plugin: name,
					Type:   "direct",
				})
				break
			}
		}
	}

	sort.Slice(dependents, func(i, j int) bool {
		return dependents[i].Plugin < dependents[j].Plugin
	})
	return dependents
}

// DetectCircularDependencies returns the first cycle reachable from plugin,
// as a path that starts and ends with the same name
func (g *DependencyGraph) DetectCircularDependencies(plugin string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	path := make([]string, 0)
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	var cycle []string

	var hasCycle func(string) bool
	hasCycle = func(name string) bool {
		visited[name] = true
		recStack[name] = true
		path = append(path, name)

		for _, dep := range g.edges[name] {
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				cycle = cyclePath(path, dep)
				return true
			}
		}

		recStack[name] = false
		path = path[:len(path)-1]
		return false
	}

	if hasCycle(plugin) {
		return cycle
	}
	return nil
}

// TopologicalSort returns plugin and its dependencies, dependencies first
func (g *DependencyGraph) TopologicalSort(plugin string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	result := make([]string, 0)

	var visit func(string) error
	visit = func(name string) error {
		if recStack[name] {
			return fmt.Errorf("circular dependency detected at %s", name)
		}
		if visited[name] {
			return nil
		}

		visited[name] = true
		recStack[name] = true

		// Visit dependencies first
		for _, dep := range g.edges[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		recStack[name] = false

		if _, ok := g.nodes[name]; ok {
			result = append(result, name)
		}
		return nil
	}

	if err := visit(plugin); err != nil {
		return nil, err
	}

	return result, nil
}

// WriteDOT writes the graph in Graphviz DOT format. Requires edges are
// solid and labelled with their constraint; conflicts are dashed.
func (g *DependencyGraph) WriteDOT(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("digraph plugins {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %q [label=%q];\n", name, name+"\n"+g.nodes[name].Version)
	}
	for _, name := range names {
		node := g.nodes[name]
		for _, dep := range node.Dependencies {
			if dep.Constraint != "" {
				fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", name, dep.Plugin, dep.Constraint)
			} else {
				fmt.Fprintf(&b, "  %q -> %q;\n", name, dep.Plugin)
			}
		}
		for _, conflict := range node.Conflicts {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed, label=\"conflicts\"];\n", name, conflict)
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func cyclePath(path []string, start string) []string {
	for i, name := range path {
		if name == start {
			cycle := append([]string(nil), path[i:]...)
			return append(cycle, start)
		}
	}
	return []string{start, start}
}
