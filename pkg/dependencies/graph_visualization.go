package dependencies

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/harness/pkg/httputil"
)

// Node roles in a rendered graph
const (
	RolePlugin     = "plugin"
	RoleCurrent    = "current"
	RoleDependency = "dependency"
	RoleDependent  = "dependent"
)

// Edge kinds in a rendered graph
const (
	EdgeDirect     = "direct"
	EdgeTransitive = "transitive"
	EdgeDependsOn  = "depends-on"
	EdgeConflicts  = "conflicts"
)

// CytoscapeNode is one plugin in Cytoscape.js element format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

type CytoscapeNodeData struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
}

// CytoscapeEdge is one requires or conflicts relation
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

type CytoscapeEdgeData struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
	Label  string `json:"label,omitempty"`
}

// CytoscapeGraph is the body of the /graph endpoints
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// cytoBuilder accumulates a CytoscapeGraph, adding each node once
type cytoBuilder struct {
	graph *DependencyGraph
	out   CytoscapeGraph
	seen  map[string]bool
}

func newCytoBuilder(graph *DependencyGraph) *cytoBuilder {
	return &cytoBuilder{
		graph: graph,
		out:   CytoscapeGraph{Nodes: []CytoscapeNode{}, Edges: []CytoscapeEdge{}},
		seen:  make(map[string]bool),
	}
}

// node adds name with role and reports whether it was new
func (b *cytoBuilder) node(name, role string) bool {
	if b.seen[name] {
		return false
	}
	b.seen[name] = true

	var version string
	if n := b.graph.GetNode(name); n != nil {
		version = n.Version
	}
	b.out.Nodes = append(b.out.Nodes, CytoscapeNode{
		Data: CytoscapeNodeData{ID: name, Name: name, Version: version, Type: role},
	})
	return true
}

func (b *cytoBuilder) edge(id, source, target, kind, label string) {
	b.out.Edges = append(b.out.Edges, CytoscapeEdge{
		Data: CytoscapeEdgeData{ID: id, Source: source, Target: target, Type: kind, Label: label},
	})
}

// requires walks requires edges breadth first from root. Nodes at maxDepth
// are drawn but not expanded; a negative maxDepth means no limit.
func (b *cytoBuilder) requires(root string, maxDepth int) {
	type step struct {
		name  string
		depth int
	}
	queue := []step{{name: root}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth >= 0 && cur.depth >= maxDepth {
			continue
		}

		kind := EdgeDirect
		if cur.depth > 0 {
			kind = EdgeTransitive
		}
		for _, dep := range b.graph.GetDependencies(cur.name) {
			if b.node(dep.Plugin, RoleDependency) {
				queue = append(queue, step{name: dep.Plugin, depth: cur.depth + 1})
			}
			b.edge(cur.name+"->"+dep.Plugin, cur.name, dep.Plugin, kind, dep.Constraint)
		}
	}
}

// requiredBy adds the plugins that directly require name
func (b *cytoBuilder) requiredBy(name string) {
	for _, dependent := range b.graph.GetDependents(name) {
		b.node(dependent.Plugin, RoleDependent)
		b.edge(dependent.Plugin+"->"+name, dependent.Plugin, name, EdgeDependsOn, "")
	}
}

// BuildFullGraph renders every resolved plugin with its requires and
// conflicts edges
func BuildFullGraph(graph *DependencyGraph) CytoscapeGraph {
	b := newCytoBuilder(graph)
	for _, name := range graph.Plugins() {
		b.node(name, RolePlugin)
		node := graph.GetNode(name)
		for _, dep := range node.Dependencies {
			b.edge(name+"->"+dep.Plugin, name, dep.Plugin, EdgeDirect, dep.Constraint)
		}
		for _, conflict := range node.Conflicts {
			b.edge(name+"-x-"+conflict, name, conflict, EdgeConflicts, "")
		}
	}
	return b.out
}

// BuildCytoscapeGraph renders the neighbourhood of one plugin. direction is
// "dependencies", "dependents" or "both". Without transitive only direct
// requirements are drawn.
func BuildCytoscapeGraph(graph *DependencyGraph, name string, transitive bool, maxDepth int, direction string) CytoscapeGraph {
	b := newCytoBuilder(graph)
	b.node(name, RoleCurrent)

	if direction == "dependencies" || direction == "both" {
		if !transitive {
			maxDepth = 1
		}
		b.requires(name, maxDepth)
	}
	if direction == "dependents" || direction == "both" {
		b.requiredBy(name)
	}
	return b.out
}

// GraphVisualizationHandlers serves the graph in Cytoscape.js format
type GraphVisualizationHandlers struct {
	graph *DependencyGraph
}

func NewGraphVisualizationHandlers(graph *DependencyGraph) *GraphVisualizationHandlers {
	return &GraphVisualizationHandlers{graph: graph}
}

func (h *GraphVisualizationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/graph", h.getFullGraph).Methods("GET")
	router.HandleFunc("/plugins/{name}/graph", h.getPluginGraph).Methods("GET")
}

func (h *GraphVisualizationHandlers) getFullGraph(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, BuildFullGraph(h.graph))
}

// getPluginGraph accepts transitive (default true), depth (default and
// values below 1 mean unlimited) and direction (default dependencies)
func (h *GraphVisualizationHandlers) getPluginGraph(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if h.graph.GetNode(name) == nil {
		httputil.WriteNotFoundError(w, "plugin not resolved: "+name)
		return
	}

	transitive, err := httputil.ParseQueryBool(r, "transitive", true)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	depth, err := httputil.ParseQueryInt(r, "depth", -1)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if depth <= 0 {
		depth = -1
	}

	switch direction := httputil.ParseQueryString(r, "direction", "dependencies"); direction {
	case "dependencies", "dependents", "both":
		httputil.WriteJSON(w, http.StatusOK, BuildCytoscapeGraph(h.graph, name, transitive, depth, direction))
	default:
		httputil.WriteBadRequest(w, "invalid direction: "+direction)
	}
}
