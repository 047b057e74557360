package dependencies

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/harness/pkg/httputil"
)

// DependencyHandlers provides HTTP handlers for the resolved plugin graph
type DependencyHandlers struct {
	graph *DependencyGraph
}

// NewDependencyHandlers creates new dependency handlers
func NewDependencyHandlers(graph *DependencyGraph) *DependencyHandlers {
	return &DependencyHandlers{
		graph: graph,
	}
}

// RegisterRoutes registers dependency routes
func (h *DependencyHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/graph.dot", h.getDOT).Methods("GET")
	router.HandleFunc("/plugins/{name}/dependencies", h.getDependencies).Methods("GET")
	router.HandleFunc("/plugins/{name}/dependencies/transitive", h.getTransitiveDependencies).Methods("GET")
	router.HandleFunc("/plugins/{name}/dependents", h.getDependents).Methods("GET")
	router.HandleFunc("/plugins/{name}/order", h.getOrder).Methods("GET")

	// Cytoscape.js format endpoints
	vizHandlers := NewGraphVisualizationHandlers(h.graph)
	vizHandlers.RegisterRoutes(router)
}

// getDOT handles GET /graph.dot
func (h *DependencyHandlers) getDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	if err := h.graph.WriteDOT(w); err != nil {
		httputil.WriteInternalError(w, err)
	}
}

// getDependencies handles GET /plugins/{name}/dependencies
func (h *DependencyHandlers) getDependencies(w http.ResponseWriter, r *http.Request) {
	name, ok := h.plugin(w, r)
	if !ok {
		return
	}

	deps := h.graph.GetDependencies(name)
	writeDependencies(w, name, deps)
}

// getTransitiveDependencies handles GET /plugins/{name}/dependencies/transitive
func (h *DependencyHandlers) getTransitiveDependencies(w http.ResponseWriter, r *http.Request) {
	name, ok := h.plugin(w, r)
	if !ok {
		return
	}

	deps := h.graph.GetTransitiveDependencies(name)
	writeDependencies(w, name, deps)
}

// getDependents handles GET /plugins/{name}/dependents
func (h *DependencyHandlers) getDependents(w http.ResponseWriter, r *http.Request) {
	name, ok := h.plugin(w, r)
	if !ok {
		return
	}

	dependents := h.graph.GetDependents(name)

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"plugin":     name,
		"dependents": dependents,
		"count":      len(dependents),
	})
}

// getOrder handles GET /plugins/{name}/order. A cycle reachable from the
// plugin is a 409 naming the cycle.
func (h *DependencyHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	name, ok := h.plugin(w, r)
	if !ok {
		return
	}

	if cycle := h.graph.DetectCircularDependencies(name); cycle != nil {
		httputil.WriteJSON(w, http.StatusConflict, map[string]interface{}{
			"plugin": name,
			"error":  "circular dependency: " + strings.Join(cycle, " -> "),
			"cycle":  cycle,
		})
		return
	}

	order, err := h.graph.TopologicalSort(name)
	if err != nil {
		httputil.WriteConflict(w, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"plugin": name,
		"order":  order,
	})
}

func (h *DependencyHandlers) plugin(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["name"]
	if h.graph.GetNode(name) == nil {
		httputil.WriteNotFoundError(w, "plugin not resolved: "+name)
		return "", false
	}
	return name, true
}

func writeDependencies(w http.ResponseWriter, name string, deps []Dependency) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"plugin":       name,
		"dependencies": deps,
		"count":        len(deps),
	})
}
