package dependencies

import (
	"bytes"
	"strings"
	"testing"
)

func chainGraph() *DependencyGraph {
	// Build graph: user -> common -> base
	graph := NewDependencyGraph()
	graph.AddNode(&Node{Plugin: "base", Version: "1.0.0"})
	graph.AddNode(&Node{Plugin: "common", Version: "1.0.0", Dependencies: []Dependency{
		{Plugin: "base", Type: "direct"},
	}})
	graph.AddNode(&Node{Plugin: "user", Version: "2.0.0", Dependencies: []Dependency{
		{Plugin: "common", Constraint: ">>1.0", Type: "direct"},
	}})
	return graph
}

func TestDependencyGraph_AddNode(t *testing.T) {
	graph := NewDependencyGraph()

	graph.AddNode(&Node{Plugin: "user", Version: "1.0.0", Dependencies: []Dependency{
		{Plugin: "common", Type: "direct"},
	}})

	node := graph.GetNode("user")
	if node == nil {
		t.Fatal("Expected node to be added")
	}

	if node.Plugin != "user" {
		t.Errorf("Expected plugin 'user', got %s", node.Plugin)
	}

	if len(node.Dependencies) != 1 {
		t.Errorf("Expected 1 dependency, got %d", len(node.Dependencies))
	}

	if len(graph.Plugins()) != 1 {
		t.Errorf("Expected 1 plugin, got %v", graph.Plugins())
	}
}

func TestDependencyGraph_GetTransitiveDependencies(t *testing.T) {
	graph := chainGraph()

	deps := graph.GetTransitiveDependencies("user")

	// Should include both common and base
	if len(deps) != 2 {
		t.Errorf("Expected 2 transitive dependencies, got %d", len(deps))
	}

	for _, dep := range deps {
		if dep.Type != "transitive" {
			t.Errorf("Expected type 'transitive', got %s", dep.Type)
		}
	}
}

func TestDependencyGraph_GetDependents(t *testing.T) {
	graph := chainGraph()
	graph.AddNode(&Node{Plugin: "admin", Version: "1.0.0", Dependencies: []Dependency{
		{Plugin: "common", Type: "direct"},
	}})

	dependents := graph.GetDependents("common")
	if len(dependents) != 2 {
		t.Fatalf("Expected 2 dependents, got %d", len(dependents))
	}
	if dependents[0].Plugin != "admin" || dependents[1].Plugin != "user" {
		t.Errorf("Expected [admin user], got %v", dependents)
	}

	if len(graph.GetDependents("user")) != 0 {
		t.Error("Expected no dependents for user")
	}
}

func TestDependencyGraph_DetectCircularDependencies(t *testing.T) {
	graph := NewDependencyGraph()

	// a -> b -> c -> a
	graph.AddNode(&Node{Plugin: "a", Dependencies: []Dependency{{Plugin: "b"}}})
	graph.AddNode(&Node{Plugin: "b", Dependencies: []Dependency{{Plugin: "c"}}})
	graph.AddNode(&Node{Plugin: "c", Dependencies: []Dependency{{Plugin: "a"}}})

	cycle := graph.DetectCircularDependencies("a")
	if got := strings.Join(cycle, " -> "); got != "a -> b -> c -> a" {
		t.Errorf("Expected cycle a -> b -> c -> a, got %q", got)
	}

	if cycle := chainGraph().DetectCircularDependencies("user"); cycle != nil {
		t.Errorf("Expected no cycle, got %v", cycle)
	}
}

func TestDependencyGraph_TopologicalSort(t *testing.T) {
	graph := chainGraph()

	sorted, err := graph.TopologicalSort("user")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Dependencies come before dependents
	want := []string{"base", "common", "user"}
	if strings.Join(sorted, ",") != strings.Join(want, ",") {
		t.Errorf("Expected %v, got %v", want, sorted)
	}
}

func TestDependencyGraph_TopologicalSortCycle(t *testing.T) {
	graph := NewDependencyGraph()
	graph.AddNode(&Node{Plugin: "a", Dependencies: []Dependency{{Plugin: "b"}}})
	graph.AddNode(&Node{Plugin: "b", Dependencies: []Dependency{{Plugin: "a"}}})

	if _, err := graph.TopologicalSort("a"); err == nil {
		t.Error("Expected circular dependency error")
	}
}

func TestDependencyGraph_WriteDOT(t *testing.T) {
	graph := chainGraph()
	graph.AddNode(&Node{Plugin: "rival", Version: "1.0.0", Conflicts: []string{"user"}})

	var buf bytes.Buffer
	if err := graph.WriteDOT(&buf); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"digraph plugins {",
		`"user" [label="user\n2.0.0"];`,
		`"user" -> "common" [label=">>1.0"];`,
		`"common" -> "base";`,
		`"rival" -> "user" [style=dashed, label="conflicts"];`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected DOT output to contain %q, got:\n%s", want, out)
		}
	}
}
