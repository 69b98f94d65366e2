package differ

import (
	"reflect"
	"sort"
	"testing"

	"github.com/arcweave/phantom/internal/analysis/parser"
)

func graph(nodes []parser.Node, edges []parser.Edge) *parser.ArchitectureGraph {
	return &parser.ArchitectureGraph{Nodes: nodes, Edges: edges}
}

func TestCompareAddedAndRemovedNodes(t *testing.T) {
	a := graph([]parser.Node{{ID: "L1_api", Label: "API"}, {ID: "L1_db", Label: "DB"}}, nil)
	b := graph([]parser.Node{{ID: "L1_api", Label: "API"}, {ID: "L1_cache", Label: "Cache"}}, nil)

	d := Compare(a, b)

	if !reflect.DeepEqual(sortedStrings(d.AddedNodes), []string{"L1_cache"}) {
		t.Errorf("AddedNodes = %v, want [L1_cache]", d.AddedNodes)
	}
	if !reflect.DeepEqual(sortedStrings(d.RemovedNodes), []string{"L1_db"}) {
		t.Errorf("RemovedNodes = %v, want [L1_db]", d.RemovedNodes)
	}
	if len(d.ModifiedNodes) != 0 {
		t.Errorf("ModifiedNodes = %v, want none", d.ModifiedNodes)
	}
}

func TestCompareModifiedNodeDetectsLabelChange(t *testing.T) {
	a := graph([]parser.Node{{ID: "L1_api", Label: "API", Type: "service", Group: "g1"}}, nil)
	b := graph([]parser.Node{{ID: "L1_api", Label: "Gateway", Type: "service", Group: "g1"}}, nil)

	d := Compare(a, b)
	if len(d.ModifiedNodes) != 1 {
		t.Fatalf("ModifiedNodes = %v, want 1 entry", d.ModifiedNodes)
	}
	if d.ModifiedNodes[0].ID != "L1_api" {
		t.Errorf("modified node id = %q, want L1_api", d.ModifiedNodes[0].ID)
	}
	if !containsChange(d.ModifiedNodes[0].Changes, ChangeLabel) {
		t.Errorf("Changes = %v, want to include %q", d.ModifiedNodes[0].Changes, ChangeLabel)
	}
}

func TestCompareUnchangedNodeProducesNoDiff(t *testing.T) {
	n := parser.Node{ID: "L1_api", Label: "API", Type: "service"}
	a := graph([]parser.Node{n}, nil)
	b := graph([]parser.Node{n}, nil)

	d := Compare(a, b)
	if len(d.AddedNodes)+len(d.RemovedNodes)+len(d.ModifiedNodes) != 0 {
		t.Errorf("Diff = %+v, want empty", d)
	}
}

func TestCompareEdgeChangesFlagEdgesChangedOnIncidentNodes(t *testing.T) {
	nodes := []parser.Node{{ID: "L1_api"}, {ID: "L1_db"}, {ID: "L1_cache"}}
	a := graph(nodes, []parser.Edge{{Source: "L1_api", Target: "L1_db", Type: parser.EdgeDependency}})
	b := graph(nodes, []parser.Edge{{Source: "L1_api", Target: "L1_cache", Type: parser.EdgeDependency}})

	d := Compare(a, b)

	if len(d.AddedEdges) != 1 || d.AddedEdges[0] != (EdgeRef{"L1_api", "L1_cache"}) {
		t.Errorf("AddedEdges = %v, want [{L1_api L1_cache}]", d.AddedEdges)
	}
	if len(d.RemovedEdges) != 1 || d.RemovedEdges[0] != (EdgeRef{"L1_api", "L1_db"}) {
		t.Errorf("RemovedEdges = %v, want [{L1_api L1_db}]", d.RemovedEdges)
	}

	var apiChanged bool
	for _, m := range d.ModifiedNodes {
		if m.ID == "L1_api" && containsChange(m.Changes, ChangeEdges) {
			apiChanged = true
		}
	}
	if !apiChanged {
		t.Errorf("expected L1_api to be flagged edges_changed, got %+v", d.ModifiedNodes)
	}
}

func containsChange(changes []ChangeKind, want ChangeKind) bool {
	for _, c := range changes {
		if c == want {
			return true
		}
	}
	return false
}

func sortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
