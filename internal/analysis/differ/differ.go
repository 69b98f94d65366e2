// Package differ compares two ArchitectureGraph values and classifies
// added/removed/modified nodes and edges (C10, spec §4.10). Grounded on
// the set-based comparison in the teacher's internal/sync/diff.go
// (DiffManifests: local/remote path sets, hash comparison for updates),
// generalized from a flat file manifest to a node/edge graph with a
// per-node change list instead of a single update flag.
package differ

import "github.com/arcweave/phantom/internal/analysis/parser"

// ChangeKind enumerates what differs about a modified node (spec §3
// Graph diff).
type ChangeKind string

const (
	ChangeLabel ChangeKind = "label_changed"
	ChangeType  ChangeKind = "type_changed"
	ChangeGroup ChangeKind = "group_changed"
	ChangeEdges ChangeKind = "edges_changed"
)

type ModifiedNode struct {
	ID      string
	Changes []ChangeKind
}

type EdgeRef struct {
	Source, Target string
}

// Diff is the full comparison result (spec §3 Graph diff).
type Diff struct {
	AddedNodes    []string
	RemovedNodes  []string
	ModifiedNodes []ModifiedNode
	AddedEdges    []EdgeRef
	RemovedEdges  []EdgeRef
}

type edgeTuple struct {
	source, target, label string
	typ                    parser.EdgeType
}

// Compare diffs A (main) against B (branch). A node is "the same node"
// across both graphs iff its ID matches exactly — no rename heuristics
// (spec §4.10). Metadata and layout are never compared.
func Compare(a, b *parser.ArchitectureGraph) Diff {
	aNodes := make(map[string]parser.Node, len(a.Nodes))
	for _, n := range a.Nodes {
		aNodes[n.ID] = n
	}
	bNodes := make(map[string]parser.Node, len(b.Nodes))
	for _, n := range b.Nodes {
		bNodes[n.ID] = n
	}

	aEdgesByNode := incidentEdges(a.Edges)
	bEdgesByNode := incidentEdges(b.Edges)

	var d Diff
	for id := range bNodes {
		if _, ok := aNodes[id]; !ok {
			d.AddedNodes = append(d.AddedNodes, id)
		}
	}
	for id := range aNodes {
		if _, ok := bNodes[id]; !ok {
			d.RemovedNodes = append(d.RemovedNodes, id)
		}
	}

	for id, an := range aNodes {
		bn, ok := bNodes[id]
		if !ok {
			continue
		}
		var changes []ChangeKind
		if an.Label != bn.Label {
			changes = append(changes, ChangeLabel)
		}
		if an.Type != bn.Type {
			changes = append(changes, ChangeType)
		}
		if an.Group != bn.Group {
			changes = append(changes, ChangeGroup)
		}
		if !edgeSetsEqual(aEdgesByNode[id], bEdgesByNode[id]) {
			changes = append(changes, ChangeEdges)
		}
		if len(changes) > 0 {
			d.ModifiedNodes = append(d.ModifiedNodes, ModifiedNode{ID: id, Changes: changes})
		}
	}

	aEdgeSet := make(map[EdgeRef]bool, len(a.Edges))
	for _, e := range a.Edges {
		aEdgeSet[EdgeRef{e.Source, e.Target}] = true
	}
	bEdgeSet := make(map[EdgeRef]bool, len(b.Edges))
	for _, e := range b.Edges {
		bEdgeSet[EdgeRef{e.Source, e.Target}] = true
	}
	for ref := range bEdgeSet {
		if !aEdgeSet[ref] {
			d.AddedEdges = append(d.AddedEdges, ref)
		}
	}
	for ref := range aEdgeSet {
		if !bEdgeSet[ref] {
			d.RemovedEdges = append(d.RemovedEdges, ref)
		}
	}

	return d
}

// incidentEdges builds, per node ID, the multiset of (source, target,
// label, type) tuples touching that node — used to detect a node's
// "edges_changed" without needing the edge-level added/removed sets to
// agree on direction.
func incidentEdges(edges []parser.Edge) map[string]map[edgeTuple]int {
	out := make(map[string]map[edgeTuple]int)
	add := func(nodeID string, t edgeTuple) {
		if out[nodeID] == nil {
			out[nodeID] = make(map[edgeTuple]int)
		}
		out[nodeID][t]++
	}
	for _, e := range edges {
		t := edgeTuple{e.Source, e.Target, e.Label, e.Type}
		add(e.Source, t)
		add(e.Target, t)
	}
	return out
}

func edgeSetsEqual(a, b map[edgeTuple]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
