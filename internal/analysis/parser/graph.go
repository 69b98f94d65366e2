// Package parser decodes raw CLI output into one of four typed result
// shapes and enforces their structural invariants (C9). JSON-schema
// validation (github.com/xeipuuv/gojsonschema, adopted from the sibling
// pack repo Sumatoshi-tech/codefang's cmd/uast/validate.go — the teacher
// has no schema validator) catches basic shape/type errors; the
// relational invariants spec.md §3/§4.9 requires (ID uniqueness, edge
// referential integrity, group references) are cross-checked separately
// since JSON Schema alone cannot express them.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var nodeIDPattern = map[int]*regexp.Regexp{
	1: regexp.MustCompile(`^L1_[a-z][a-z0-9_]*$`),
	2: regexp.MustCompile(`^L2_[a-z][a-z0-9_]*$`),
	3: regexp.MustCompile(`^L3_[a-z][a-z0-9_]*$`),
}

// EdgeType is the closed set of structural-graph edge kinds (spec §3).
type EdgeType string

const (
	EdgeDependency  EdgeType = "dependency"
	EdgeDataflow    EdgeType = "dataflow"
	EdgeCall        EdgeType = "call"
	EdgeOwnership   EdgeType = "ownership"
	EdgeIPC         EdgeType = "ipc"
	EdgeControlFlow EdgeType = "control_flow"
)

var validEdgeTypes = map[EdgeType]bool{
	EdgeDependency: true, EdgeDataflow: true, EdgeCall: true,
	EdgeOwnership: true, EdgeIPC: true, EdgeControlFlow: true,
}

// NodeMetadata holds the optional descriptive fields a graph node may
// carry (spec §3 Structured graph).
type NodeMetadata struct {
	Path        string `json:"path,omitempty"`
	File        string `json:"file,omitempty"`
	Line        int    `json:"line,omitempty"`
	Description string `json:"description,omitempty"`
	Drillable   bool   `json:"drillable,omitempty"`
	Signature   string `json:"signature,omitempty"`
	ReturnType  string `json:"return_type,omitempty"`
}

type Node struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Type     string        `json:"type"`
	Group    string        `json:"group,omitempty"`
	Metadata *NodeMetadata `json:"metadata,omitempty"`
}

type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
	Label  string   `json:"label,omitempty"`
}

type Group struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ArchitectureGraph is the "diagram" preset's result shape (spec §3).
type ArchitectureGraph struct {
	Version     int     `json:"version"`
	Level       int     `json:"level"`
	Direction   string  `json:"direction"`
	Description string  `json:"description"`
	Nodes       []Node  `json:"nodes"`
	Edges       []Edge  `json:"edges"`
	Groups      []Group `json:"groups"`
}

// ValidationError enumerates one structural violation (spec §4.9: "persist
// the parsed JSON with status failed and an error_message enumerating
// violations").
type ValidationError struct {
	Field   string
	Message string
}

func (v ValidationError) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ParseArchitectureGraph decodes and validates raw JSON against the
// ArchitectureGraph shape, clamping to the first valid graph when the
// output contains more than one top-level object (spec §4.9).
func ParseArchitectureGraph(raw string) (*ArchitectureGraph, []ValidationError, error) {
	recovered, stage, err := recover(raw, schemaArchitectureGraph)
	if err != nil {
		return nil, nil, &ParseFailedError{Stage: stage, Details: err.Error()}
	}

	// A Decoder reads only the first top-level value, which is the one the
	// schema check in recover accepted; any later objects are ignored.
	g := &ArchitectureGraph{}
	if err := json.NewDecoder(strings.NewReader(recovered)).Decode(g); err != nil {
		return nil, nil, &ParseFailedError{Stage: "decode", Details: err.Error()}
	}

	return g, g.Validate(), nil
}

// Validate enforces the relational invariants the schema alone can't
// express: level range, node ID grammar, ID uniqueness, edge/group
// referential integrity (spec §3, §8 node-ID-uniqueness and
// edge-referential-integrity properties).
func (g *ArchitectureGraph) Validate() []ValidationError {
	var errs []ValidationError

	if g.Level < 1 || g.Level > 3 {
		errs = append(errs, ValidationError{"level", fmt.Sprintf("must be 1, 2, or 3, got %d", g.Level)})
	}

	ids := make(map[string]bool, len(g.Nodes))
	pattern := nodeIDPattern[g.Level]
	groupIDs := make(map[string]bool, len(g.Groups))
	for _, grp := range g.Groups {
		groupIDs[grp.ID] = true
	}

	for _, n := range g.Nodes {
		if ids[n.ID] {
			errs = append(errs, ValidationError{"nodes", fmt.Sprintf("duplicate node id %q", n.ID)})
			continue
		}
		ids[n.ID] = true
		if pattern != nil && !pattern.MatchString(n.ID) {
			errs = append(errs, ValidationError{"nodes", fmt.Sprintf("node id %q does not match required pattern for level %d", n.ID, g.Level)})
		}
		if n.Group != "" && !groupIDs[n.Group] {
			errs = append(errs, ValidationError{"nodes", fmt.Sprintf("node %q references unknown group %q", n.ID, n.Group)})
		}
	}

	for i, e := range g.Edges {
		if !ids[e.Source] {
			errs = append(errs, ValidationError{"edges", fmt.Sprintf("edge[%d] source %q does not reference an existing node", i, e.Source)})
		}
		if !ids[e.Target] {
			errs = append(errs, ValidationError{"edges", fmt.Sprintf("edge[%d] target %q does not reference an existing node", i, e.Target)})
		}
		if !validEdgeTypes[e.Type] {
			errs = append(errs, ValidationError{"edges", fmt.Sprintf("edge[%d] has invalid type %q", i, e.Type)})
		}
	}

	return errs
}

// SchemaArchitectureGraph returns the JSON schema the CLI tool is instructed
// to emit output against for "diagram" preset kinds (spec §4.8).
func SchemaArchitectureGraph() string { return schemaArchitectureGraph }

const schemaArchitectureGraph = `{
  "type": "object",
  "required": ["version", "level", "direction", "nodes", "edges"],
  "properties": {
    "version": {"type": "integer"},
    "level": {"type": "integer"},
    "direction": {"type": "string"},
    "description": {"type": "string"},
    "nodes": {"type": "array", "items": {"type": "object", "required": ["id", "label", "type"]}},
    "edges": {"type": "array", "items": {"type": "object", "required": ["source", "target", "type"]}},
    "groups": {"type": "array"}
  }
}`
