package parser

import (
	"encoding/json"
	"fmt"
)

type InternalNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Path  string `json:"path,omitempty"`
}

type ExternalDep struct {
	Name    string   `json:"name"`
	Version string   `json:"version,omitempty"`
	UsedBy  []string `json:"used_by"`
}

type DepEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// DependencyMap is the "dependency" preset's result shape (spec §3, §4.9).
type DependencyMap struct {
	Internal struct {
		Nodes []InternalNode `json:"nodes"`
	} `json:"internal"`
	External                []ExternalDep `json:"external"`
	Edges                   []DepEdge     `json:"edges"`
	CircularDependencies    [][]string    `json:"circular_dependencies"`
}

// ParseDependencyMap decodes and validates raw JSON against the
// DependencyMap shape (spec §4.9: every external[*].used_by references an
// existing internal node; every edge endpoint resolves; an empty
// circular_dependencies array is valid).
func ParseDependencyMap(raw string) (*DependencyMap, []ValidationError, error) {
	recovered, stage, err := recover(raw, schemaDependencyMap)
	if err != nil {
		return nil, nil, &ParseFailedError{Stage: stage, Details: err.Error()}
	}

	d := &DependencyMap{}
	if err := json.Unmarshal([]byte(recovered), d); err != nil {
		return nil, nil, &ParseFailedError{Stage: "decode", Details: err.Error()}
	}

	return d, d.Validate(), nil
}

func (d *DependencyMap) Validate() []ValidationError {
	var errs []ValidationError
	internalIDs := make(map[string]bool, len(d.Internal.Nodes))
	for _, n := range d.Internal.Nodes {
		internalIDs[n.ID] = true
	}

	for i, ext := range d.External {
		for _, usedBy := range ext.UsedBy {
			if !internalIDs[usedBy] {
				errs = append(errs, ValidationError{"external", fmt.Sprintf("external[%d] (%s) used_by references unknown internal node %q", i, ext.Name, usedBy)})
			}
		}
	}

	for i, e := range d.Edges {
		if !internalIDs[e.Source] {
			errs = append(errs, ValidationError{"edges", fmt.Sprintf("edge[%d] source %q does not reference an existing internal node", i, e.Source)})
		}
		if !internalIDs[e.Target] {
			errs = append(errs, ValidationError{"edges", fmt.Sprintf("edge[%d] target %q does not reference an existing internal node", i, e.Target)})
		}
	}

	return errs
}

// SchemaDependencyMap returns the JSON schema the CLI tool is instructed to
// emit output against for "custom" (dependency map) preset kinds (spec §4.8).
func SchemaDependencyMap() string { return schemaDependencyMap }

const schemaDependencyMap = `{
  "type": "object",
  "required": ["internal", "external", "edges"],
  "properties": {
    "internal": {"type": "object", "required": ["nodes"]},
    "external": {"type": "array"},
    "edges": {"type": "array"},
    "circular_dependencies": {"type": "array"}
  }
}`
