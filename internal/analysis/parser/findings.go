package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Severity is the closed finding-severity enumeration (spec §3).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities critical (highest) to info (lowest) for
// the required sort (spec §4.9).
var severityRank = map[Severity]int{
	SeverityCritical: 0, SeverityHigh: 1, SeverityMedium: 2, SeverityLow: 3, SeverityInfo: 4,
}

// Effort is the closed remediation-effort enumeration (spec §3).
type Effort string

const (
	EffortTrivial Effort = "trivial"
	EffortSmall   Effort = "small"
	EffortMedium  Effort = "medium"
	EffortLarge   Effort = "large"
)

var validSeverities = map[Severity]bool{SeverityCritical: true, SeverityHigh: true, SeverityMedium: true, SeverityLow: true, SeverityInfo: true}
var validEfforts = map[Effort]bool{EffortTrivial: true, EffortSmall: true, EffortMedium: true, EffortLarge: true}

type Location struct {
	File      string `json:"file"`
	LineStart *int   `json:"line_start,omitempty"`
	LineEnd   *int   `json:"line_end,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

type Finding struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Severity    Severity   `json:"severity"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Locations   []Location `json:"locations"`
	Suggestion  string     `json:"suggestion,omitempty"`
	Remediation string     `json:"remediation,omitempty"`
	Effort      Effort     `json:"effort"`
}

// Stats is recomputed from the findings array, never trusted from the
// tool (spec §4.9).
type Stats struct {
	Total       int            `json:"total"`
	BySeverity  map[string]int `json:"by_severity"`
	ByCategory  map[string]int `json:"by_category"`
}

// AnalysisFindings is the result shape for performance and security preset
// kinds (spec §3 Findings).
type AnalysisFindings struct {
	Summary  string    `json:"summary"`
	Findings []Finding `json:"findings"`
	Stats    Stats     `json:"stats"`
}

// ParseAnalysisFindings decodes and validates raw JSON against the
// AnalysisFindings shape for the given preset's closed category set,
// assigning stable derived finding IDs and recomputed stats.
func ParseAnalysisFindings(raw, presetShort string, validCategories map[string]bool) (*AnalysisFindings, []ValidationError, error) {
	recovered, stage, err := recover(raw, schemaAnalysisFindings)
	if err != nil {
		return nil, nil, &ParseFailedError{Stage: stage, Details: err.Error()}
	}

	var decoded struct {
		Summary  string    `json:"summary"`
		Findings []Finding `json:"findings"`
	}
	if err := json.Unmarshal([]byte(recovered), &decoded); err != nil {
		return nil, nil, &ParseFailedError{Stage: "decode", Details: err.Error()}
	}

	var errs []ValidationError
	for i := range decoded.Findings {
		f := &decoded.Findings[i]
		if !validSeverities[f.Severity] {
			errs = append(errs, ValidationError{"findings", fmt.Sprintf("finding[%d] has invalid severity %q", i, f.Severity)})
		}
		if !validEfforts[f.Effort] {
			errs = append(errs, ValidationError{"findings", fmt.Sprintf("finding[%d] has invalid effort %q", i, f.Effort)})
		}
		if validCategories != nil && !validCategories[f.Category] {
			errs = append(errs, ValidationError{"findings", fmt.Sprintf("finding[%d] has invalid category %q", i, f.Category)})
		}
		f.ID = FindingID(presetShort, f.Title)
	}

	sortFindings(decoded.Findings)

	out := &AnalysisFindings{
		Summary:  decoded.Summary,
		Findings: decoded.Findings,
		Stats:    computeStats(decoded.Findings),
	}
	return out, errs, nil
}

// FindingID derives the stable finding ID: "F_" + preset_short +
// "_" + first8(sha256(title)) (spec §3). Byte-identical across runs for
// the same (presetShort, title) pair.
func FindingID(presetShort, title string) string {
	sum := sha256.Sum256([]byte(title))
	return fmt.Sprintf("F_%s_%s", presetShort, hex.EncodeToString(sum[:])[:8])
}

func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return severityRank[findings[i].Severity] < severityRank[findings[j].Severity]
	})
}

func computeStats(findings []Finding) Stats {
	s := Stats{Total: len(findings), BySeverity: map[string]int{}, ByCategory: map[string]int{}}
	for _, f := range findings {
		s.BySeverity[string(f.Severity)]++
		s.ByCategory[f.Category]++
	}
	return s
}

// SchemaAnalysisFindings returns the JSON schema the CLI tool is instructed
// to emit output against for "analysis" preset kinds (spec §4.8).
func SchemaAnalysisFindings() string { return schemaAnalysisFindings }

const schemaAnalysisFindings = `{
  "type": "object",
  "required": ["summary", "findings"],
  "properties": {
    "summary": {"type": "string"},
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "severity", "category", "description", "effort"]
      }
    }
  }
}`
