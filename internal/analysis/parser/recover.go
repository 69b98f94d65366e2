package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ParseFailedError records which recovery stage gave up (spec §7
// ParseFailed(stage, details)).
type ParseFailedError struct {
	Stage   string
	Details string
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("parse failed at stage %q: %s", e.Stage, e.Details)
}

var (
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	fencedBlockRe   = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")
	// Matches a double quote with a letter or digit directly before it and
	// a letter directly after it — a common CLI-tool slip when a string
	// value itself contains quotes.
	unescapedQuoteRe = regexp.MustCompile(`([a-zA-Z0-9])"([a-zA-Z])`)
)

// recover runs the §4.9 recovery pipeline against raw output and validates
// the result against the JSON-schema sketch for the target shape. It
// returns the recovered JSON text (structurally valid, decode still
// required by the caller) or the stage name at which it gave up.
//
// Stage order, first success wins: (1) parse as-is; (2) strip trailing
// commas; (3) repair common unescaped-quote sequences; (4) extract the
// first fenced JSON block; each candidate is re-validated against schema
// before being accepted.
func recover(raw, schema string) (recovered string, failedStage string, err error) {
	candidates := []struct {
		name string
		text string
	}{
		{"parse", raw},
		{"strip_trailing_commas", trailingCommaRe.ReplaceAllString(raw, "$1")},
		{"repair_quotes", unescapedQuoteRe.ReplaceAllString(raw, `$1\"$2`)},
		{"extract_fenced_json", extractFirstFence(raw)},
	}

	var lastErr error
	for _, c := range candidates {
		if c.text == "" {
			continue
		}
		if err := validateAgainstSchema(c.text, schema); err == nil {
			return c.text, "", nil
		} else {
			lastErr = err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no recovery candidate produced valid JSON")
	}
	return "", "recovery_exhausted", lastErr
}

func extractFirstFence(s string) string {
	m := fencedBlockRe.FindStringSubmatch(s)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}

// validateAgainstSchema checks c is syntactically valid JSON and satisfies
// the structural schema (required top-level fields and types). Relational
// invariants (ID uniqueness, reference integrity) are checked separately
// by each shape's Validate method since JSON Schema can't express them.
func validateAgainstSchema(candidate, schema string) error {
	var doc any
	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewGoLoader(doc)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("%d schema violation(s): %s", len(result.Errors()), result.Errors()[0].Description())
	}
	return nil
}

