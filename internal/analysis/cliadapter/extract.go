package cliadapter

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// extractFencedJSON returns the first fenced code block's contents, or the
// whole string if no fence is found (spec §4.8 payload extraction: "extract
// fenced JSON from result").
func extractFencedJSON(s string) string {
	m := fencedJSONPattern.FindStringSubmatch(s)
	if len(m) == 2 {
		return m[1]
	}
	return s
}

// readStringField extracts a top-level string field from a raw JSON
// object without fully decoding it into a typed struct — used to read
// Claude's "result"/"structured_output" envelope fields.
func readStringField(raw []byte, field string) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	v, ok := obj[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, true
	}
	// structured_output may be a nested object rather than a string;
	// re-serialize it as the payload JSON text.
	return string(v), true
}

func errEmptyOutput() error {
	return fmt.Errorf("cliadapter: empty stdout")
}
