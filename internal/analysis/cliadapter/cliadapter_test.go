package cliadapter

import (
	"os"
	"testing"
)

func TestDetectKind(t *testing.T) {
	cases := []struct {
		binary string
		want   Kind
	}{
		{"claude", ClaudeCode},
		{"/usr/local/bin/claude-code", ClaudeCode},
		{"codex", Codex},
		{"CODEX", Codex},
		{"cursor-agent", Cursor},
		{"some-other-tool", Unknown},
		{"", Unknown},
	}
	for _, tc := range cases {
		if got := DetectKind(tc.binary); got != tc.want {
			t.Errorf("DetectKind(%q) = %v, want %v", tc.binary, got, tc.want)
		}
	}
}

func TestForReturnsMatchingKindFromAdapter(t *testing.T) {
	kinds := []Kind{ClaudeCode, Codex, Cursor, Unknown}
	for _, k := range kinds {
		a := For(k)
		if a.Kind() != k {
			t.Errorf("For(%v).Kind() = %v, want %v", k, a.Kind(), k)
		}
	}
}

func TestCommandCleanupRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	f1 := dir + "/schema.json"
	f2 := dir + "/out.json"
	for _, f := range []string{f1, f2} {
		if err := os.WriteFile(f, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cmd := &Command{SchemaFile: f1, OutFile: f2, cleanup: []string{f1, f2}}
	cmd.Cleanup()
	for _, f := range []string{f1, f2} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("Cleanup() did not remove %q", f)
		}
	}
}

func TestCommandCleanupToleratesMissingFiles(t *testing.T) {
	cmd := &Command{cleanup: []string{"/nonexistent/path/should/not/panic"}}
	cmd.Cleanup() // must not panic
}
