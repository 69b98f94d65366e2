package cliadapter

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestClaudeBuildCommandIncludesSchemaAndModel(t *testing.T) {
	budget := 2.5
	tc := Context{Binary: "claude", Prompt: "describe the architecture", Schema: `{"type":"object"}`, Model: "sonnet", BudgetUSD: &budget, WorkingDir: "/repo"}
	cmd, err := claudeAdapter{}.BuildCommand(tc)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	want := []string{"--json-schema", "--model", "sonnet", "--max-budget-usd", "--no-session-persistence"}
	for _, w := range want {
		if !containsArg(cmd.Argv, w) {
			t.Errorf("Argv = %v, want an arg matching %q", cmd.Argv, w)
		}
	}
	if cmd.Dir != "/repo" {
		t.Errorf("Dir = %q, want /repo", cmd.Dir)
	}
}

func TestClaudeExtractPayloadPrefersStructuredOutput(t *testing.T) {
	stdout := []byte(`{"structured_output": {"a": 1}, "result": "ignored"}`)
	got, err := claudeAdapter{}.ExtractPayload(stdout, nil, nil)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if got != `{"a": 1}` {
		t.Errorf("ExtractPayload = %q, want the structured_output field", got)
	}
}

func TestClaudeExtractPayloadFallsBackToFencedResult(t *testing.T) {
	resultText := "here:\n```json\n{\"a\": 1}\n```"
	stdout, err := json.Marshal(map[string]string{"result": resultText})
	if err != nil {
		t.Fatal(err)
	}
	got, err := claudeAdapter{}.ExtractPayload(stdout, nil, nil)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if got != `{"a": 1}` {
		t.Errorf("ExtractPayload = %q, want fenced contents from result field", got)
	}
}

func TestClaudeExtractPayloadEmptyStdoutErrors(t *testing.T) {
	_, err := claudeAdapter{}.ExtractPayload(nil, nil, nil)
	if err == nil {
		t.Error("expected an error for empty stdout")
	}
}

func TestCodexBuildCommandWritesSchemaAndOutTempFiles(t *testing.T) {
	tc := Context{Binary: "codex", Prompt: "map dependencies", Schema: `{"type":"object"}`, Model: "o1", WorkingDir: "/repo"}
	cmd, err := codexAdapter{}.BuildCommand(tc)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	defer cmd.Cleanup()

	if cmd.SchemaFile == "" || cmd.OutFile == "" {
		t.Fatalf("expected both SchemaFile and OutFile to be set, got %+v", cmd)
	}
	if _, err := os.Stat(cmd.SchemaFile); err != nil {
		t.Errorf("schema temp file missing: %v", err)
	}
	data, err := os.ReadFile(cmd.SchemaFile)
	if err != nil || string(data) != tc.Schema {
		t.Errorf("schema file contents = %q, %v, want %q", data, err, tc.Schema)
	}
	if !containsArg(cmd.Argv, "--output-schema") || !containsArg(cmd.Argv, "-o") {
		t.Errorf("Argv = %v, want --output-schema and -o flags", cmd.Argv)
	}
}

func TestCodexBuildCommandWithoutSchemaSkipsSchemaFile(t *testing.T) {
	tc := Context{Binary: "codex", Prompt: "map dependencies", WorkingDir: "/repo"}
	cmd, err := codexAdapter{}.BuildCommand(tc)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	defer cmd.Cleanup()
	if cmd.SchemaFile != "" {
		t.Errorf("SchemaFile = %q, want empty when no schema given", cmd.SchemaFile)
	}
	if containsArg(cmd.Argv, "--output-schema") {
		t.Errorf("Argv = %v, should not include --output-schema", cmd.Argv)
	}
}

func TestCodexExtractPayloadReadsOutFile(t *testing.T) {
	f, err := os.CreateTemp("", "codex-out-*.json")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	want := `{"internal":{"nodes":[]},"external":[],"edges":[]}`
	if _, err := f.WriteString(want); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cmd := &Command{OutFile: f.Name()}
	got, err := codexAdapter{}.ExtractPayload([]byte("progress line\n"), nil, cmd)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if got != want {
		t.Errorf("ExtractPayload = %q, want %q", got, want)
	}
}

func TestCodexExtractPayloadMissingOutFileErrors(t *testing.T) {
	_, err := codexAdapter{}.ExtractPayload(nil, nil, &Command{})
	if err == nil {
		t.Error("expected an error when no OutFile is configured")
	}
}

func TestCursorBuildCommandEmbedsSchemaAsProse(t *testing.T) {
	tc := Context{Binary: "cursor-agent", Prompt: "find perf issues", Schema: `{"type":"object"}`, WorkingDir: "/repo"}
	cmd, err := cursorAdapter{}.BuildCommand(tc)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	joined := strings.Join(cmd.Argv, " ")
	if !strings.Contains(joined, tc.Schema) {
		t.Errorf("Argv = %v, want the schema embedded in the prompt text", cmd.Argv)
	}
	if !containsArg(cmd.Argv, "--workspace") {
		t.Errorf("Argv = %v, want --workspace flag", cmd.Argv)
	}
}

func TestCursorExtractPayloadExtractsFence(t *testing.T) {
	stdout := []byte("```json\n{\"a\": 1}\n```")
	got, err := cursorAdapter{}.ExtractPayload(stdout, nil, nil)
	if err != nil {
		t.Fatalf("ExtractPayload: %v", err)
	}
	if got != `{"a": 1}` {
		t.Errorf("ExtractPayload = %q, want fenced contents", got)
	}
}

func TestUnknownBuildCommandPassesThroughFlags(t *testing.T) {
	tc := Context{Binary: "mystery-tool", Prompt: "do the analysis", Flags: []string{"--quiet", "--format=json"}, WorkingDir: "/repo"}
	cmd, err := unknownAdapter{}.BuildCommand(tc)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	want := []string{"mystery-tool", "--quiet", "--format=json", "do the analysis"}
	if len(cmd.Argv) != len(want) {
		t.Fatalf("Argv = %v, want %v", cmd.Argv, want)
	}
	for i := range want {
		if cmd.Argv[i] != want[i] {
			t.Errorf("Argv[%d] = %q, want %q", i, cmd.Argv[i], want[i])
		}
	}
}

func TestUnknownCheckAuthAlwaysOK(t *testing.T) {
	status, err := unknownAdapter{}.CheckAuth(context.Background(), "mystery-tool")
	if err != nil || !status.OK {
		t.Errorf("CheckAuth = (%+v, %v), want OK with no error", status, err)
	}
}

func containsArg(argv []string, want string) bool {
	for _, a := range argv {
		if a == want || strings.Contains(a, want) {
			return true
		}
	}
	return false
}
