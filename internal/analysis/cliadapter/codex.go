package cliadapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

type codexAdapter struct{}

func (codexAdapter) Kind() Kind { return Codex }

func (codexAdapter) BuildCommand(tc Context) (*Command, error) {
	var schemaFile string
	if tc.Schema != "" {
		f, err := os.CreateTemp("", "phantom-codex-schema-*.json")
		if err != nil {
			return nil, fmt.Errorf("codex: write schema temp file: %w", err)
		}
		if _, err := f.WriteString(tc.Schema); err != nil {
			f.Close()
			return nil, fmt.Errorf("codex: write schema temp file: %w", err)
		}
		f.Close()
		schemaFile = f.Name()
	}

	outFile, err := os.CreateTemp("", "phantom-codex-out-*.json")
	if err != nil {
		return nil, fmt.Errorf("codex: create out temp file: %w", err)
	}
	outFile.Close()

	argv := []string{tc.Binary, "exec", "--full-auto", "--json", "--ephemeral"}
	if schemaFile != "" {
		argv = append(argv, "--output-schema", schemaFile)
	}
	argv = append(argv, "-o", outFile.Name())
	if tc.Model != "" {
		argv = append(argv, "-m", tc.Model)
	}
	argv = append(argv, "-C", tc.WorkingDir, tc.Prompt)

	cleanup := []string{outFile.Name()}
	if schemaFile != "" {
		cleanup = append(cleanup, schemaFile)
	}

	return &Command{
		Argv:       argv,
		Dir:        tc.WorkingDir,
		SchemaFile: schemaFile,
		OutFile:    outFile.Name(),
		cleanup:    cleanup,
	}, nil
}

func (codexAdapter) CheckAuth(ctx context.Context, binary string) (AuthStatus, error) {
	cmd := exec.CommandContext(ctx, binary, "login", "status")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return AuthStatus{OK: false, Message: fmt.Sprintf("codex login status: %s", string(out))}, nil
	}
	return AuthStatus{OK: true}, nil
}

// ExtractPayload reads the result written directly to OutFile by codex.
// stdout is also scanned as JSONL progress events, but the event count is
// discarded; stdout carries no part of the payload (spec §4.8).
func (codexAdapter) ExtractPayload(stdout, stderr []byte, cmd *Command) (string, error) {
	if cmd == nil || cmd.OutFile == "" {
		return "", fmt.Errorf("codex: no output file configured")
	}
	data, err := os.ReadFile(cmd.OutFile)
	if err != nil {
		return "", fmt.Errorf("codex: read output file: %w", err)
	}
	_ = scanProgressEvents(stdout) // observed, not consumed
	return string(data), nil
}

func scanProgressEvents(stdout []byte) int {
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) > 0 {
			n++
		}
	}
	return n
}
