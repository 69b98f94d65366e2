package cliadapter

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

type claudeAdapter struct{}

func (claudeAdapter) Kind() Kind { return ClaudeCode }

func (claudeAdapter) BuildCommand(tc Context) (*Command, error) {
	argv := []string{tc.Binary, "-p", tc.Prompt, "--output-format", "json"}
	if tc.Schema != "" {
		argv = append(argv, "--json-schema", tc.Schema)
	}
	argv = append(argv, "--allowedTools", "Read,Grep,Glob")
	if tc.Model != "" {
		argv = append(argv, "--model", tc.Model)
	}
	argv = append(argv, "--no-session-persistence")
	if tc.BudgetUSD != nil {
		argv = append(argv, "--max-budget-usd", strconv.FormatFloat(*tc.BudgetUSD, 'f', -1, 64))
	}
	return &Command{Argv: argv, Dir: tc.WorkingDir}, nil
}

func (claudeAdapter) CheckAuth(ctx context.Context, binary string) (AuthStatus, error) {
	cmd := exec.CommandContext(ctx, binary, "auth", "status")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return AuthStatus{OK: false, Message: fmt.Sprintf("claude auth status: %s", string(out))}, nil
	}
	return AuthStatus{OK: true}, nil
}

func (claudeAdapter) ExtractPayload(stdout, stderr []byte, cmd *Command) (string, error) {
	if len(stdout) == 0 {
		return "", errEmptyOutput()
	}
	if v, ok := readStringField(stdout, "structured_output"); ok {
		return v, nil
	}
	if v, ok := readStringField(stdout, "result"); ok {
		return extractFencedJSON(v), nil
	}
	return extractFencedJSON(string(stdout)), nil
}
