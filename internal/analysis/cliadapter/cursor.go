package cliadapter

import (
	"context"
	"fmt"
	"os/exec"
)

type cursorAdapter struct{}

func (cursorAdapter) Kind() Kind { return Cursor }

func (cursorAdapter) BuildCommand(tc Context) (*Command, error) {
	prompt := tc.Prompt
	if tc.Schema != "" {
		// Cursor enforces no schema mechanically; embed it as prose instead
		// (spec §4.8).
		prompt = fmt.Sprintf("%s\n\nRespond with JSON matching this schema:\n%s", prompt, tc.Schema)
	}
	argv := []string{
		tc.Binary, "agent", "-p", prompt,
		"--output-format", "json", "--mode", "plan", "--trust",
		"--workspace", tc.WorkingDir,
	}
	return &Command{Argv: argv, Dir: tc.WorkingDir}, nil
}

func (cursorAdapter) CheckAuth(ctx context.Context, binary string) (AuthStatus, error) {
	cmd := exec.CommandContext(ctx, binary, "agent", "status")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return AuthStatus{OK: false, Message: fmt.Sprintf("cursor agent status: %s", string(out))}, nil
	}
	return AuthStatus{OK: true}, nil
}

func (cursorAdapter) ExtractPayload(stdout, stderr []byte, cmd *Command) (string, error) {
	if len(stdout) == 0 {
		return "", errEmptyOutput()
	}
	return extractFencedJSON(string(stdout)), nil
}
