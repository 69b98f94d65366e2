package cliadapter

import "context"

type unknownAdapter struct{}

func (unknownAdapter) Kind() Kind { return Unknown }

func (unknownAdapter) BuildCommand(tc Context) (*Command, error) {
	argv := append([]string{tc.Binary}, tc.Flags...)
	argv = append(argv, tc.Prompt)
	return &Command{Argv: argv, Dir: tc.WorkingDir}, nil
}

// CheckAuth is a no-op for unrecognized tools: there's no known auth
// sub-command to probe, so the pre-check always succeeds and any failure
// surfaces later as a regular nonzero-exit job failure.
func (unknownAdapter) CheckAuth(ctx context.Context, binary string) (AuthStatus, error) {
	return AuthStatus{OK: true}, nil
}

func (unknownAdapter) ExtractPayload(stdout, stderr []byte, cmd *Command) (string, error) {
	return string(stdout), nil
}
