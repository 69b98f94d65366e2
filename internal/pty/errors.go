package pty

import "errors"

// ErrSpawnFailed is returned by Spawn when the OS pseudo-terminal or the
// child process could not be created.
var ErrSpawnFailed = errors.New("pty: spawn failed")

// ErrClosed is returned by Write, ReadNonblocking and Resize once Close
// has been called.
var ErrClosed = errors.New("pty: closed")

// ChildExitedError is returned by ReadNonblocking once the child process
// has exited and all buffered output has been drained. Code is nil when
// the exit code could not be determined (e.g. the process was killed by a
// signal).
type ChildExitedError struct {
	Code *int
}

func (e *ChildExitedError) Error() string {
	if e.Code == nil {
		return "pty: child exited"
	}
	return "pty: child exited"
}

// ExitCode reports the child's exit code, or -1 if unknown.
func (e *ChildExitedError) ExitCode() int {
	if e.Code == nil {
		return -1
	}
	return *e.Code
}
