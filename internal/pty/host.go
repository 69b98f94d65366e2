// Package pty spawns a shell subprocess behind a pseudo-terminal and
// exposes non-blocking byte I/O, resize, and teardown — the PTY host
// (spec §4.1). Grounded on the teacher's internal/egg/server.go, which
// starts agents under creack/pty and tears them down on exit.
package pty

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Host owns one PTY-backed subprocess. All methods are safe for concurrent
// use; Session (internal/terminal) is the sole intended caller.
type Host struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	ptmx   *os.File
	closed bool

	exitMu   sync.Mutex
	exited   bool
	exitCode *int
}

// Spawn starts shell (defaulting to $SHELL or /bin/sh) inside a pseudo
// terminal of the given size. cwd and env may be empty/nil to inherit the
// host process's working directory and environment.
func Spawn(shell string, cols, rows uint16, cwd string, env []string) (*Host, error) {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	if cwd != "" {
		cmd.Dir = cwd
	}
	if env != nil {
		cmd.Env = env
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	if err := unix.SetNonblock(int(ptmx.Fd()), true); err != nil {
		ptmx.Close()
		cmd.Process.Kill()
		return nil, fmt.Errorf("%w: set nonblock: %v", ErrSpawnFailed, err)
	}

	h := &Host{cmd: cmd, ptmx: ptmx}

	go h.waitForExit()

	return h, nil
}

func (h *Host) waitForExit() {
	err := h.cmd.Wait()
	code := h.cmd.ProcessState.ExitCode()

	h.exitMu.Lock()
	h.exited = true
	if code >= 0 {
		h.exitCode = &code
	} else if err != nil {
		// Killed by signal or otherwise indeterminate.
		h.exitCode = nil
	} else {
		h.exitCode = &code
	}
	h.exitMu.Unlock()
}

// Write forwards bytes to the PTY's input (the subprocess's stdin).
func (h *Host) Write(b []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	return h.ptmx.Write(b)
}

// ReadNonblocking performs one non-blocking read. It returns an empty
// slice and a nil error when no data is currently pending (the contract in
// spec §4.1) rather than blocking. Once the child has exited and all
// buffered output is drained, it returns a *ChildExitedError.
func (h *Host) ReadNonblocking() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	buf := make([]byte, 4096)
	n, err := h.ptmx.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		return []byte{}, nil
	}

	if isAgain(err) {
		return []byte{}, nil
	}

	// EIO/EOF: either the child exited or the PTY slave was closed.
	h.exitMu.Lock()
	exited := h.exited
	code := h.exitCode
	h.exitMu.Unlock()
	if exited {
		return nil, &ChildExitedError{Code: code}
	}
	// Child hasn't been reaped yet but the PTY read failed terminally;
	// treat as exited with unknown code rather than propagating a raw I/O
	// error to callers who only expect the three documented outcomes.
	return nil, &ChildExitedError{Code: nil}
}

func isAgain(err error) bool {
	if errors.Is(err, syscall.EAGAIN) {
		return true
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr.Err, syscall.EAGAIN)
	}
	return false
}

// Resize changes the PTY's window size.
func (h *Host) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return pty.Setsize(h.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

// PID returns the child process ID, or 0 if the process hasn't started.
func (h *Host) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Close terminates the subprocess (SIGTERM, then SIGKILL after a grace
// period) and releases the PTY. Idempotent — a second call returns nil;
// Write, ReadNonblocking and Resize return ErrClosed afterwards.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	if h.cmd.Process != nil {
		h.cmd.Process.Signal(syscall.SIGTERM)
		go func() {
			time.Sleep(3 * time.Second)
			if err := h.cmd.Process.Signal(syscall.Signal(0)); err == nil {
				h.cmd.Process.Kill()
			}
		}()
	}
	return h.ptmx.Close()
}
