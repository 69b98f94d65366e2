// Package gitbridge shells out to the system git binary (C7): branch
// listing, current branch, HEAD resolution, merge-base, plus a
// filesystem-watched ref-change notifier. Grounded on the teacher's
// subprocess-invocation idiom (internal/tools/cli.go spawns a binary and
// captures stdout/stderr) and, for the exec.CommandContext("git", ...)
// shape itself, on the retrieval pack's attractor-engine handlers.go,
// which shells to git the same way.
package gitbridge

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Error wraps a failing git invocation, carrying the command's stderr
// (spec §7 GitFailed(stderr)).
type Error struct {
	Args   []string
	Stderr string
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Stderr)
}

// Bridge shells out to git within one repository root.
type Bridge struct {
	repoRoot string
}

func New(repoRoot string) *Bridge {
	return &Bridge{repoRoot: repoRoot}
}

func (b *Bridge) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = b.repoRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &Error{Args: args, Stderr: strings.TrimSpace(stderr.String())}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Branch describes one local branch (spec §6 list_branches).
type Branch struct {
	Name      string
	IsCurrent bool
	CommitSHA string
}

// ListBranches enumerates local branches with their current HEAD commit.
func (b *Bridge) ListBranches(ctx context.Context) ([]Branch, error) {
	out, err := b.run(ctx, "branch", "--format=%(refname:short) %(objectname) %(HEAD)")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var branches []Branch
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		br := Branch{Name: fields[0], CommitSHA: fields[1]}
		if len(fields) >= 3 && fields[2] == "*" {
			br.IsCurrent = true
		}
		branches = append(branches, br)
	}
	return branches, nil
}

// CurrentBranch returns the checked-out branch's short name.
func (b *Bridge) CurrentBranch(ctx context.Context) (string, error) {
	return b.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// ResolveRef resolves any ref (branch, tag, HEAD) to its full commit SHA.
func (b *Bridge) ResolveRef(ctx context.Context, ref string) (string, error) {
	return b.run(ctx, "rev-parse", ref)
}

// MergeBase returns the most recent common ancestor of a and c.
func (b *Bridge) MergeBase(ctx context.Context, a, c string) (string, error) {
	return b.run(ctx, "merge-base", a, c)
}
