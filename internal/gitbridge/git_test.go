package gitbridge

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=phantom-test", "GIT_AUTHOR_EMAIL=test@phantom.dev",
			"GIT_COMMITTER_NAME=phantom-test", "GIT_COMMITTER_EMAIL=test@phantom.dev",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init", "-q", "-b", "main")
	run("config", "user.name", "phantom-test")
	run("config", "user.email", "test@phantom.dev")

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", "a.txt")
	run("commit", "-q", "-m", "initial commit")
	run("branch", "feature/x")

	return dir
}

func TestListBranches(t *testing.T) {
	dir := initTestRepo(t)
	b := New(dir)

	branches, err := b.ListBranches(context.Background())
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("got %d branches, want 2 (main, feature/x)", len(branches))
	}

	var foundMain, foundFeature bool
	for _, br := range branches {
		switch br.Name {
		case "main":
			foundMain = true
			if !br.IsCurrent {
				t.Error("main should be the current branch")
			}
		case "feature/x":
			foundFeature = true
			if br.IsCurrent {
				t.Error("feature/x should not be current")
			}
		}
		if br.CommitSHA == "" {
			t.Errorf("branch %q has empty CommitSHA", br.Name)
		}
	}
	if !foundMain || !foundFeature {
		t.Errorf("branches = %+v, want main and feature/x", branches)
	}
}

func TestCurrentBranch(t *testing.T) {
	dir := initTestRepo(t)
	b := New(dir)

	got, err := b.CurrentBranch(context.Background())
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if got != "main" {
		t.Errorf("CurrentBranch() = %q, want main", got)
	}
}

func TestResolveRef(t *testing.T) {
	dir := initTestRepo(t)
	b := New(dir)

	head, err := b.ResolveRef(context.Background(), "HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	byName, err := b.ResolveRef(context.Background(), "main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if head != byName {
		t.Errorf("HEAD resolved to %q, main resolved to %q, want equal", head, byName)
	}
	if len(head) != 40 {
		t.Errorf("resolved SHA %q is not a full 40-char hash", head)
	}
}

func TestResolveRefUnknownReturnsGitError(t *testing.T) {
	dir := initTestRepo(t)
	b := New(dir)

	_, err := b.ResolveRef(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("expected an error resolving an unknown ref")
	}
	if _, ok := err.(*Error); !ok {
		t.Errorf("error type = %T, want *gitbridge.Error", err)
	}
}

func TestMergeBase(t *testing.T) {
	dir := initTestRepo(t)
	b := New(dir)
	ctx := context.Background()

	base, err := b.MergeBase(ctx, "main", "feature/x")
	if err != nil {
		t.Fatalf("MergeBase: %v", err)
	}
	head, err := b.ResolveRef(ctx, "main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if base != head {
		t.Errorf("MergeBase = %q, want %q (feature/x has not diverged yet)", base, head)
	}
}
