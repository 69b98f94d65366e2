// Package cliadapter implements the CLI abstraction (C8): given a tool
// kind, prompt, schema, and working directory, build the subprocess
// invocation and extract its structured result payload. Modeled as a
// tagged variant over a shared interface, the way the teacher models
// internal/agent's Agent implementations (Claude, Codex, Cursor each
// satisfying a common Run/Health contract) — generalized here to the
// BuildCommand/CheckAuth/ExtractPayload trio spec.md §4.8/§9 calls for.
package cliadapter

import (
	"context"
	"os"
	"strings"
)

// Kind is the closed set of recognized CLI tools (spec §4.8).
type Kind int

const (
	ClaudeCode Kind = iota
	Codex
	Cursor
	Unknown
)

// DetectKind matches cliBinary by substring against the known tool
// binaries, first match wins (spec §4.8).
func DetectKind(cliBinary string) Kind {
	lower := strings.ToLower(cliBinary)
	switch {
	case strings.Contains(lower, "claude"):
		return ClaudeCode
	case strings.Contains(lower, "codex"):
		return Codex
	case strings.Contains(lower, "cursor"):
		return Cursor
	default:
		return Unknown
	}
}

// Context is everything a command/payload needs beyond the tool kind.
type Context struct {
	Binary     string
	Prompt     string
	Schema     string // JSON schema, empty if no output schema is to be enforced
	WorkingDir string
	Model      string
	BudgetUSD  *float64
	Flags      []string // Unknown-kind passthrough flags
}

// Command is a built subprocess invocation plus any temp files that must
// be cleaned up after the run.
type Command struct {
	Argv       []string
	Env        []string
	Dir        string
	SchemaFile string // Codex: schema written here
	OutFile    string // Codex: result written here
	cleanup    []string
}

// Cleanup removes any temp files the adapter created.
func (c *Command) Cleanup() {
	for _, f := range c.cleanup {
		os.Remove(f)
	}
}

// AuthStatus is the outcome of CheckAuth.
type AuthStatus struct {
	OK      bool
	Message string // populated when !OK (spec §7 AuthRequired)
}

// Adapter is the shared interface every tool kind variant satisfies
// (spec §9 "dynamic dispatch across CLI kinds").
type Adapter interface {
	Kind() Kind
	BuildCommand(tc Context) (*Command, error)
	CheckAuth(ctx context.Context, binary string) (AuthStatus, error)
	ExtractPayload(stdout, stderr []byte, cmd *Command) (string, error)
}

// For builds the adapter for a detected kind.
func For(k Kind) Adapter {
	switch k {
	case ClaudeCode:
		return claudeAdapter{}
	case Codex:
		return codexAdapter{}
	case Cursor:
		return cursorAdapter{}
	default:
		return unknownAdapter{}
	}
}
