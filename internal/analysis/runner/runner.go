// Package runner implements the bounded-concurrency job engine (C11): one
// process-wide semaphore gates subprocess jobs spawned by both the
// scheduler and direct UI requests, with cache-hit short-circuiting, an
// auth pre-check (health-cached the way the teacher's
// internal/timeline/loop.go caches agent health), the timeout/retry policy
// in spec.md §4.11, a startup watchdog, and config snapshot/restore around
// each subprocess run (both grounded on the teacher's internal/egg/server.go).
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/arcweave/phantom/internal/analysis/cliadapter"
	"github.com/arcweave/phantom/internal/analysis/parser"
	"github.com/arcweave/phantom/internal/gitbridge"
	"github.com/arcweave/phantom/internal/logger"
	"github.com/arcweave/phantom/internal/store"
)

const (
	jobTimeout          = 5 * time.Minute
	killGrace           = 5 * time.Second
	rateLimitWait       = 30 * time.Second
	healthCacheTTL      = 60 * time.Second
	startupWatchdogWait = 15 * time.Second
)

// StatusEvent is emitted on every job status transition (spec §6
// analysis:status_changed).
type StatusEvent struct {
	AnalysisID int64
	Status     store.AnalysisStatus
}

type healthEntry struct {
	status    cliadapter.AuthStatus
	checkedAt time.Time
}

// Runner is the process-wide bounded job engine. Exactly one exists per
// daemon process (spec §9 "exactly one process-wide resource").
type Runner struct {
	db   *store.Store
	git  *gitbridge.Bridge
	repo string

	sem *semaphore.Weighted

	healthMu    sync.Mutex
	healthCache map[string]healthEntry

	events chan StatusEvent
}

// New creates a Runner whose concurrency cap is read from settings at
// startup (spec §9 "instantiate it from the settings row at startup").
func New(db *store.Store, git *gitbridge.Bridge, repo string) *Runner {
	n := db.AnalysisMaxConcurrency()
	return &Runner{
		db:          db,
		git:         git,
		repo:        repo,
		sem:         semaphore.NewWeighted(int64(n)),
		healthCache: make(map[string]healthEntry),
		events:      make(chan StatusEvent, 64),
	}
}

// Events returns the channel on which status transitions are delivered.
func (r *Runner) Events() <-chan StatusEvent {
	return r.events
}

func (r *Runner) emit(id int64, status store.AnalysisStatus) {
	select {
	case r.events <- StatusEvent{AnalysisID: id, Status: status}:
	default:
		logger.Warn("runner: status event dropped, channel full", "analysis_id", id)
	}
}

// RunRequest carries everything RunAnalysis needs beyond stored config
// (spec §6 run_analysis). TargetLabel/TargetPath come from the parent
// graph node's metadata whose id equals TargetNodeID (spec §4.11 step 7);
// callers resolve that lookup before invoking RunAnalysis.
type RunRequest struct {
	PresetID     int64
	Branch       string
	Level        int
	TargetNodeID *string
	TargetLabel  string
	TargetPath   string
	CLIBinary    string
	Model        string
	BudgetUSD    *float64
}

// RunAnalysis implements the pipeline in spec §4.11: resolve HEAD, probe
// cache, enqueue, acquire a permit, check auth, build+spawn the command,
// parse, persist. Returns the analysis ID immediately on a cache hit
// without spawning a subprocess (spec §8 "cache idempotence").
func (r *Runner) RunAnalysis(ctx context.Context, req RunRequest) (int64, error) {
	if req.Level == 0 {
		req.Level = 1
	}

	commitSHA, err := r.git.ResolveRef(ctx, req.Branch)
	if err != nil {
		return 0, fmt.Errorf("resolve branch %s: %w", req.Branch, err)
	}

	if hit, err := r.db.FindCacheHit(r.repo, commitSHA, req.PresetID, req.Level, req.TargetNodeID); err != nil {
		return 0, err
	} else if hit != nil {
		return hit.ID, nil
	}

	preset, err := r.db.GetAnalysisPreset(req.PresetID)
	if err != nil {
		return 0, err
	}
	if preset == nil {
		return 0, fmt.Errorf("preset %d not found", req.PresetID)
	}

	id, err := r.db.CreateAnalysis(&store.Analysis{
		RepoPath: r.repo, CommitSHA: commitSHA, Branch: req.Branch,
		PresetID: req.PresetID, Level: req.Level, TargetNodeID: req.TargetNodeID,
	})
	if err != nil {
		return 0, err
	}
	r.emit(id, store.StatusQueued)

	go r.execute(ctx, id, commitSHA, preset, req)

	return id, nil
}

func (r *Runner) execute(ctx context.Context, id int64, commitSHA string, preset *store.AnalysisPreset, req RunRequest) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.fail(id, "job canceled before a concurrency slot was available")
		return
	}
	defer r.sem.Release(1)

	r.db.SetAnalysisStatus(id, store.StatusRunning)
	r.emit(id, store.StatusRunning)

	kind := cliadapter.DetectKind(req.CLIBinary)
	adapter := cliadapter.For(kind)

	auth, err := r.checkAuthCached(ctx, kind, adapter, req.CLIBinary)
	if err != nil || !auth.OK {
		msg := "authentication required"
		if auth.Message != "" {
			msg = auth.Message
		}
		r.fail(id, msg)
		return
	}

	prompt := substitutePrompt(preset.PromptTemplate, r.repo, req.Branch, commitSHA, req)

	cmdSpec, err := adapter.BuildCommand(cliadapter.Context{
		Binary:     req.CLIBinary,
		Prompt:     prompt,
		Schema:     schemaForPresetType(preset.Type),
		WorkingDir: r.repo,
		Model:      req.Model,
		BudgetUSD:  req.BudgetUSD,
	})
	if err != nil {
		r.fail(id, fmt.Sprintf("build command: %v", err))
		return
	}
	defer cmdSpec.Cleanup()

	snap := snapshotKindConfig(kind)
	defer snap.restore()

	stdout, stderr, outcome := r.spawnWithTimeout(ctx, id, cmdSpec)
	switch outcome {
	case outcomeTimeout:
		r.fail(id, "Analysis timed out after 5 minutes.")
		return
	case outcomeNetworkError:
		r.fail(id, "Network error. Check your internet connection.")
		return
	case outcomeRateLimited:
		time.Sleep(rateLimitWait)
		stdout, stderr, outcome = r.spawnWithTimeout(ctx, id, cmdSpec)
		if outcome != outcomeOK {
			r.fail(id, "Rate limited. Try again later.")
			return
		}
	case outcomeNonzeroExit:
		r.fail(id, truncatedStderr(stderr))
		return
	}

	payload, err := adapter.ExtractPayload(stdout, stderr, cmdSpec)
	if err != nil {
		r.fail(id, fmt.Sprintf("extract payload: %v", err))
		return
	}

	r.parseAndPersist(id, preset, payload)
}

func (r *Runner) fail(id int64, msg string) {
	if err := r.db.FailAnalysis(id, msg, nil, nil); err != nil {
		logger.Error("runner: fail analysis", "err", err)
	}
	r.emit(id, store.StatusFailed)
}

// checkAuthCached consults a 60-second health cache before shelling out to
// the per-tool auth probe, mirroring the teacher's
// internal/timeline/loop.go CheckHealth pattern.
func (r *Runner) checkAuthCached(ctx context.Context, kind cliadapter.Kind, adapter cliadapter.Adapter, binary string) (cliadapter.AuthStatus, error) {
	r.healthMu.Lock()
	if e, ok := r.healthCache[binary]; ok && time.Since(e.checkedAt) < healthCacheTTL {
		r.healthMu.Unlock()
		return e.status, nil
	}
	r.healthMu.Unlock()

	status, err := adapter.CheckAuth(ctx, binary)
	if err != nil {
		return cliadapter.AuthStatus{}, err
	}

	r.healthMu.Lock()
	r.healthCache[binary] = healthEntry{status: status, checkedAt: time.Now()}
	r.healthMu.Unlock()

	return status, nil
}

type spawnOutcome int

const (
	outcomeOK spawnOutcome = iota
	outcomeTimeout
	outcomeRateLimited
	outcomeNetworkError
	outcomeNonzeroExit
)

var networkMarkers = []string{"connection refused", "no route to host", "network is unreachable", "dial tcp", "timeout awaiting response"}
var rateLimitMarkers = []string{"rate limit", "rate_limit", "too many requests"}

// spawnWithTimeout runs cmdSpec with a 5-minute budget, sending SIGTERM
// then SIGKILL after a 5-second grace period on timeout (spec §4.11, §5).
// A background watchdog logs a diagnostic warning if the subprocess
// produces no output within startupWatchdogWait; this is purely
// diagnostic and never changes the job's outcome (grounded on the
// teacher's internal/egg/server.go startupWatchdog).
func (r *Runner) spawnWithTimeout(ctx context.Context, id int64, cmdSpec *cliadapter.Command) (stdout, stderr []byte, outcome spawnOutcome) {
	runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, cmdSpec.Argv[0], cmdSpec.Argv[1:]...)
	cmd.Dir = cmdSpec.Dir
	cmd.Env = cmdSpec.Env
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killGrace

	var outMu sync.Mutex
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &syncWriter{mu: &outMu, w: &outBuf}
	cmd.Stderr = &errBuf

	if err := cmd.Start(); err != nil {
		return nil, []byte(err.Error()), outcomeNonzeroExit
	}

	done := make(chan struct{})
	go r.startupWatchdog(id, cmd.Process.Pid, &outMu, &outBuf, done)

	err := cmd.Wait()
	close(done)
	stdout, stderr = []byte(outBuf.String()), []byte(errBuf.String())

	if runCtx.Err() != nil {
		return stdout, stderr, outcomeTimeout
	}
	if err == nil {
		return stdout, stderr, outcomeOK
	}

	lower := strings.ToLower(errBuf.String())
	for _, m := range rateLimitMarkers {
		if strings.Contains(lower, m) {
			return stdout, stderr, outcomeRateLimited
		}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		if code == 124 || code == 429 {
			return stdout, stderr, outcomeRateLimited
		}
	}
	for _, m := range networkMarkers {
		if strings.Contains(lower, m) {
			return stdout, stderr, outcomeNetworkError
		}
	}
	return stdout, stderr, outcomeNonzeroExit
}

// startupWatchdog logs diagnostic info if the subprocess produces no
// stdout within startupWatchdogWait. It never alters the job outcome.
func (r *Runner) startupWatchdog(id int64, pid int, mu *sync.Mutex, outBuf *strings.Builder, done <-chan struct{}) {
	timer := time.NewTimer(startupWatchdogWait)
	defer timer.Stop()

	select {
	case <-done:
		return
	case <-timer.C:
	}

	mu.Lock()
	empty := outBuf.Len() == 0
	mu.Unlock()
	if !empty {
		return
	}

	logger.Warn("runner: watchdog: no stdout after 15s", "analysis_id", id, "pid", pid)
	if err := syscall.Kill(pid, 0); err != nil {
		logger.Warn("runner: watchdog: process appears dead", "analysis_id", id, "pid", pid, "err", err)
	} else {
		logger.Warn("runner: watchdog: process alive but producing no output", "analysis_id", id, "pid", pid)
	}
}

// syncWriter guards a strings.Builder so the watchdog can safely peek at
// accumulated stdout while the subprocess is still writing to it.
type syncWriter struct {
	mu *sync.Mutex
	w  *strings.Builder
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func truncatedStderr(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	const max = 500
	if len(s) > max {
		s = s[:max]
	}
	if s == "" {
		return "analysis exited with a nonzero status"
	}
	return s
}

func substitutePrompt(template, repoPath, branch, commitSHA string, req RunRequest) string {
	out := template
	out = strings.ReplaceAll(out, "{{repo_path}}", repoPath)
	out = strings.ReplaceAll(out, "{{branch}}", branch)
	out = strings.ReplaceAll(out, "{{commit_sha}}", commitSHA)
	out = strings.ReplaceAll(out, "{{target_label}}", req.TargetLabel)
	out = strings.ReplaceAll(out, "{{target_path}}", req.TargetPath)
	return out
}

func (r *Runner) parseAndPersist(id int64, preset *store.AnalysisPreset, payload string) {
	switch preset.Type {
	case "diagram":
		graph, violations, err := parser.ParseArchitectureGraph(payload)
		if err != nil {
			r.failParse(id, payload, err)
			return
		}
		if len(violations) > 0 {
			r.failValidation(id, payload, graph, violations)
			return
		}
		graphJSON := mustJSON(graph)
		if err := r.db.CompleteAnalysis(id, payload, &graphJSON, nil); err != nil {
			logger.Error("runner: persist diagram result", "err", err)
		}
	case "analysis":
		findings, violations, err := parser.ParseAnalysisFindings(payload, presetShort(preset.Name), parser.CategoriesForPreset(preset.Name))
		if err != nil {
			r.failParse(id, payload, err)
			return
		}
		if len(violations) > 0 {
			r.failValidation(id, payload, findings, violations)
			return
		}
		findingsJSON := mustJSON(findings)
		if err := r.db.CompleteAnalysis(id, payload, nil, &findingsJSON); err != nil {
			logger.Error("runner: persist findings result", "err", err)
		}
	default:
		depMap, violations, err := parser.ParseDependencyMap(payload)
		if err != nil {
			r.failParse(id, payload, err)
			return
		}
		if len(violations) > 0 {
			r.failValidation(id, payload, depMap, violations)
			return
		}
		graphJSON := mustJSON(depMap)
		if err := r.db.CompleteAnalysis(id, payload, &graphJSON, nil); err != nil {
			logger.Error("runner: persist dependency map result", "err", err)
		}
	}
	r.emit(id, store.StatusCompleted)
}

func (r *Runner) failParse(id int64, raw string, err error) {
	msg := err.Error()
	if err := r.db.FailAnalysis(id, msg, &raw, nil); err != nil {
		logger.Error("runner: persist parse failure", "err", err)
	}
	r.emit(id, store.StatusFailed)
}

// failValidation persists the parsed-but-invalid payload for forensic
// display (spec §4.9: "partial graphs are kept for forensic display").
func (r *Runner) failValidation(id int64, raw string, parsed any, violations []parser.ValidationError) {
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.String()
	}
	msg := strings.Join(msgs, "; ")
	parsedJSON := mustJSON(parsed)
	if err := r.db.FailAnalysis(id, msg, &raw, &parsedJSON); err != nil {
		logger.Error("runner: persist validation failure", "err", err)
	}
	r.emit(id, store.StatusFailed)
}

// schemaForPresetType selects the JSON schema a CLI adapter enforces output
// against (spec §4.8 schema enforcement), keyed by preset type.
func schemaForPresetType(presetType string) string {
	switch presetType {
	case "diagram":
		return parser.SchemaArchitectureGraph()
	case "analysis":
		return parser.SchemaAnalysisFindings()
	default:
		return parser.SchemaDependencyMap()
	}
}

func presetShort(name string) string {
	lower := strings.ToLower(name)
	fields := strings.FieldsFunc(lower, func(r rune) bool { return r == ' ' || r == '-' })
	if len(fields) == 0 {
		return "preset"
	}
	return fields[0]
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
