// Package scheduler reacts to ref-change events from the git bridge and
// enqueues analysis jobs for presets whose schedule matches (C12, spec
// §4.12). Grounded on the teacher's internal/timeline/loop.go poll-loop
// shape, generalized from a single-queue poller to a ref-change-driven
// dispatcher layered over internal/gitbridge's watcher events.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/arcweave/phantom/internal/analysis/runner"
	"github.com/arcweave/phantom/internal/gitbridge"
	"github.com/arcweave/phantom/internal/logger"
	"github.com/arcweave/phantom/internal/store"
)

// cronCheckInterval is how often the scheduler re-evaluates cron-scheduled
// presets. Cron expressions here are minute-grained, so a minute tick is
// as fine as wiring them any faster would help.
const cronCheckInterval = time.Minute

// Scheduler subscribes to a gitbridge.Watcher and dispatches jobs through
// a shared Runner, whose semaphore it never bypasses (spec §4.12
// "scheduler jobs share the runner's permit semaphore").
type Scheduler struct {
	db            *store.Store
	run           *runner.Runner
	watcher       *gitbridge.Watcher
	defaultBranch string

	startedAt time.Time

	cronMu   sync.Mutex
	cronLast map[int64]time.Time // preset ID -> last time its cron fired
}

func New(db *store.Store, run *runner.Runner, watcher *gitbridge.Watcher, defaultBranch string) *Scheduler {
	return &Scheduler{
		db:            db,
		run:           run,
		watcher:       watcher,
		defaultBranch: defaultBranch,
		startedAt:     time.Now(),
		cronLast:      make(map[int64]time.Time),
	}
}

// Run drives the scheduler until ctx is canceled. On HeadChanged,
// enumerate all "on_main_change" presets and enqueue a run for every
// cache miss (spec §4.12). The watcher emits HeadChanged when .git/HEAD
// changes or when its 60-second poll sees the default branch move;
// RefsChanged is observed but does not trigger scheduled presets.
//
// A parallel minute tick evaluates every preset whose schedule is a cron
// expression (spec §3 schedule: {null, "on_main_change", cron}) and
// enqueues the ones that came due since they were last checked.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(cronCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			if ev.Kind == gitbridge.HeadChanged {
				s.onMainChanged(ctx)
			}
		case now := <-ticker.C:
			s.runDueCronPresets(ctx, now)
		}
	}
}

// runDueCronPresets enqueues every cron preset due to fire by now (spec
// §4.12, generalizing onMainChanged's dispatch to a time-driven trigger
// instead of a ref-change trigger).
func (s *Scheduler) runDueCronPresets(ctx context.Context, now time.Time) {
	due, err := s.dueCronPresets(now)
	if err != nil {
		logger.Error("scheduler: evaluate cron presets", "err", err)
		return
	}

	binary, ok, err := s.db.GetSetting("analysis_default_cli_binary")
	if err != nil || !ok {
		binary = "claude"
	}

	for _, p := range due {
		_, err := s.run.RunAnalysis(ctx, runner.RunRequest{
			PresetID:  p.ID,
			Branch:    s.defaultBranch,
			Level:     1,
			CLIBinary: binary,
		})
		if err != nil {
			logger.Error("scheduler: enqueue cron preset", "preset_id", p.ID, "err", err)
		}
	}
}

// dueCronPresets returns every cron-scheduled preset whose next fire time,
// computed from when it last fired (or from Scheduler startup, if it never
// has), falls at or before now.
func (s *Scheduler) dueCronPresets(now time.Time) ([]*store.AnalysisPreset, error) {
	presets, err := s.db.ListCronPresets()
	if err != nil {
		return nil, err
	}

	s.cronMu.Lock()
	defer s.cronMu.Unlock()

	var due []*store.AnalysisPreset
	for _, p := range presets {
		if p.Schedule == nil {
			continue
		}
		sched, err := parseCron(*p.Schedule)
		if err != nil {
			logger.Warn("scheduler: invalid cron expression", "preset_id", p.ID, "schedule", *p.Schedule, "err", err)
			continue
		}

		last, ok := s.cronLast[p.ID]
		if !ok {
			last = s.startedAt
		}
		if !sched.Next(last).After(now) {
			due = append(due, p)
			s.cronLast[p.ID] = now
		}
	}
	return due, nil
}

func (s *Scheduler) onMainChanged(ctx context.Context) {
	presets, err := s.db.ListScheduledPresets("on_main_change")
	if err != nil {
		logger.Error("scheduler: list scheduled presets", "err", err)
		return
	}

	binary, ok, err := s.db.GetSetting("analysis_default_cli_binary")
	if err != nil || !ok {
		binary = "claude"
	}

	for _, p := range presets {
		_, err := s.run.RunAnalysis(ctx, runner.RunRequest{
			PresetID:  p.ID,
			Branch:    s.defaultBranch,
			Level:     1,
			CLIBinary: binary,
		})
		if err != nil {
			logger.Error("scheduler: enqueue preset", "preset_id", p.ID, "err", err)
		}
	}
}
