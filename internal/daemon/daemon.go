// Package daemon wires together every phantom subsystem into one
// long-running process. Grounded on the teacher's internal/daemon/
// daemon.go: same store-open / signal-handling / multi-goroutine /
// graceful-shutdown shape, generalized from wingthing's single
// timeline-engine-plus-transport pair to phantom's concurrent subsystems
// (git watcher, scheduler, runner status forwarder, command server, event
// stream server). Each terminal session's render pump is started by the
// command server when the session is created.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcweave/phantom/internal/analysis/runner"
	"github.com/arcweave/phantom/internal/analysis/scheduler"
	"github.com/arcweave/phantom/internal/config"
	"github.com/arcweave/phantom/internal/gitbridge"
	"github.com/arcweave/phantom/internal/ipc"
	"github.com/arcweave/phantom/internal/logger"
	"github.com/arcweave/phantom/internal/store"
	"github.com/arcweave/phantom/internal/terminal"
)

// Run opens the shared store, constructs every subsystem, and blocks
// until a termination signal or a fatal subsystem error (spec §9 process
// topology: one daemon process per repository).
func Run(cfg *config.Config) error {
	if err := cfg.EnsureDir(); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogPath()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	_, statErr := os.Stat(cfg.DBPath())
	firstRun := os.IsNotExist(statErr)

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	recoverInterruptedAnalyses(db)

	rc, err := config.LoadRepoConfig(cfg.Dir)
	if err != nil {
		return fmt.Errorf("load repo config: %w", err)
	}
	if rc.DefaultBranch != "" {
		cfg.DefaultBranch = rc.DefaultBranch
	}
	seedSettingsFromRepoConfig(db, rc, firstRun)

	git := gitbridge.New(cfg.RepoPath)
	watcher, err := gitbridge.NewWatcher(cfg.RepoPath, cfg.DefaultBranch)
	if err != nil {
		return fmt.Errorf("open git watcher: %w", err)
	}

	run := runner.New(db, git, cfg.RepoPath)
	sched := scheduler.New(db, run, watcher, cfg.DefaultBranch)
	mux := terminal.NewMultiplexer()
	hub := ipc.NewHub()
	srv := ipc.NewServer(db, git, run, mux, cfg.RepoPath, cfg.SocketPath(), cfg.DefaultShell, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 4)

	go func() {
		logger.Info("git watcher started", "repo", cfg.RepoPath)
		watcher.Run(ctx)
	}()

	go func() {
		logger.Info("scheduler started", "default_branch", cfg.DefaultBranch)
		sched.Run(ctx)
	}()

	go hub.PumpRunnerEvents(ctx, run.Events())

	go func() {
		logger.Info("command surface listening", "socket", cfg.SocketPath())
		errCh <- srv.ListenAndServe(ctx)
	}()

	go func() {
		eventsSrv := &http.Server{Addr: cfg.EventsAddr(), Handler: http.HandlerFunc(hub.ServeHTTP)}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			eventsSrv.Shutdown(shutdownCtx)
		}()
		logger.Info("event stream listening", "addr", cfg.EventsAddr())
		if err := eventsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("phantom daemon started", "dir", cfg.Dir)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		closeAllSessions(mux)
		time.Sleep(time.Second)
	case err := <-errCh:
		if err != nil {
			cancel()
			return fmt.Errorf("daemon error: %w", err)
		}
	}

	return nil
}

// recoverInterruptedAnalyses marks any analysis left "running" by a prior
// crashed process as failed, mirroring the teacher's recoverInterrupted
// task-sweep on startup.
func recoverInterruptedAnalyses(db *store.Store) {
	rows, err := db.DB().Query("SELECT id FROM analyses WHERE status = 'running'")
	if err != nil {
		return
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if rows.Scan(&id) == nil {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		if err := db.FailAnalysis(id, "daemon restarted while analysis was running", nil, nil); err != nil {
			logger.Error("daemon: recover interrupted analysis", "id", id, "err", err)
			continue
		}
		logger.Info("recovered interrupted analysis", "id", id)
	}
}

// seedSettingsFromRepoConfig copies config.yaml values into the settings
// table: on the run that creates the database they replace the store's
// built-in defaults, and on later runs they fill only keys that are still
// unset, mirroring the teacher's pattern of YAML config seeding persistent
// state rather than overriding it on every restart.
func seedSettingsFromRepoConfig(db *store.Store, rc *config.RepoConfig, firstRun bool) {
	seed := func(key, value string) {
		if value == "" {
			return
		}
		if _, ok, err := db.GetSetting(key); err == nil && (firstRun || !ok) {
			db.SetSetting(key, value)
		}
	}
	seed("analysis_default_cli_binary", rc.DefaultCLIBinary)
	seed("default_model", rc.DefaultModel)
	seed("idle_timeout", rc.IdleTimeout)
	if rc.MaxConcurrency > 0 {
		seed("analysis_max_concurrency", fmt.Sprintf("%d", rc.MaxConcurrency))
	}
}

func closeAllSessions(mux *terminal.Multiplexer) {
	for _, sess := range mux.All() {
		if err := sess.Close(); err != nil {
			logger.Warn("daemon: close session on shutdown", "session_id", sess.ID, "err", err)
		}
	}
}
