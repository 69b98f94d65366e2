package gitbridge

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arcweave/phantom/internal/logger"
)

// RefEventKind distinguishes the two change notifications the watcher
// emits (spec §4.7).
type RefEventKind int

const (
	RefsChanged RefEventKind = iota
	HeadChanged
)

// RefEvent is delivered on Watcher.Events.
type RefEvent struct {
	Kind RefEventKind
}

// Watcher observes a repository's .git/refs directory and HEAD file,
// falling back to 60-second polling so a missed platform event is always
// eventually reconciled (spec §4.7). This is fsnotify's first real call
// site in the corpus — the teacher's go.mod lists it but never imports it.
type Watcher struct {
	bridge       *Bridge
	defaultBranch string
	events       chan RefEvent
	fsw          *fsnotify.Watcher
	lastHead     string
}

// NewWatcher creates a watcher for the repository at repoRoot, polling the
// defaultBranch (e.g. "main") for HeadChanged synthesis.
func NewWatcher(repoRoot, defaultBranch string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	gitDir := filepath.Join(repoRoot, ".git")
	if err := fsw.Add(filepath.Join(gitDir, "refs", "heads")); err != nil {
		logger.Warn("gitbridge: watch refs/heads failed, relying on polling fallback", "err", err)
	}
	if err := fsw.Add(gitDir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		bridge:        New(repoRoot),
		defaultBranch: defaultBranch,
		events:        make(chan RefEvent, 16),
		fsw:           fsw,
	}, nil
}

// Events returns the channel on which RefsChanged/HeadChanged fire.
func (w *Watcher) Events() <-chan RefEvent {
	return w.events
}

// Run drives the watcher until ctx is canceled: forwarding platform events
// and, independently, polling the default branch's HEAD every 60 seconds
// as a reconciliation fallback.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	w.pollHead(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("gitbridge: watcher error", "err", err)
		case <-ticker.C:
			w.pollHead(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if filepath.Base(ev.Name) == "HEAD" {
		w.emit(HeadChanged)
		return
	}
	w.emit(RefsChanged)
}

func (w *Watcher) pollHead(ctx context.Context) {
	if w.defaultBranch == "" {
		return
	}
	sha, err := w.bridge.ResolveRef(ctx, w.defaultBranch)
	if err != nil {
		return
	}
	if w.lastHead != "" && sha != w.lastHead {
		w.emit(HeadChanged)
	}
	w.lastHead = sha
}

func (w *Watcher) emit(kind RefEventKind) {
	select {
	case w.events <- RefEvent{Kind: kind}:
	default:
		// Coalesce: a full channel means a reconciliation is already pending.
	}
}
