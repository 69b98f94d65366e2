package runner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arcweave/phantom/internal/analysis/cliadapter"
	"github.com/arcweave/phantom/internal/logger"
)

// kindConfigFiles maps a CLI kind to the global config/auth files it keeps
// under $HOME, grounded on the teacher's internal/egg/snapshot.go
// agentConfigFiles table.
var kindConfigFiles = map[cliadapter.Kind][]string{
	cliadapter.ClaudeCode: {"~/.claude/settings.json"},
	cliadapter.Codex:      {"~/.codex/config.json"},
	cliadapter.Cursor:     {"~/.cursor/settings.json"},
}

// configSnapshot holds copies of a CLI tool's global config files taken
// before an analysis subprocess runs, so concurrent jobs against different
// tool kinds don't race on shared CLI state (spec §9 "concurrent jobs
// against different tool kinds must not race on shared CLI auth/config").
type configSnapshot struct {
	files map[string][]byte // path -> original content (nil = didn't exist)
}

// snapshotKindConfig reads kind's config files and saves their contents.
// Returns nil if kind has no known config files or $HOME can't be resolved.
func snapshotKindConfig(kind cliadapter.Kind) *configSnapshot {
	paths, ok := kindConfigFiles[kind]
	if !ok {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	snap := &configSnapshot{files: make(map[string][]byte)}
	for _, p := range paths {
		abs := expandTilde(p, home)
		data, err := os.ReadFile(abs)
		if err != nil {
			snap.files[abs] = nil
		} else {
			snap.files[abs] = data
		}
	}
	return snap
}

// restore reverts config files to their pre-run state.
func (s *configSnapshot) restore() {
	if s == nil {
		return
	}
	for path, data := range s.files {
		if data == nil {
			if _, err := os.Stat(path); err == nil {
				logger.Warn("runner: removing config file created during analysis", "path", path)
				os.Remove(path)
			}
			continue
		}
		current, err := os.ReadFile(path)
		if err != nil || string(current) != string(data) {
			logger.Warn("runner: restoring config file mutated during analysis", "path", path)
			dir := filepath.Dir(path)
			os.MkdirAll(dir, 0700)
			os.WriteFile(path, data, 0600)
		}
	}
}

func expandTilde(p, home string) string {
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}
