package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ScheduleField accepts a YAML scalar that is either absent, the literal
// "on_main_change", or a five-field cron expression — all under one YAML
// key, the same scalar-or-list custom-unmarshal idiom the teacher uses for
// config.PathList in internal/config/wing.go.
type ScheduleField struct {
	OnMainChange bool
	Cron         string
}

// UnmarshalYAML accepts null, the bare string "on_main_change", or any
// other string treated as a cron expression.
func (s *ScheduleField) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == 0 || value.Tag == "!!null" {
		*s = ScheduleField{}
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "on_main_change" {
		*s = ScheduleField{OnMainChange: true}
		return nil
	}
	*s = ScheduleField{Cron: raw}
	return nil
}

// MarshalYAML serializes ScheduleField back to the scalar form it was
// decoded from.
func (s ScheduleField) MarshalYAML() (any, error) {
	switch {
	case s.OnMainChange:
		return "on_main_change", nil
	case s.Cron != "":
		return s.Cron, nil
	default:
		return nil, nil
	}
}

// RepoConfig holds the repo-local settings persisted at
// <repo>/.phantom/config.yaml. It seeds the settings table on first run
// (see internal/store) but is not itself the source of truth afterward —
// settings edited via the UI live in the database, matching the
// store-is-authoritative policy in spec.md §4.6.
type RepoConfig struct {
	DefaultCLIBinary string        `yaml:"default_cli_binary,omitempty"`
	DefaultModel     string        `yaml:"default_model,omitempty"`
	MaxConcurrency   int           `yaml:"max_concurrency,omitempty"`
	DefaultBranch    string        `yaml:"default_branch,omitempty"`
	IdleTimeout      string        `yaml:"idle_timeout,omitempty"` // e.g. "4h", terminal session reaper
	DefaultSchedule  ScheduleField `yaml:"default_schedule,omitempty"`
}

// LoadRepoConfig reads config.yaml from dir. A missing file yields a
// zero-value config (not an error) — all fields fall back to store defaults.
func LoadRepoConfig(stateDir string) (*RepoConfig, error) {
	cfg := &RepoConfig{}
	data, err := os.ReadFile(filepath.Join(stateDir, "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveRepoConfig writes config.yaml to dir.
func SaveRepoConfig(stateDir string, cfg *RepoConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stateDir, "config.yaml"), data, 0644)
}
