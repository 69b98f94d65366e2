package store

import (
	"database/sql"
	"fmt"
	"time"
)

// AnalysisPreset is a stored template for running an analysis (spec §3
// Preset, analysis-preset variant).
type AnalysisPreset struct {
	ID             int64
	Name           string
	Type           string // diagram | analysis | custom
	PromptTemplate string
	Schedule       *string // NULL | "on_main_change" | cron expression
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CLIPreset is a stored template for launching a CLI-backed session (spec
// §3 Preset, CLI-launch-preset variant).
type CLIPreset struct {
	ID         int64
	Name       string
	CLIBinary  string
	Flags      string
	WorkingDir *string
	EnvVars    *string // JSON object
	BudgetUSD  *float64
}

func (s *Store) CreateAnalysisPreset(name, kind, prompt string, schedule *string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO presets (name, type, prompt_template, schedule) VALUES (?, ?, ?, ?)",
		name, kind, prompt, schedule,
	)
	if err != nil {
		return 0, fmt.Errorf("create analysis preset: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) GetAnalysisPreset(id int64) (*AnalysisPreset, error) {
	p := &AnalysisPreset{}
	err := s.db.QueryRow(`SELECT id, name, type, prompt_template, schedule, created_at, updated_at
		FROM presets WHERE id = ?`, id).Scan(
		&p.ID, &p.Name, &p.Type, &p.PromptTemplate, &p.Schedule, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis preset: %w", err)
	}
	return p, nil
}

func (s *Store) ListAnalysisPresets() ([]*AnalysisPreset, error) {
	rows, err := s.db.Query(`SELECT id, name, type, prompt_template, schedule, created_at, updated_at
		FROM presets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list analysis presets: %w", err)
	}
	defer rows.Close()

	var out []*AnalysisPreset
	for rows.Next() {
		p := &AnalysisPreset{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.PromptTemplate, &p.Schedule, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis preset: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListScheduledPresets returns every analysis preset whose schedule equals
// the given value (e.g. "on_main_change"), used by the scheduler (C12).
func (s *Store) ListScheduledPresets(schedule string) ([]*AnalysisPreset, error) {
	rows, err := s.db.Query(`SELECT id, name, type, prompt_template, schedule, created_at, updated_at
		FROM presets WHERE schedule = ? ORDER BY id`, schedule)
	if err != nil {
		return nil, fmt.Errorf("list scheduled presets: %w", err)
	}
	defer rows.Close()

	var out []*AnalysisPreset
	for rows.Next() {
		p := &AnalysisPreset{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.PromptTemplate, &p.Schedule, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan scheduled preset: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListCronPresets returns every analysis preset whose schedule is a cron
// expression — i.e. set, but neither NULL nor "on_main_change" — used by
// the scheduler's periodic tick (C12).
func (s *Store) ListCronPresets() ([]*AnalysisPreset, error) {
	rows, err := s.db.Query(`SELECT id, name, type, prompt_template, schedule, created_at, updated_at
		FROM presets WHERE schedule IS NOT NULL AND schedule != 'on_main_change' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cron presets: %w", err)
	}
	defer rows.Close()

	var out []*AnalysisPreset
	for rows.Next() {
		p := &AnalysisPreset{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.PromptTemplate, &p.Schedule, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cron preset: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateCLIPreset(p *CLIPreset) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO cli_presets (name, cli_binary, flags, working_dir, env_vars, budget_usd) VALUES (?, ?, ?, ?, ?, ?)",
		p.Name, p.CLIBinary, p.Flags, p.WorkingDir, p.EnvVars, p.BudgetUSD,
	)
	if err != nil {
		return 0, fmt.Errorf("create cli preset: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) ListCLIPresets() ([]*CLIPreset, error) {
	rows, err := s.db.Query(`SELECT id, name, cli_binary, flags, working_dir, env_vars, budget_usd
		FROM cli_presets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cli presets: %w", err)
	}
	defer rows.Close()

	var out []*CLIPreset
	for rows.Next() {
		p := &CLIPreset{}
		if err := rows.Scan(&p.ID, &p.Name, &p.CLIBinary, &p.Flags, &p.WorkingDir, &p.EnvVars, &p.BudgetUSD); err != nil {
			return nil, fmt.Errorf("scan cli preset: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
