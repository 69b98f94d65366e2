package store

import (
	"database/sql"
	"fmt"
	"time"
)

// AnalysisStatus is the job state machine's status column (spec §4.11).
type AnalysisStatus string

const (
	StatusQueued    AnalysisStatus = "queued"
	StatusRunning   AnalysisStatus = "running"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// Analysis is one row of the analyses table (spec §3 Analysis record).
type Analysis struct {
	ID             int64
	RepoPath       string
	CommitSHA      string
	Branch         string
	PresetID       int64
	Status         AnalysisStatus
	RawOutput      *string
	ParsedGraph    *string
	ParsedFindings *string
	ErrorMessage   *string
	Level          int
	TargetNodeID   *string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// CreateAnalysis inserts a new queued analysis row.
func (s *Store) CreateAnalysis(a *Analysis) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO analyses (repo_path, commit_sha, branch, preset_id, status, level, target_node_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.RepoPath, a.CommitSHA, a.Branch, a.PresetID, StatusQueued, a.Level, a.TargetNodeID,
	)
	if err != nil {
		return 0, fmt.Errorf("create analysis: %w", err)
	}
	return res.LastInsertId()
}

// FindCacheHit looks up a valid cached analysis for the given identity
// tuple: status=completed AND the preset's updated_at is no later than the
// record's created_at (spec §3 Analysis record invariant, §9 open
// question resolution — edits invalidate prior records by timestamp
// comparison rather than deletion).
func (s *Store) FindCacheHit(repoPath, commitSHA string, presetID int64, level int, targetNodeID *string) (*Analysis, error) {
	query := `SELECT a.id, a.repo_path, a.commit_sha, a.branch, a.preset_id, a.status,
			a.raw_output, a.parsed_graph, a.parsed_findings, a.error_message,
			a.level, a.target_node_id, a.created_at, a.completed_at
		FROM analyses a
		JOIN presets p ON p.id = a.preset_id
		WHERE a.repo_path = ? AND a.commit_sha = ? AND a.preset_id = ? AND a.level = ?
			AND (a.target_node_id = ? OR (a.target_node_id IS NULL AND ? IS NULL))
			AND a.status = ?
			AND p.updated_at <= a.created_at
		ORDER BY a.created_at DESC LIMIT 1`

	row := s.db.QueryRow(query, repoPath, commitSHA, presetID, level, targetNodeID, targetNodeID, StatusCompleted)
	a := &Analysis{}
	err := row.Scan(&a.ID, &a.RepoPath, &a.CommitSHA, &a.Branch, &a.PresetID, &a.Status,
		&a.RawOutput, &a.ParsedGraph, &a.ParsedFindings, &a.ErrorMessage,
		&a.Level, &a.TargetNodeID, &a.CreatedAt, &a.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cache hit: %w", err)
	}
	return a, nil
}

// SetAnalysisStatus transitions status (spec §4.11 status lifecycle is
// sticky once terminal — callers are responsible for not calling this
// after completed/failed).
func (s *Store) SetAnalysisStatus(id int64, status AnalysisStatus) error {
	_, err := s.db.Exec("UPDATE analyses SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("set analysis status: %w", err)
	}
	return nil
}

// CompleteAnalysis persists a successful parse result and marks the record
// completed.
func (s *Store) CompleteAnalysis(id int64, rawOutput string, parsedGraph, parsedFindings *string) error {
	_, err := s.db.Exec(
		`UPDATE analyses SET status = ?, raw_output = ?, parsed_graph = ?, parsed_findings = ?,
			completed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		StatusCompleted, rawOutput, parsedGraph, parsedFindings, id,
	)
	if err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}
	return nil
}

// FailAnalysis marks the record failed with the given error message,
// optionally preserving partial raw output / parsed graph for forensic
// display (spec §4.9 parser recovery policy).
func (s *Store) FailAnalysis(id int64, errMsg string, rawOutput, parsedGraph *string) error {
	_, err := s.db.Exec(
		`UPDATE analyses SET status = ?, error_message = ?, raw_output = ?, parsed_graph = ?,
			completed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		StatusFailed, errMsg, rawOutput, parsedGraph, id,
	)
	if err != nil {
		return fmt.Errorf("fail analysis: %w", err)
	}
	return nil
}

func (s *Store) GetAnalysis(id int64) (*Analysis, error) {
	a := &Analysis{}
	err := s.db.QueryRow(`SELECT id, repo_path, commit_sha, branch, preset_id, status,
			raw_output, parsed_graph, parsed_findings, error_message,
			level, target_node_id, created_at, completed_at
		FROM analyses WHERE id = ?`, id).Scan(
		&a.ID, &a.RepoPath, &a.CommitSHA, &a.Branch, &a.PresetID, &a.Status,
		&a.RawOutput, &a.ParsedGraph, &a.ParsedFindings, &a.ErrorMessage,
		&a.Level, &a.TargetNodeID, &a.CreatedAt, &a.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

func (s *Store) ListAnalyses(branch string) ([]*Analysis, error) {
	rows, err := s.db.Query(`SELECT id, repo_path, commit_sha, branch, preset_id, status,
			raw_output, parsed_graph, parsed_findings, error_message,
			level, target_node_id, created_at, completed_at
		FROM analyses WHERE branch = ? ORDER BY created_at DESC`, branch)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		a := &Analysis{}
		if err := rows.Scan(&a.ID, &a.RepoPath, &a.CommitSHA, &a.Branch, &a.PresetID, &a.Status,
			&a.RawOutput, &a.ParsedGraph, &a.ParsedFindings, &a.ErrorMessage,
			&a.Level, &a.TargetNodeID, &a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
