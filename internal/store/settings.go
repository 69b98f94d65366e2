package store

import (
	"database/sql"
	"fmt"
)

// GetSetting returns the value for key, or ("", false) if unset.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

// SetSetting upserts key=value.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// AnalysisMaxConcurrency returns the current concurrency cap, defaulting to
// 2 if unset or unparsable.
func (s *Store) AnalysisMaxConcurrency() int {
	v, ok, err := s.GetSetting("analysis_max_concurrency")
	if !ok || err != nil {
		return 2
	}
	n := 0
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return 2
	}
	return n
}
