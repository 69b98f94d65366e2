package store

import (
	"testing"
	"time"
)

func seedPreset(t *testing.T, s *Store) int64 {
	t.Helper()
	id, err := s.CreateAnalysisPreset("Custom Preset", "analysis", "do the thing", nil)
	if err != nil {
		t.Fatalf("CreateAnalysisPreset: %v", err)
	}
	return id
}

func TestCreateAndGetAnalysis(t *testing.T) {
	s := openTestStore(t)
	presetID := seedPreset(t, s)

	id, err := s.CreateAnalysis(&Analysis{
		RepoPath:  "/repo",
		CommitSHA: "abc123",
		Branch:    "main",
		PresetID:  presetID,
		Level:     1,
	})
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}

	got, err := s.GetAnalysis(id)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got == nil {
		t.Fatal("GetAnalysis returned nil for a just-created row")
	}
	if got.Status != StatusQueued {
		t.Errorf("Status = %q, want %q", got.Status, StatusQueued)
	}
	if got.Branch != "main" || got.CommitSHA != "abc123" {
		t.Errorf("got %+v, want branch=main commit=abc123", got)
	}
}

func TestGetAnalysisMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetAnalysis(99999)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got != nil {
		t.Errorf("GetAnalysis(missing) = %+v, want nil", got)
	}
}

func TestCompleteAnalysisSetsStatusAndOutput(t *testing.T) {
	s := openTestStore(t)
	presetID := seedPreset(t, s)
	id, err := s.CreateAnalysis(&Analysis{RepoPath: "/repo", CommitSHA: "sha1", Branch: "main", PresetID: presetID, Level: 1})
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}

	graph := `{"nodes":[]}`
	if err := s.CompleteAnalysis(id, "raw output", &graph, nil); err != nil {
		t.Fatalf("CompleteAnalysis: %v", err)
	}

	got, err := s.GetAnalysis(id)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.ParsedGraph == nil || *got.ParsedGraph != graph {
		t.Errorf("ParsedGraph = %v, want %q", got.ParsedGraph, graph)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set after CompleteAnalysis")
	}
}

func TestFailAnalysisPreservesPartialOutput(t *testing.T) {
	s := openTestStore(t)
	presetID := seedPreset(t, s)
	id, err := s.CreateAnalysis(&Analysis{RepoPath: "/repo", CommitSHA: "sha2", Branch: "main", PresetID: presetID, Level: 1})
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}

	partial := `{"nodes": [{"id": "L1_a"}]}`
	if err := s.FailAnalysis(id, "schema validation failed", nil, &partial); err != nil {
		t.Fatalf("FailAnalysis: %v", err)
	}

	got, err := s.GetAnalysis(id)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "schema validation failed" {
		t.Errorf("ErrorMessage = %v, want the failure reason", got.ErrorMessage)
	}
	if got.ParsedGraph == nil || *got.ParsedGraph != partial {
		t.Errorf("ParsedGraph = %v, want the partial graph preserved for forensic display", got.ParsedGraph)
	}
}

func TestFindCacheHitOnlyMatchesCompletedAndFresherThanPreset(t *testing.T) {
	s := openTestStore(t)
	presetID := seedPreset(t, s)

	id, err := s.CreateAnalysis(&Analysis{RepoPath: "/repo", CommitSHA: "sha3", Branch: "main", PresetID: presetID, Level: 1})
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}

	if hit, err := s.FindCacheHit("/repo", "sha3", presetID, 1, nil); err != nil || hit != nil {
		t.Errorf("FindCacheHit before completion = (%v, %v), want (nil, nil)", hit, err)
	}

	if err := s.CompleteAnalysis(id, "raw", nil, nil); err != nil {
		t.Fatalf("CompleteAnalysis: %v", err)
	}

	hit, err := s.FindCacheHit("/repo", "sha3", presetID, 1, nil)
	if err != nil {
		t.Fatalf("FindCacheHit: %v", err)
	}
	if hit == nil || hit.ID != id {
		t.Errorf("FindCacheHit = %v, want the completed analysis %d", hit, id)
	}
}

func TestFindCacheHitDistinguishesTargetNode(t *testing.T) {
	s := openTestStore(t)
	presetID := seedPreset(t, s)

	target := "L2_billing"
	id, err := s.CreateAnalysis(&Analysis{RepoPath: "/repo", CommitSHA: "sha4", Branch: "main", PresetID: presetID, Level: 2, TargetNodeID: &target})
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}
	if err := s.CompleteAnalysis(id, "raw", nil, nil); err != nil {
		t.Fatalf("CompleteAnalysis: %v", err)
	}

	if hit, err := s.FindCacheHit("/repo", "sha4", presetID, 2, nil); err != nil || hit != nil {
		t.Errorf("FindCacheHit with nil target = (%v, %v), want (nil, nil) since stored row is scoped to %q", hit, err, target)
	}

	hit, err := s.FindCacheHit("/repo", "sha4", presetID, 2, &target)
	if err != nil {
		t.Fatalf("FindCacheHit: %v", err)
	}
	if hit == nil || hit.ID != id {
		t.Errorf("FindCacheHit with matching target = %v, want analysis %d", hit, id)
	}
}

func TestListAnalysesFiltersByBranch(t *testing.T) {
	s := openTestStore(t)
	presetID := seedPreset(t, s)

	if _, err := s.CreateAnalysis(&Analysis{RepoPath: "/repo", CommitSHA: "m1", Branch: "main", PresetID: presetID, Level: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateAnalysis(&Analysis{RepoPath: "/repo", CommitSHA: "f1", Branch: "feature/x", PresetID: presetID, Level: 1}); err != nil {
		t.Fatal(err)
	}

	main, err := s.ListAnalyses("main")
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(main) != 1 || main[0].CommitSHA != "m1" {
		t.Errorf("ListAnalyses(main) = %+v, want one row for commit m1", main)
	}

	feature, err := s.ListAnalyses("feature/x")
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(feature) != 1 || feature[0].CommitSHA != "f1" {
		t.Errorf("ListAnalyses(feature/x) = %+v, want one row for commit f1", feature)
	}
}

func TestListScheduledPresetsFiltersBySchedule(t *testing.T) {
	s := openTestStore(t)
	scheduled, err := s.ListScheduledPresets("on_main_change")
	if err != nil {
		t.Fatalf("ListScheduledPresets: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("got %d on_main_change presets, want 1 (the seeded Architecture Diagram preset)", len(scheduled))
	}
	if scheduled[0].Name != "Architecture Diagram" {
		t.Errorf("scheduled preset = %q, want Architecture Diagram", scheduled[0].Name)
	}
}

func TestRecoverInterruptedAnalysesMarksRunningAsFailed(t *testing.T) {
	s := openTestStore(t)
	presetID := seedPreset(t, s)
	id, err := s.CreateAnalysis(&Analysis{RepoPath: "/repo", CommitSHA: "sha5", Branch: "main", PresetID: presetID, Level: 1})
	if err != nil {
		t.Fatalf("CreateAnalysis: %v", err)
	}
	if err := s.SetAnalysisStatus(id, StatusRunning); err != nil {
		t.Fatalf("SetAnalysisStatus: %v", err)
	}

	if err := s.FailAnalysis(id, "daemon restarted while analysis was running", nil, nil); err != nil {
		t.Fatalf("FailAnalysis: %v", err)
	}

	got, err := s.GetAnalysis(id)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want failed after crash recovery", got.Status)
	}
	if got.CompletedAt == nil || got.CompletedAt.After(time.Now()) {
		t.Errorf("CompletedAt = %v, want a timestamp no later than now", got.CompletedAt)
	}
}
