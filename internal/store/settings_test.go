package store

import "testing"

func TestGetSettingUnsetKey(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetSetting("does_not_exist")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if ok {
		t.Error("GetSetting found a value for an unset key")
	}
}

func TestSetSettingUpserts(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetSetting("idle_timeout", "4h"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, ok, err := s.GetSetting("idle_timeout")
	if err != nil || !ok || v != "4h" {
		t.Fatalf("GetSetting after insert = (%q, %v, %v), want (4h, true, nil)", v, ok, err)
	}

	if err := s.SetSetting("idle_timeout", "8h"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	v, ok, err = s.GetSetting("idle_timeout")
	if err != nil || !ok || v != "8h" {
		t.Fatalf("GetSetting after overwrite = (%q, %v, %v), want (8h, true, nil)", v, ok, err)
	}
}

func TestAnalysisMaxConcurrencyDefaultsOnUnparsable(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetSetting("analysis_max_concurrency", "not-a-number"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if got := s.AnalysisMaxConcurrency(); got != 2 {
		t.Errorf("AnalysisMaxConcurrency() = %d, want 2 (default) for an unparsable value", got)
	}
}

func TestAnalysisMaxConcurrencyReflectsSetting(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetSetting("analysis_max_concurrency", "5"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if got := s.AnalysisMaxConcurrency(); got != 5 {
		t.Errorf("AnalysisMaxConcurrency() = %d, want 5", got)
	}
}
