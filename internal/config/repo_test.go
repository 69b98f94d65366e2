package config

import (
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestScheduleFieldUnmarshalVariants(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want ScheduleField
	}{
		{"absent key", `{}`, ScheduleField{}},
		{"explicit null", "default_schedule: null", ScheduleField{}},
		{"on_main_change", `default_schedule: on_main_change`, ScheduleField{OnMainChange: true}},
		{"cron expression", `default_schedule: "0 9 * * *"`, ScheduleField{Cron: "0 9 * * *"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rc RepoConfig
			if err := yaml.Unmarshal([]byte(tc.yaml), &rc); err != nil {
				t.Fatalf("yaml.Unmarshal: %v", err)
			}
			if rc.DefaultSchedule != tc.want {
				t.Errorf("DefaultSchedule = %+v, want %+v", rc.DefaultSchedule, tc.want)
			}
		})
	}
}

func TestScheduleFieldMarshalRoundTrip(t *testing.T) {
	cases := []ScheduleField{
		{},
		{OnMainChange: true},
		{Cron: "*/5 * * * *"},
	}
	for _, sf := range cases {
		rc := RepoConfig{DefaultSchedule: sf}
		data, err := yaml.Marshal(&rc)
		if err != nil {
			t.Fatalf("yaml.Marshal: %v", err)
		}
		var got RepoConfig
		if err := yaml.Unmarshal(data, &got); err != nil {
			t.Fatalf("yaml.Unmarshal: %v", err)
		}
		if got.DefaultSchedule != sf {
			t.Errorf("round trip %+v -> %q -> %+v", sf, data, got.DefaultSchedule)
		}
	}
}

func TestLoadRepoConfigMissingFileYieldsZeroValue(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadRepoConfig(dir)
	if err != nil {
		t.Fatalf("LoadRepoConfig: %v", err)
	}
	if *cfg != (RepoConfig{}) {
		t.Errorf("cfg = %+v, want zero value for missing config.yaml", *cfg)
	}
}

func TestSaveThenLoadRepoConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := &RepoConfig{
		DefaultCLIBinary: "claude",
		MaxConcurrency:   3,
		DefaultBranch:    "develop",
		IdleTimeout:      "4h",
		DefaultSchedule:  ScheduleField{OnMainChange: true},
	}
	if err := SaveRepoConfig(dir, want); err != nil {
		t.Fatalf("SaveRepoConfig: %v", err)
	}
	if _, err := filepath.Abs(dir); err != nil {
		t.Fatalf("filepath.Abs: %v", err)
	}

	got, err := LoadRepoConfig(dir)
	if err != nil {
		t.Fatalf("LoadRepoConfig: %v", err)
	}
	if *got != *want {
		t.Errorf("got %+v, want %+v", *got, *want)
	}
}
