package scheduler

import (
	"testing"
	"time"
)

func TestParseCronFieldCounts(t *testing.T) {
	cases := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"valid five fields", "0 9 * * *", false},
		{"too few fields", "0 9 * *", true},
		{"too many fields", "0 9 * * * *", true},
		{"step values", "*/15 * * * *", false},
		{"list values", "0,30 8,20 * * *", false},
		{"range values", "0 9-17 * * 1-5", false},
		{"invalid minute", "60 9 * * *", true},
		{"invalid month", "0 9 * 13 *", true},
		{"garbage", "a b c d e", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseCron(tc.expr)
			if tc.wantErr && err == nil {
				t.Errorf("parseCron(%q) = nil error, want error", tc.expr)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("parseCron(%q) = %v, want no error", tc.expr, err)
			}
		})
	}
}

func TestCronNextEveryMinute(t *testing.T) {
	s, err := parseCron("* * * * *")
	if err != nil {
		t.Fatalf("parseCron: %v", err)
	}
	from := time.Date(2026, 7, 31, 12, 0, 30, 0, time.UTC)
	got := s.Next(from)
	want := time.Date(2026, 7, 31, 12, 1, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", from, got, want)
	}
}

func TestCronNextDailyAtNine(t *testing.T) {
	s, err := parseCron("0 9 * * *")
	if err != nil {
		t.Fatalf("parseCron: %v", err)
	}
	from := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	got := s.Next(from)
	want := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", from, got, want)
	}
}

func TestCronNextWeekdaysOnly(t *testing.T) {
	s, err := parseCron("0 9 * * 1-5")
	if err != nil {
		t.Fatalf("parseCron: %v", err)
	}
	// Friday 2026-07-31 10:00 UTC -> next weekday 9am should skip the weekend to Monday.
	from := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	got := s.Next(from)
	want := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v (next Monday)", from, got, want)
	}
	if got.Weekday() != time.Monday {
		t.Errorf("Next fired on %v, want Monday", got.Weekday())
	}
}

func TestCronContains(t *testing.T) {
	if !cronContains([]int{1, 2, 3}, 2) {
		t.Error("cronContains([1 2 3], 2) = false, want true")
	}
	if cronContains([]int{1, 2, 3}, 5) {
		t.Error("cronContains([1 2 3], 5) = true, want false")
	}
}
