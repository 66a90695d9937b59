package matchday

import (
	"testing"
	"time"

	"github.com/riskibarqy/football-scoreboard/internal/domain/fixture"
)

var utcPlus8 = time.FixedZone("UTC+8", 8*60*60)

func mustDate(t *testing.T, value string) Date {
	t.Helper()
	d, err := ParseDate(value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestClassify_KickoffLocalDayInUTCPlus8(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 18, 3, 0, 0, 0, time.UTC)
	c := NewClassifier(utcPlus8, fixedClock(now))
	kickoff := time.Date(2025, 6, 18, 1, 0, 0, 0, time.UTC)

	got := c.Classify(kickoff, fixture.StatusFullTime, mustDate(t, "2025-06-18"))
	if !got.ShouldShow || got.Category != CategoryToday {
		t.Fatalf("expected fixture to show today, got %+v", got)
	}

	got = c.Classify(kickoff, fixture.StatusFullTime, mustDate(t, "2025-06-17"))
	if got.ShouldShow || got.Category != CategoryOther || got.Reason != ReasonOtherDay {
		t.Fatalf("expected fixture hidden on previous day, got %+v", got)
	}
}

func TestClassify_Rules(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)
	c := NewClassifier(time.UTC, fixedClock(now))
	yesterday := time.Date(2025, 6, 17, 19, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 6, 19, 19, 0, 0, 0, time.UTC)
	laterToday := time.Date(2025, 6, 18, 19, 0, 0, 0, time.UTC)
	earlierToday := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		kickoff  time.Time
		status   string
		target   string
		show     bool
		category Category
		delayed  bool
	}{
		{name: "past finished", kickoff: yesterday, status: "FT", target: "2025-06-17", show: true, category: CategoryYesterday},
		{name: "past cancelled", kickoff: yesterday, status: "CANC", target: "2025-06-17", show: true, category: CategoryYesterday},
		{name: "past not started is anomaly", kickoff: yesterday, status: "NS", target: "2025-06-17", show: false, category: CategoryYesterday},
		{name: "past live is anomaly", kickoff: yesterday, status: "2H", target: "2025-06-17", show: false, category: CategoryYesterday},
		{name: "future not started", kickoff: tomorrow, status: "NS", target: "2025-06-19", show: true, category: CategoryTomorrow},
		{name: "future tbd", kickoff: tomorrow, status: "TBD", target: "2025-06-19", show: true, category: CategoryTomorrow},
		{name: "future finished is anomaly", kickoff: tomorrow, status: "FT", target: "2025-06-19", show: false, category: CategoryTomorrow},
		{name: "future live is anomaly", kickoff: tomorrow, status: "1H", target: "2025-06-19", show: false, category: CategoryTomorrow},
		{name: "today live", kickoff: earlierToday, status: "HT", target: "2025-06-18", show: true, category: CategoryToday},
		{name: "today finished", kickoff: earlierToday, status: "FT", target: "2025-06-18", show: true, category: CategoryToday},
		{name: "today upcoming", kickoff: laterToday, status: "NS", target: "2025-06-18", show: true, category: CategoryToday},
		{name: "today kickoff passed still shown", kickoff: earlierToday, status: "NS", target: "2025-06-18", show: true, category: CategoryToday, delayed: true},
		{name: "unknown status", kickoff: laterToday, status: "PST", target: "2025-06-18", show: false, category: CategoryOther},
		{name: "missing kickoff", kickoff: time.Time{}, status: "NS", target: "2025-06-18", show: false, category: CategoryOther},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := c.Classify(tc.kickoff, tc.status, mustDate(t, tc.target))
			if got.ShouldShow != tc.show {
				t.Fatalf("unexpected should_show: got=%v want=%v (%+v)", got.ShouldShow, tc.show, got)
			}
			if got.Category != tc.category {
				t.Fatalf("unexpected category: got=%s want=%s", got.Category, tc.category)
			}
			if got.PossiblyDelayed != tc.delayed {
				t.Fatalf("unexpected possibly_delayed: got=%v want=%v", got.PossiblyDelayed, tc.delayed)
			}
			if got.Reason == "" {
				t.Fatalf("expected a reason")
			}
		})
	}
}

func TestClassify_IsIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)
	c := NewClassifier(utcPlus8, fixedClock(now))
	kickoff := time.Date(2025, 6, 18, 10, 30, 0, 0, time.UTC)
	target := mustDate(t, "2025-06-18")

	first := c.Classify(kickoff, "NS", target)
	second := c.Classify(kickoff, "NS", target)
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestDate_AddDaysAcrossMonthAndYear(t *testing.T) {
	t.Parallel()

	if got := mustDate(t, "2025-12-31").AddDays(1).String(); got != "2026-01-01" {
		t.Fatalf("unexpected next day: %s", got)
	}
	if got := mustDate(t, "2024-03-01").AddDays(-1).String(); got != "2024-02-29" {
		t.Fatalf("unexpected previous day: %s", got)
	}
	if _, err := ParseDate("18/06/2025"); err == nil {
		t.Fatalf("expected parse error for malformed date")
	}
}
