package schedule

import (
	"testing"
	"time"

	"daybook/internal/model"
)

func intp(n int) *int { return &n }

func mustTime(t *testing.T, s string) *time.Time {
	t.Helper()
	v, err := ParseEventTime(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return &v
}

func recurring(id int, at string, rec model.Recurrence) model.Event {
	return model.Event{
		ID:          id,
		Title:       "Standup",
		Time:        at,
		Location:    "Room A",
		Description: "daily sync",
		Recurrence:  rec,
	}
}

func occurrenceTimes(occ []model.Occurrence) []string {
	out := make([]string, len(occ))
	for i, o := range occ {
		out[i] = o.OccurrenceTime
	}
	return out
}

func assertTimes(t *testing.T, got []model.Occurrence, want ...string) {
	t.Helper()
	times := occurrenceTimes(got)
	if len(times) != len(want) {
		t.Fatalf("want %d occurrences %v, got %d %v", len(want), want, len(times), times)
	}
	for i := range want {
		if times[i] != want[i] {
			t.Fatalf("occurrence %d: want %s, got %s", i, want[i], times[i])
		}
	}
}

func TestExpandEvent_NonRecurring(t *testing.T) {
	ev := recurring(7, "2025-02-10T14:00", model.NoRecurrence())

	got, err := ExpandEvent(ev, ExpandConfig{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertTimes(t, got, "2025-02-10T14:00")
	if got[0].SourceID != 7 || got[0].Title != "Standup" {
		t.Fatalf("occurrence does not carry the event: %+v", got[0])
	}

	got, _ = ExpandEvent(ev, ExpandConfig{
		RangeStart: mustTime(t, "2025-02-01T00:00"),
		RangeEnd:   mustTime(t, "2025-02-10T14:00"),
	})
	assertTimes(t, got, "2025-02-10T14:00")

	got, _ = ExpandEvent(ev, ExpandConfig{RangeStart: mustTime(t, "2025-02-10T14:01")})
	assertTimes(t, got)

	got, _ = ExpandEvent(ev, ExpandConfig{RangeEnd: mustTime(t, "2025-02-10T13:59")})
	assertTimes(t, got)
}

func TestExpandEvent_LegacyRecordWithoutFrequency(t *testing.T) {
	ev := recurring(1, "2025-02-10T14:00", model.Recurrence{})
	got, err := ExpandEvent(ev, ExpandConfig{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertTimes(t, got, "2025-02-10T14:00")
}

func TestExpandEvent_WeeklyCount(t *testing.T) {
	ev := recurring(1, "2025-03-03T14:00", model.Recurrence{
		Frequency: model.FrequencyWeekly, EndType: model.EndCount, Count: intp(4),
	})
	got, err := ExpandEvent(ev, ExpandConfig{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertTimes(t, got,
		"2025-03-03T14:00", "2025-03-10T14:00", "2025-03-17T14:00", "2025-03-24T14:00")
	for _, o := range got {
		if o.SourceID != 1 || o.Location != "Room A" || o.Description != "daily sync" {
			t.Fatalf("occurrence lost event fields: %+v", o)
		}
	}
}

func TestExpandEvent_DailyUntilIsInclusive(t *testing.T) {
	ev := recurring(1, "2025-03-05T09:00", model.Recurrence{
		Frequency: model.FrequencyDaily, EndType: model.EndUntil, Until: str("2025-03-10"),
	})
	got, err := ExpandEvent(ev, ExpandConfig{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertTimes(t, got,
		"2025-03-05T09:00", "2025-03-06T09:00", "2025-03-07T09:00",
		"2025-03-08T09:00", "2025-03-09T09:00", "2025-03-10T09:00")
}

func TestExpandEvent_WindowFilterDoesNotExtendWalk(t *testing.T) {
	ev := recurring(1, "2025-02-10T09:00", model.Recurrence{
		Frequency: model.FrequencyDaily, EndType: model.EndCount, Count: intp(10),
	})
	got, _ := ExpandEvent(ev, ExpandConfig{
		RangeStart: mustTime(t, "2025-02-12T00:00"),
		RangeEnd:   mustTime(t, "2025-02-14T23:59"),
	})
	assertTimes(t, got, "2025-02-12T09:00", "2025-02-13T09:00", "2025-02-14T09:00")

	ev.Recurrence.Count = intp(3)
	got, _ = ExpandEvent(ev, ExpandConfig{RangeStart: mustTime(t, "2025-02-12T00:00")})
	assertTimes(t, got, "2025-02-12T09:00")
}

func TestExpandEvent_StartsAfterWindow(t *testing.T) {
	ev := recurring(1, "2025-05-01T09:00", model.Recurrence{
		Frequency: model.FrequencyDaily, EndType: model.EndNever,
	})
	got, err := ExpandEvent(ev, ExpandConfig{
		RangeStart: mustTime(t, "2025-02-01T00:00"),
		RangeEnd:   mustTime(t, "2025-02-28T23:59"),
	})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertTimes(t, got)
}

func TestExpandEvent_CountIsCapped(t *testing.T) {
	ev := recurring(1, "2025-01-01T08:00", model.Recurrence{
		Frequency: model.FrequencyDaily, EndType: model.EndCount, Count: intp(1000),
	})
	got, err := ExpandEvent(ev, ExpandConfig{RangeEnd: mustTime(t, "2030-01-01T00:00")})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(got) != MaxOccurrences {
		t.Fatalf("want %d occurrences, got %d", MaxOccurrences, len(got))
	}
	if last := got[len(got)-1].OccurrenceTime; last != "2025-07-19T08:00" {
		t.Fatalf("last occurrence: got %s", last)
	}
}

func TestExpandEvent_OpenEndedHorizon(t *testing.T) {
	ev := recurring(1, "2025-01-06T10:00", model.Recurrence{
		Frequency: model.FrequencyWeekly, EndType: model.EndNever,
	})
	got, err := ExpandEvent(ev, ExpandConfig{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	// base + 52 weeks is 364 days, inside the 366-day horizon; week 53 is not.
	if len(got) != 53 {
		t.Fatalf("want 53 weekly occurrences, got %d", len(got))
	}
}

func TestExpandEvent_WindowEndIsCutoff(t *testing.T) {
	ev := recurring(1, "2025-01-01T10:00", model.Recurrence{
		Frequency: model.FrequencyMonthly, EndType: model.EndNever,
	})
	got, _ := ExpandEvent(ev, ExpandConfig{RangeEnd: mustTime(t, "2025-04-01T10:00")})
	assertTimes(t, got, "2025-01-01T10:00", "2025-02-01T10:00", "2025-03-01T10:00", "2025-04-01T10:00")
}

func TestExpandEvent_BadStoredTime(t *testing.T) {
	ev := recurring(1, "2025-01-01 10:00", model.NoRecurrence())
	if _, err := ExpandEvent(ev, ExpandConfig{}); err == nil {
		t.Fatal("expected an error for a malformed stored time")
	}
}

func TestAdvance(t *testing.T) {
	cases := []struct {
		from string
		freq model.Frequency
		want string
	}{
		{"2025-02-10T14:00", model.FrequencyDaily, "2025-02-11T14:00"},
		{"2025-02-28T14:00", model.FrequencyDaily, "2025-03-01T14:00"},
		{"2025-02-10T14:00", model.FrequencyWeekly, "2025-02-17T14:00"},
		{"2025-02-10T14:00", model.FrequencyMonthly, "2025-03-10T14:00"},
		{"2025-01-31T14:00", model.FrequencyMonthly, "2025-02-28T14:00"},
		{"2024-01-31T14:00", model.FrequencyMonthly, "2024-02-29T14:00"},
		{"2025-12-15T14:00", model.FrequencyMonthly, "2026-01-15T14:00"},
		{"2025-02-10T14:00", model.FrequencyYearly, "2026-02-10T14:00"},
		{"2024-02-29T14:00", model.FrequencyYearly, "2025-02-28T14:00"},
	}
	for _, c := range cases {
		got := FormatEventTime(Advance(*mustTime(t, c.from), c.freq))
		if got != c.want {
			t.Errorf("%s %s: want %s, got %s", c.freq, c.from, c.want, got)
		}
	}
}

func TestExpandEvent_MonthlyClampCarriesForward(t *testing.T) {
	ev := recurring(1, "2025-01-31T10:00", model.Recurrence{
		Frequency: model.FrequencyMonthly, EndType: model.EndCount, Count: intp(3),
	})
	got, _ := ExpandEvent(ev, ExpandConfig{})
	assertTimes(t, got, "2025-01-31T10:00", "2025-02-28T10:00", "2025-03-28T10:00")
}

func TestExpandOccurrences_MergedAndSorted(t *testing.T) {
	events := []model.Event{
		recurring(1, "2025-03-03T14:00", model.Recurrence{
			Frequency: model.FrequencyDaily, EndType: model.EndCount, Count: intp(3),
		}),
		recurring(2, "2025-03-04T09:00", model.NoRecurrence()),
		recurring(3, "2025-03-03T14:00", model.NoRecurrence()),
	}
	got, err := ExpandOccurrences(events, ExpandConfig{})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	assertTimes(t, got,
		"2025-03-03T14:00", "2025-03-03T14:00", "2025-03-04T09:00",
		"2025-03-04T14:00", "2025-03-05T14:00")
	if got[0].SourceID != 1 || got[1].SourceID != 3 {
		t.Fatalf("ties must keep input order, got %d then %d", got[0].SourceID, got[1].SourceID)
	}
}
