package schedule

import (
	"errors"
	"testing"
	"time"

	"daybook/internal/model"
)

func slotQuery(t *testing.T, date, from, to string, need time.Duration) SlotQuery {
	t.Helper()
	day, err := ParseDate(date)
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	ws, err := AtClock(day, from)
	if err != nil {
		t.Fatalf("window start: %v", err)
	}
	we, err := AtClock(day, to)
	if err != nil {
		t.Fatalf("window end: %v", err)
	}
	return SlotQuery{Date: day, Duration: need, WindowStart: ws, WindowEnd: we}
}

func assertSlot(t *testing.T, got Interval, start, end string) {
	t.Helper()
	if FormatEventTime(got.Start) != start || FormatEventTime(got.End) != end {
		t.Fatalf("want [%s, %s], got [%s, %s]", start, end, FormatEventTime(got.Start), FormatEventTime(got.End))
	}
}

func TestFindSlot_EarliestFit(t *testing.T) {
	events := []model.Event{
		stored(2, "Late", "2025-03-03T11:00", "2025-03-03T12:00"),
		stored(1, "Early", "2025-03-03T09:00", "2025-03-03T10:00"),
	}
	got, err := FindSlot(events, slotQuery(t, "2025-03-03", "09:00", "12:00", 30*time.Minute))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertSlot(t, got, "2025-03-03T10:00", "2025-03-03T10:30")
}

func TestFindSlot_EmptyDay(t *testing.T) {
	got, err := FindSlot(nil, slotQuery(t, "2025-03-03", "09:00", "12:00", time.Hour))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertSlot(t, got, "2025-03-03T09:00", "2025-03-03T10:00")
}

func TestFindSlot_AfterLastBusy(t *testing.T) {
	events := []model.Event{stored(1, "Morning", "2025-03-03T09:00", "2025-03-03T10:00")}
	got, err := FindSlot(events, slotQuery(t, "2025-03-03", "09:00", "12:00", 2*time.Hour))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertSlot(t, got, "2025-03-03T10:00", "2025-03-03T12:00")
}

func TestFindSlot_BusyStartingBeforeWindow(t *testing.T) {
	events := []model.Event{stored(1, "Breakfast", "2025-03-03T08:30", "2025-03-03T09:30")}
	got, err := FindSlot(events, slotQuery(t, "2025-03-03", "09:00", "12:00", 30*time.Minute))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertSlot(t, got, "2025-03-03T09:30", "2025-03-03T10:00")
}

func TestFindSlot_OverlappingBusyIntervals(t *testing.T) {
	events := []model.Event{
		stored(1, "A", "2025-03-03T09:00", "2025-03-03T11:00"),
		stored(2, "B", "2025-03-03T09:30", "2025-03-03T10:00"),
	}
	got, err := FindSlot(events, slotQuery(t, "2025-03-03", "09:00", "12:00", 30*time.Minute))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertSlot(t, got, "2025-03-03T11:00", "2025-03-03T11:30")
}

func TestFindSlot_ExpandsRecurringEvents(t *testing.T) {
	daily := stored(1, "Standup", "2025-03-01T09:00", "2025-03-01T10:00")
	daily.Recurrence = model.Recurrence{Frequency: model.FrequencyDaily, EndType: model.EndNever}
	otherDay := stored(2, "Elsewhere", "2025-03-04T10:00", "2025-03-04T11:00")

	got, err := FindSlot([]model.Event{daily, otherDay}, slotQuery(t, "2025-03-03", "09:00", "12:00", time.Hour))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertSlot(t, got, "2025-03-03T10:00", "2025-03-03T11:00")
}

func TestFindSlot_EventRunningPastMidnight(t *testing.T) {
	events := []model.Event{
		stored(1, "Night shift", "2025-03-09T22:00", "2025-03-10T10:00"),
		stored(2, "Ended at midnight", "2025-03-09T20:00", "2025-03-10T00:00"),
	}
	got, err := FindSlot(events, slotQuery(t, "2025-03-10", "09:00", "12:00", 30*time.Minute))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertSlot(t, got, "2025-03-10T10:00", "2025-03-10T10:30")
}

func TestBusyIntervals_RecurringOvernight(t *testing.T) {
	nightly := stored(1, "Backup", "2025-03-01T23:00", "2025-03-02T01:00")
	nightly.Recurrence = model.Recurrence{Frequency: model.FrequencyDaily, EndType: model.EndNever}
	day, _ := ParseDate("2025-03-05")

	busy, err := BusyIntervals([]model.Event{nightly}, day)
	if err != nil {
		t.Fatalf("busy: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("want 2 intervals, got %d", len(busy))
	}
	if FormatEventTime(busy[0].Start) != "2025-03-04T23:00" || FormatEventTime(busy[1].Start) != "2025-03-05T23:00" {
		t.Fatalf("busy = %v", busy)
	}
}

func TestFindSlot_NoAvailableSlot(t *testing.T) {
	events := []model.Event{
		stored(1, "A", "2025-03-03T09:00", "2025-03-03T10:00"),
		stored(2, "B", "2025-03-03T10:20", "2025-03-03T12:00"),
	}
	_, err := FindSlot(events, slotQuery(t, "2025-03-03", "09:00", "12:00", 30*time.Minute))
	if !errors.Is(err, ErrNoAvailableSlot) {
		t.Fatalf("want ErrNoAvailableSlot, got %v", err)
	}
}

func TestFindSlot_InvalidQuery(t *testing.T) {
	if _, err := FindSlot(nil, slotQuery(t, "2025-03-03", "12:00", "09:00", time.Hour)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("reversed window: want ErrInvalidInterval, got %v", err)
	}
	if _, err := FindSlot(nil, slotQuery(t, "2025-03-03", "09:00", "12:00", 0)); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("zero duration: want ErrInvalidInterval, got %v", err)
	}
}
