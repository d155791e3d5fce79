package schedule

import (
	"fmt"
	"sort"
	"time"

	"daybook/internal/model"
)

// Interval is a half-open [Start, End) span of wall-clock time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// SlotQuery describes a free-slot search on one day.
type SlotQuery struct {
	// Date is the target day; only its calendar date is used.
	Date        time.Time
	Duration    time.Duration
	WindowStart time.Time
	WindowEnd   time.Time
}

// BusyIntervals expands every event around the target day and returns the
// intervals of the occurrences that overlap it, sorted by start. Each
// occurrence keeps the length of its event's base interval, so one that
// starts the day before and runs past midnight counts as busy too.
func BusyIntervals(events []model.Event, day time.Time) ([]Interval, error) {
	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(23*time.Hour + 59*time.Minute)

	busy := make([]Interval, 0)
	for _, ev := range events {
		start, end, err := ResolveRange(ev.Time, ev.EndTime)
		if err != nil {
			return nil, fmt.Errorf("event #%d: %w", ev.ID, err)
		}
		length := end.Sub(start)

		// Reach back far enough to catch occurrences still running at midnight.
		from := dayStart.Add(-length)
		occurrences, err := ExpandEvent(ev, ExpandConfig{RangeStart: &from, RangeEnd: &dayEnd})
		if err != nil {
			return nil, fmt.Errorf("event #%d: %w", ev.ID, err)
		}
		for _, occ := range occurrences {
			at, err := ParseEventTime(occ.OccurrenceTime)
			if err != nil {
				return nil, err
			}
			if !at.Add(length).After(dayStart) {
				continue
			}
			busy = append(busy, Interval{Start: at, End: at.Add(length)})
		}
	}

	sort.SliceStable(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

// FindSlot returns the earliest gap inside the query window that fits the
// requested duration, as [gapStart, gapStart+duration]. Recurring events are
// expanded, unlike FindConflict which looks at base intervals only.
func FindSlot(events []model.Event, q SlotQuery) (Interval, error) {
	if q.Duration <= 0 {
		return Interval{}, fmt.Errorf("%w: duration must be positive", ErrInvalidInterval)
	}
	if !q.WindowEnd.After(q.WindowStart) {
		return Interval{}, fmt.Errorf("%w: window end must be later than window start", ErrInvalidInterval)
	}

	busy, err := BusyIntervals(events, q.Date)
	if err != nil {
		return Interval{}, err
	}
	return firstFit(busy, q.WindowStart, q.WindowEnd, q.Duration)
}

// firstFit scans the gaps before, between and after the sorted busy
// intervals, clipped to [windowStart, windowEnd].
func firstFit(busy []Interval, windowStart, windowEnd time.Time, need time.Duration) (Interval, error) {
	cursor := windowStart
	for _, b := range busy {
		if !cursor.Before(windowEnd) {
			break
		}
		gapEnd := b.Start
		if gapEnd.After(windowEnd) {
			gapEnd = windowEnd
		}
		if gapEnd.Sub(cursor) >= need {
			return Interval{Start: cursor, End: cursor.Add(need)}, nil
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if windowEnd.Sub(cursor) >= need {
		return Interval{Start: cursor, End: cursor.Add(need)}, nil
	}
	return Interval{}, fmt.Errorf("%w: No free %d-minute slot between %s and %s", ErrNoAvailableSlot,
		int(need/time.Minute), windowStart.Format(ClockLayout), windowEnd.Format(ClockLayout))
}
