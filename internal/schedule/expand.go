package schedule

import (
	"sort"
	"time"

	"daybook/internal/model"
)

const (
	// MaxOccurrences caps how many instances one event may produce in a single
	// expansion, whatever count the recurrence states.
	MaxOccurrences = 200

	// OpenEndedHorizon bounds the walk of a never-ending recurrence when the
	// caller supplied no window end.
	OpenEndedHorizon = 366 * 24 * time.Hour
)

// ExpandConfig is the optional query window for an expansion. A nil bound is
// unbounded on that side. Both bounds are inclusive.
type ExpandConfig struct {
	RangeStart *time.Time
	RangeEnd   *time.Time
}

func (c ExpandConfig) includes(t time.Time) bool {
	if c.RangeStart != nil && t.Before(*c.RangeStart) {
		return false
	}
	if c.RangeEnd != nil && t.After(*c.RangeEnd) {
		return false
	}
	return true
}

// ExpandOccurrences expands every event and returns all occurrences merged in
// ascending occurrence_time order. Occurrences at the same time keep the
// order of their events in the input.
func ExpandOccurrences(events []model.Event, cfg ExpandConfig) ([]model.Occurrence, error) {
	all := make([]model.Occurrence, 0, len(events))
	for _, ev := range events {
		occ, err := ExpandEvent(ev, cfg)
		if err != nil {
			return nil, err
		}
		all = append(all, occ...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].OccurrenceTime < all[j].OccurrenceTime
	})
	return all, nil
}

// ExpandEvent produces the concrete occurrences of one event that fall inside
// the window.
//
// A recurring event is walked from its base time until either the occurrence
// cap is reached or the cursor passes the cutoff. The cutoff is the "until"
// date when set, else the window end, else OpenEndedHorizon past the base
// time. Instances outside the window still count toward the cap.
func ExpandEvent(ev model.Event, cfg ExpandConfig) ([]model.Occurrence, error) {
	base, err := ParseEventTime(ev.Time)
	if err != nil {
		return nil, err
	}

	rec := ev.Recurrence
	if !rec.Repeats() {
		if !cfg.includes(base) {
			return nil, nil
		}
		return []model.Occurrence{makeOccurrence(ev, base)}, nil
	}

	var cutoff time.Time
	switch {
	case rec.EndType == model.EndUntil && rec.Until != nil && *rec.Until != "":
		until, err := ParseEndDate(*rec.Until)
		if err != nil {
			return nil, err
		}
		cutoff = until
	case cfg.RangeEnd != nil:
		cutoff = *cfg.RangeEnd
	default:
		cutoff = base.Add(OpenEndedHorizon)
	}

	if cfg.RangeStart != nil && base.After(cutoff) {
		return nil, nil
	}

	maxCount := MaxOccurrences
	if rec.Count != nil && *rec.Count != 0 {
		maxCount = min(*rec.Count, MaxOccurrences)
	}

	out := make([]model.Occurrence, 0)
	cursor := base
	for emitted := 0; emitted < maxCount && !cursor.After(cutoff); emitted++ {
		if cfg.includes(cursor) {
			out = append(out, makeOccurrence(ev, cursor))
		}
		cursor = Advance(cursor, rec.Frequency)
	}
	return out, nil
}

// Advance returns the next instance after t for the given frequency.
// Monthly and yearly steps keep the day of month of t, clamped to the last
// day of the target month.
func Advance(t time.Time, f model.Frequency) time.Time {
	switch f {
	case model.FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case model.FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case model.FrequencyMonthly:
		y, m := t.Year(), t.Month()+1
		if m > time.December {
			m = time.January
			y++
		}
		return withDate(t, y, m)
	case model.FrequencyYearly:
		return withDate(t, t.Year()+1, t.Month())
	default:
		return t
	}
}

func withDate(t time.Time, year int, month time.Month) time.Time {
	day := min(t.Day(), daysIn(year, month))
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func makeOccurrence(ev model.Event, at time.Time) model.Occurrence {
	return model.Occurrence{
		Event:          ev,
		OccurrenceTime: FormatEventTime(at),
		SourceID:       ev.ID,
	}
}
