package schedule

import (
	"fmt"
	"time"

	"daybook/internal/model"
)

// DefaultDuration is the length given to an event created without an end.
const DefaultDuration = time.Hour

// ResolveRange parses a start and optional end into a half-open interval.
// An empty end defaults to one hour after start.
func ResolveRange(start, end string) (time.Time, time.Time, error) {
	startAt, err := ParseEventTime(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endAt := startAt.Add(DefaultDuration)
	if end != "" {
		if endAt, err = ParseEventTime(end); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !endAt.After(startAt) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end_time must be later than time", ErrInvalidInterval)
	}
	return startAt, endAt, nil
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindConflict returns the first stored event, in list order, whose own
// time/end_time interval overlaps [start, end). Recurring events are not
// expanded here: only their base interval takes part. ignoreID skips one
// event (the one being updated); zero skips nothing.
func FindConflict(items []model.Event, start, end time.Time, ignoreID int) (*model.Event, error) {
	for i := range items {
		entry := items[i]
		if ignoreID != 0 && entry.ID == ignoreID {
			continue
		}
		existingStart, existingEnd, err := ResolveRange(entry.Time, entry.EndTime)
		if err != nil {
			return nil, fmt.Errorf("event #%d: %w", entry.ID, err)
		}
		if Overlaps(start, end, existingStart, existingEnd) {
			return &entry, nil
		}
	}
	return nil, nil
}

// CheckConflict is FindConflict reported as an error: a *ConflictError when
// the interval overlaps a stored event.
func CheckConflict(items []model.Event, start, end time.Time, ignoreID int) error {
	hit, err := FindConflict(items, start, end, ignoreID)
	if err != nil {
		return err
	}
	if hit != nil {
		return newConflictError(*hit)
	}
	return nil
}
