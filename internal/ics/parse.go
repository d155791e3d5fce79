package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "daybook/internal/log"
	"daybook/internal/model"
	"daybook/internal/schedule"
)

// Entry is one importable VEVENT mapped onto event creation input.
type Entry struct {
	UID   string
	Input model.EventInput
}

// Skipped records a VEVENT that could not be mapped.
type Skipped struct {
	UID    string `json:"uid"`
	Reason string `json:"reason"`
}

var fromRRuleFreq = map[rrule.Frequency]model.Frequency{
	rrule.DAILY:   model.FrequencyDaily,
	rrule.WEEKLY:  model.FrequencyWeekly,
	rrule.MONTHLY: model.FrequencyMonthly,
	rrule.YEARLY:  model.FrequencyYearly,
}

// Parse reads an iCalendar payload and maps each VEVENT to event input.
//
//   - DTSTART/DTEND are read as wall-clock times: floating and TZID values
//     are taken literally, UTC values are converted to the server's zone.
//   - All-day events start at 00:00 and last until DTEND (one day if absent).
//   - Overrides (RECURRENCE-ID) and RRULEs with INTERVAL or BY* parts have no
//     equivalent and are skipped with a reason.
func Parse(body []byte) ([]Entry, []Skipped, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}

	entries := make([]Entry, 0)
	skipped := make([]Skipped, 0)
	for i, ve := range cal.Events() {
		uid := fmt.Sprintf("#%d", i+1)
		if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil && p.Value != "" {
			uid = p.Value
		}

		in, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Debug("ics vevent skipped", "uid", uid, "reason", perr.Error())
			skipped = append(skipped, Skipped{UID: uid, Reason: perr.Error()})
			continue
		}
		entries = append(entries, Entry{UID: uid, Input: in})
	}
	return entries, skipped, nil
}

func parseVEvent(ve *ical.VEvent) (model.EventInput, error) {
	var in model.EventInput

	if ve.GetProperty("RECURRENCE-ID") != nil {
		return in, errors.New("recurrence overrides are not supported")
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		in.Title = strings.TrimSpace(p.Value)
	}
	if in.Title == "" {
		return in, errors.New("missing SUMMARY")
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		in.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		in.Description = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return in, errors.New("missing DTSTART")
	}
	start, allDay, err := parseICSTime(startProp.Value)
	if err != nil {
		return in, fmt.Errorf("DTSTART: %w", err)
	}
	in.Time = schedule.FormatEventTime(start)

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, err := parseICSTime(endProp.Value)
		if err != nil {
			return in, fmt.Errorf("DTEND: %w", err)
		}
		in.EndTime = schedule.FormatEventTime(end)
	} else if allDay {
		in.EndTime = schedule.FormatEventTime(start.AddDate(0, 0, 1))
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rec, err := recurrenceFromRRule(p.Value)
		if err != nil {
			return in, err
		}
		in.Recurrence = rec
	}
	return in, nil
}

// recurrenceFromRRule maps an RRULE value onto recurrence input.
func recurrenceFromRRule(value string) (*model.RawRecurrence, error) {
	opt, err := rrule.StrToROption(strings.TrimPrefix(strings.TrimSpace(value), "RRULE:"))
	if err != nil {
		return nil, fmt.Errorf("RRULE: %w", err)
	}
	freq, ok := fromRRuleFreq[opt.Freq]
	if !ok {
		return nil, fmt.Errorf("RRULE frequency %v is not supported", opt.Freq)
	}
	if opt.Interval > 1 {
		return nil, errors.New("RRULE INTERVAL is not supported")
	}
	if len(opt.Byweekday) > 0 || len(opt.Bymonthday) > 0 || len(opt.Bymonth) > 0 ||
		len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 {
		return nil, errors.New("RRULE BY* rules are not supported")
	}

	f := string(freq)
	rec := &model.RawRecurrence{Frequency: &f}
	switch {
	case opt.Count > 0:
		end := string(model.EndCount)
		rec.EndType = &end
		rec.Count = opt.Count
	case !opt.Until.IsZero():
		end := string(model.EndUntil)
		until := opt.Until.Format(schedule.DateLayout)
		rec.EndType = &end
		rec.Until = &until
	default:
		end := string(model.EndNever)
		rec.EndType = &end
	}
	return rec, nil
}

// parseICSTime parses a DATE or DATE-TIME value into a wall-clock time and
// reports whether it was a DATE.
func parseICSTime(v string) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, false, err
		}
		local := t.In(time.Local)
		return wallClock(local), false, nil
	}

	// Floating or TZID date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		t, err := time.ParseInLocation(floatingLayout, v, time.UTC)
		return t.Truncate(time.Minute), false, err
	}

	// Date-only (all-day), e.g., 20250101
	if len(v) != 8 {
		return time.Time{}, false, fmt.Errorf("bad date %q", v)
	}
	if _, err := strconv.Atoi(v); err != nil {
		return time.Time{}, false, fmt.Errorf("bad date %q", v)
	}
	t, err := time.ParseInLocation("20060102", v, time.UTC)
	return t, true, err
}

func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC)
}
