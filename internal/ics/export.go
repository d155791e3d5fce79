// Package ics converts a user's events to and from iCalendar.
package ics

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"daybook/internal/model"
	"daybook/internal/schedule"
)

// floatingLayout is an iCalendar DATE-TIME without zone, matching the naive
// wall-clock times events are stored in.
const floatingLayout = "20060102T150405"

const productID = "-//daybook//daybook calendar//EN"

var toRRuleFreq = map[model.Frequency]rrule.Frequency{
	model.FrequencyDaily:   rrule.DAILY,
	model.FrequencyWeekly:  rrule.WEEKLY,
	model.FrequencyMonthly: rrule.MONTHLY,
	model.FrequencyYearly:  rrule.YEARLY,
}

// UID returns the stable iCalendar UID of a stored event.
func UID(username string, id int) string {
	return fmt.Sprintf("%d-%s@daybook", id, username)
}

// Export serializes events as a VCALENDAR. Recurring events carry an RRULE
// with FREQ and, depending on the end type, UNTIL or COUNT.
func Export(username string, events []model.Event, now time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(username)

	for _, ev := range events {
		start, end, err := schedule.ResolveRange(ev.Time, ev.EndTime)
		if err != nil {
			return "", fmt.Errorf("event #%d: %w", ev.ID, err)
		}

		ve := cal.AddEvent(UID(username, ev.ID))
		ve.SetDtStampTime(now.UTC())
		ve.SetProperty(ical.ComponentPropertyDtStart, start.Format(floatingLayout))
		ve.SetProperty(ical.ComponentPropertyDtEnd, end.Format(floatingLayout))
		ve.SetSummary(ev.Title)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}

		rule, err := RRule(ev.Recurrence)
		if err != nil {
			return "", fmt.Errorf("event #%d: %w", ev.ID, err)
		}
		if rule != "" {
			ve.SetProperty(ical.ComponentPropertyRrule, rule)
		}
	}
	return cal.Serialize(), nil
}

// RRule renders a normalized recurrence as an RRULE value, or "" when the
// event does not repeat.
func RRule(r model.Recurrence) (string, error) {
	if !r.Repeats() {
		return "", nil
	}
	freq, ok := toRRuleFreq[r.Frequency]
	if !ok {
		return "", fmt.Errorf("unsupported frequency %q", r.Frequency)
	}

	opt := rrule.ROption{Freq: freq}
	var until string
	switch r.EndType {
	case model.EndUntil:
		if r.Until == nil {
			return "", fmt.Errorf("until recurrence without a date")
		}
		end, err := schedule.ParseEndDate(*r.Until)
		if err != nil {
			return "", err
		}
		// RRuleString always writes UNTIL in UTC; DTSTART is floating, so
		// UNTIL must be too.
		until = ";UNTIL=" + end.Format(rrule.LocalDateTimeFormat)
	case model.EndCount:
		if r.Count == nil {
			return "", fmt.Errorf("count recurrence without a count")
		}
		opt.Count = *r.Count
	}
	return strings.TrimPrefix(opt.RRuleString(), "RRULE:") + until, nil
}
