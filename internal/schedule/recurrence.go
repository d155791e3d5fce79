package schedule

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"daybook/internal/model"
)

var allowedFrequencies = map[model.Frequency]bool{
	model.FrequencyNone:    true,
	model.FrequencyDaily:   true,
	model.FrequencyWeekly:  true,
	model.FrequencyMonthly: true,
	model.FrequencyYearly:  true,
}

var allowedEndTypes = map[model.EndType]bool{
	model.EndNever: true,
	model.EndUntil: true,
	model.EndCount: true,
}

// NormalizeRecurrence validates raw recurrence input and returns its
// canonical form. A nil input means "does not repeat". Fields that do not
// apply to the chosen frequency or end type are dropped.
func NormalizeRecurrence(raw *model.RawRecurrence) (model.Recurrence, error) {
	if raw == nil {
		return model.NoRecurrence(), nil
	}

	frequency := model.Frequency(strings.ToLower(deref(raw.Frequency)))
	if frequency == "" {
		frequency = model.FrequencyNone
	}
	if !allowedFrequencies[frequency] {
		return model.Recurrence{}, fmt.Errorf("%w: recurrence.frequency is invalid", ErrInvalidRecurrenceField)
	}
	if frequency == model.FrequencyNone {
		return model.NoRecurrence(), nil
	}

	endType := model.EndType(strings.ToLower(deref(raw.EndType)))
	if endType == "" {
		endType = model.EndNever
	}
	if !allowedEndTypes[endType] {
		return model.Recurrence{}, fmt.Errorf("%w: recurrence.end_type is invalid", ErrInvalidRecurrenceField)
	}

	out := model.Recurrence{Frequency: frequency, EndType: endType}
	switch endType {
	case model.EndUntil:
		until, err := ParseEndDate(deref(raw.Until))
		if err != nil {
			return model.Recurrence{}, fmt.Errorf("%w: recurrence.until must be YYYY-MM-DD", ErrInvalidRecurrenceField)
		}
		s := until.Format(DateLayout)
		out.Until = &s
	case model.EndCount:
		n, err := coerceCount(raw.Count)
		if err != nil {
			return model.Recurrence{}, err
		}
		if n < 1 {
			return model.Recurrence{}, fmt.Errorf("%w: recurrence.count must be greater than 0", ErrInvalidRecurrenceField)
		}
		out.Count = &n
	}
	return out, nil
}

// coerceCount accepts JSON numbers (truncated toward zero) and numeric
// strings.
func coerceCount(v any) (int, error) {
	notInt := fmt.Errorf("%w: recurrence.count must be an integer", ErrInvalidRecurrenceField)
	switch c := v.(type) {
	case int:
		return c, nil
	case int64:
		return int(c), nil
	case float64:
		if math.IsNaN(c) || math.IsInf(c, 0) || math.Abs(c) > math.MaxInt32 {
			return 0, notInt
		}
		return int(c), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(c))
		if err != nil {
			return 0, notInt
		}
		return n, nil
	case interface{ Int64() (int64, error) }:
		n, err := c.Int64()
		if err != nil {
			return 0, notInt
		}
		return int(n), nil
	default:
		return 0, notInt
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
