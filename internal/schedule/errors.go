package schedule

import (
	"errors"
	"fmt"

	"daybook/internal/model"
)

var (
	ErrInvalidFormat          = errors.New("invalid format")
	ErrInvalidRecurrenceField = errors.New("invalid recurrence field")
	ErrInvalidInterval        = errors.New("invalid interval")
	ErrConflictDetected       = errors.New("time conflict")
	ErrNoAvailableSlot        = errors.New("no available slot")
)

// ConflictError reports the stored event a candidate interval overlaps.
// It matches ErrConflictDetected with errors.Is.
type ConflictError struct {
	ID    int
	Title string
}

func newConflictError(ev model.Event) *ConflictError {
	return &ConflictError{ID: ev.ID, Title: ev.Title}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Time conflict with event #%d: %s", e.ID, e.Title)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflictDetected
}
