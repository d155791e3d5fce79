package model

import "encoding/json"

// Frequency is how often a recurring event repeats.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// EndType controls how a recurrence is bounded.
type EndType string

const (
	EndNever EndType = "never"
	EndUntil EndType = "until"
	EndCount EndType = "count"
)

// Recurrence is the normalized recurrence record stored with an Event.
//
// Until is a YYYY-MM-DD date and is only set for EndUntil; Count is only set
// for EndCount. Both are nil for EndNever and for FrequencyNone.
type Recurrence struct {
	Frequency Frequency `json:"frequency"`
	EndType   EndType   `json:"end_type"`
	Until     *string   `json:"until"`
	Count     *int      `json:"count"`
}

// NoRecurrence returns the canonical "does not repeat" record.
func NoRecurrence() Recurrence {
	return Recurrence{Frequency: FrequencyNone, EndType: EndNever}
}

// Repeats reports whether the record describes a recurring event. Records
// loaded from older data without a frequency count as non-recurring.
func (r Recurrence) Repeats() bool {
	return r.Frequency != "" && r.Frequency != FrequencyNone
}

// Event is a stored schedule entry. Time and EndTime are naive local
// wall-clock strings in the YYYY-MM-DDTHH:MM format.
type Event struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Time        string     `json:"time"`
	EndTime     string     `json:"end_time"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	Recurrence  Recurrence `json:"recurrence"`
	CreatedAt   string     `json:"created_at"`
}

// Occurrence is a single concrete instance of an Event after recurrence
// expansion. It is derived on every request and never persisted.
type Occurrence struct {
	Event
	OccurrenceTime string `json:"occurrence_time"`
	SourceID       int    `json:"source_id"`
}

// Schedule is one user's event collection as handed to and from storage.
type Schedule struct {
	NextID int     `json:"next_id"`
	Items  []Event `json:"items"`
}

// Find returns the event with the given id.
func (s Schedule) Find(id int) (Event, bool) {
	for _, ev := range s.Items {
		if ev.ID == id {
			return ev, true
		}
	}
	return Event{}, false
}

// User is a registered account.
type User struct {
	Username     string
	APIKey       string
	PasswordSalt []byte
	PasswordHash []byte
	Iterations   int
	Enabled      bool
	CreatedAt    string
}

// Opt is a field that may be absent from a partial update. A key present in
// the JSON input (even with a null value) sets Set.
type Opt[T any] struct {
	Set   bool
	Value T
}

// Some returns an Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	return json.Unmarshal(b, &o.Value)
}

// RawRecurrence is recurrence input as received from a client, before
// normalization. Count is left untyped because clients send numbers as well
// as numeric strings.
type RawRecurrence struct {
	Frequency *string `json:"frequency"`
	EndType   *string `json:"end_type"`
	Until     *string `json:"until"`
	Count     any     `json:"count"`
}

// EventPatch is a partial update. Fields left unset keep their prior values.
type EventPatch struct {
	Title       Opt[string]         `json:"title"`
	Time        Opt[string]         `json:"time"`
	EndTime     Opt[string]         `json:"end_time"`
	Location    Opt[string]         `json:"location"`
	Description Opt[string]         `json:"description"`
	Recurrence  Opt[*RawRecurrence] `json:"recurrence"`
}

// EventInput holds the fields of a new event as received from a client.
// EndTime may be empty, in which case the event lasts one hour.
type EventInput struct {
	Title       string         `json:"title"`
	Time        string         `json:"time"`
	EndTime     string         `json:"end_time"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Recurrence  *RawRecurrence `json:"recurrence"`
}
