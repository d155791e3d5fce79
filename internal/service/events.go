package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"daybook/internal/model"
	"daybook/internal/notify"
	"daybook/internal/schedule"
)

// Items returns the user's stored events in storage order.
func (s *Service) Items(ctx context.Context, username string) ([]model.Event, error) {
	sched, err := s.store.LoadSchedule(ctx, username)
	if err != nil {
		return nil, err
	}
	return sched.Items, nil
}

// Occurrences expands the user's events, optionally bounded by start and end
// (YYYY-MM-DDTHH:MM, inclusive), sorted by occurrence time.
func (s *Service) Occurrences(ctx context.Context, username, start, end string) ([]model.Occurrence, error) {
	var cfg schedule.ExpandConfig
	if start != "" {
		t, err := schedule.ParseEventTime(start)
		if err != nil {
			return nil, err
		}
		cfg.RangeStart = &t
	}
	if end != "" {
		t, err := schedule.ParseEventTime(end)
		if err != nil {
			return nil, err
		}
		cfg.RangeEnd = &t
	}

	sched, err := s.store.LoadSchedule(ctx, username)
	if err != nil {
		return nil, err
	}
	return schedule.ExpandOccurrences(sched.Items, cfg)
}

func (s *Service) Get(ctx context.Context, username string, id int) (model.Event, error) {
	sched, err := s.store.LoadSchedule(ctx, username)
	if err != nil {
		return model.Event{}, err
	}
	ev, ok := sched.Find(id)
	if !ok {
		return model.Event{}, errItemNotFound
	}
	return ev, nil
}

var errItemNotFound = fmt.Errorf("%w: Schedule item not found", ErrNotFound)

// requireFields checks the fields every event must carry.
func requireFields(title, location, description string) error {
	if title == "" || location == "" || description == "" {
		return fmt.Errorf("%w: All fields are required", ErrValidation)
	}
	return nil
}

// Create validates input, rejects it if it overlaps a stored event and
// appends it with the next id.
func (s *Service) Create(ctx context.Context, username string, in model.EventInput) (model.Event, error) {
	if err := requireFields(in.Title, in.Location, in.Description); err != nil {
		return model.Event{}, err
	}
	if in.Time == "" {
		return model.Event{}, fmt.Errorf("%w: All fields are required", ErrValidation)
	}

	ev, err := func() (model.Event, error) {
		defer s.locks.lock(username)()
		sched, err := s.store.LoadSchedule(ctx, username)
		if err != nil {
			return model.Event{}, err
		}
		ev, err := s.appendEvent(&sched, in)
		if err != nil {
			return model.Event{}, err
		}
		return ev, s.store.SaveSchedule(ctx, username, sched)
	}()
	if err != nil {
		return model.Event{}, err
	}
	s.publish(notify.EventCreated, username, ev)
	return ev, nil
}

// appendEvent runs the creation rules against sched and adds the event to
// it in memory. The caller persists sched.
func (s *Service) appendEvent(sched *model.Schedule, in model.EventInput) (model.Event, error) {
	start, end, err := schedule.ResolveRange(in.Time, in.EndTime)
	if err != nil {
		return model.Event{}, err
	}
	rec, err := schedule.NormalizeRecurrence(in.Recurrence)
	if err != nil {
		return model.Event{}, err
	}
	if err := schedule.CheckConflict(sched.Items, start, end, 0); err != nil {
		return model.Event{}, err
	}

	if sched.NextID < 1 {
		sched.NextID = 1
	}
	ev := model.Event{
		ID:          sched.NextID,
		Title:       in.Title,
		Time:        schedule.FormatEventTime(start),
		EndTime:     schedule.FormatEventTime(end),
		Location:    in.Location,
		Description: in.Description,
		Recurrence:  rec,
		CreatedAt:   s.isoNow(),
	}
	sched.NextID++
	sched.Items = append(sched.Items, ev)
	return ev, nil
}

// Update applies a partial change to one event. The candidate interval is
// the patched or stored time and end_time; it must not overlap any other
// stored event. An end_time patched to null or "" resets to one hour.
func (s *Service) Update(ctx context.Context, username string, id int, patch model.EventPatch) (model.Event, error) {
	next, err := s.update(ctx, username, id, patch)
	if err != nil {
		return model.Event{}, err
	}
	s.publish(notify.EventUpdated, username, next)
	return next, nil
}

func (s *Service) update(ctx context.Context, username string, id int, patch model.EventPatch) (model.Event, error) {
	defer s.locks.lock(username)()
	sched, err := s.store.LoadSchedule(ctx, username)
	if err != nil {
		return model.Event{}, err
	}
	idx := slices.IndexFunc(sched.Items, func(ev model.Event) bool { return ev.ID == id })
	if idx < 0 {
		return model.Event{}, errItemNotFound
	}
	current := sched.Items[idx]

	next, err := applyPatch(current, patch)
	if err != nil {
		return model.Event{}, err
	}

	start, end, err := schedule.ResolveRange(next.Time, next.EndTime)
	if err != nil {
		return model.Event{}, err
	}
	if err := schedule.CheckConflict(sched.Items, start, end, id); err != nil {
		return model.Event{}, err
	}
	if patch.Recurrence.Set {
		if next.Recurrence, err = schedule.NormalizeRecurrence(patch.Recurrence.Value); err != nil {
			return model.Event{}, err
		}
	}
	if next.Recurrence.Frequency == "" {
		next.Recurrence = model.NoRecurrence()
	}
	next.Time = schedule.FormatEventTime(start)
	next.EndTime = schedule.FormatEventTime(end)

	items := slices.Clone(sched.Items)
	items[idx] = next
	sched.Items = items
	if err := s.store.SaveSchedule(ctx, username, sched); err != nil {
		return model.Event{}, err
	}
	return next, nil
}

// applyPatch returns a copy of ev with the set text fields replaced.
// Recurrence is handled by the caller once the interval is known good.
func applyPatch(ev model.Event, p model.EventPatch) (model.Event, error) {
	if p.Title.Set {
		ev.Title = p.Title.Value
	}
	if p.Location.Set {
		ev.Location = p.Location.Value
	}
	if p.Description.Set {
		ev.Description = p.Description.Value
	}
	if p.Time.Set {
		ev.Time = p.Time.Value
	}
	if p.EndTime.Set {
		ev.EndTime = p.EndTime.Value
	}
	if err := requireFields(ev.Title, ev.Location, ev.Description); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

func (s *Service) Delete(ctx context.Context, username string, id int) error {
	ev, err := func() (model.Event, error) {
		defer s.locks.lock(username)()
		sched, err := s.store.LoadSchedule(ctx, username)
		if err != nil {
			return model.Event{}, err
		}
		ev, ok := sched.Find(id)
		if !ok {
			return model.Event{}, errItemNotFound
		}
		sched.Items = slices.DeleteFunc(slices.Clone(sched.Items), func(e model.Event) bool { return e.ID == id })
		return ev, s.store.SaveSchedule(ctx, username, sched)
	}()
	if err != nil {
		return err
	}
	s.publish(notify.EventDeleted, username, ev)
	return nil
}

// BookRequest asks for the earliest free slot on Date and creates an event
// there.
type BookRequest struct {
	Date string
	// Duration in minutes.
	Duration    int
	WindowStart string
	WindowEnd   string

	Title       string
	Location    string
	Description string
	Recurrence  *model.RawRecurrence
}

// Book finds the earliest gap of the requested length inside the window on
// the given day, with recurring events expanded, and creates the event in
// it.
func (s *Service) Book(ctx context.Context, username string, req BookRequest) (model.Event, error) {
	if err := requireFields(req.Title, req.Location, req.Description); err != nil {
		return model.Event{}, err
	}
	day, err := schedule.ParseDate(req.Date)
	if err != nil {
		return model.Event{}, err
	}
	if req.Duration <= 0 {
		return model.Event{}, fmt.Errorf("%w: duration must be a positive number of minutes", ErrValidation)
	}
	if req.WindowStart == "" {
		req.WindowStart = s.opts.SlotWindowStart
	}
	if req.WindowEnd == "" {
		req.WindowEnd = s.opts.SlotWindowEnd
	}
	windowStart, err := schedule.AtClock(day, req.WindowStart)
	if err != nil {
		return model.Event{}, err
	}
	windowEnd, err := schedule.AtClock(day, req.WindowEnd)
	if err != nil {
		return model.Event{}, err
	}

	ev, err := s.book(ctx, username, req, schedule.SlotQuery{
		Date:        day,
		Duration:    time.Duration(req.Duration) * time.Minute,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	})
	if err != nil {
		return model.Event{}, err
	}
	s.publish(notify.EventCreated, username, ev)
	return ev, nil
}

func (s *Service) book(ctx context.Context, username string, req BookRequest, q schedule.SlotQuery) (model.Event, error) {
	defer s.locks.lock(username)()
	sched, err := s.store.LoadSchedule(ctx, username)
	if err != nil {
		return model.Event{}, err
	}
	slot, err := schedule.FindSlot(sched.Items, q)
	if err != nil {
		return model.Event{}, err
	}

	ev, err := s.appendEvent(&sched, model.EventInput{
		Title:       req.Title,
		Time:        schedule.FormatEventTime(slot.Start),
		EndTime:     schedule.FormatEventTime(slot.End),
		Location:    req.Location,
		Description: req.Description,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		return model.Event{}, err
	}
	if err := s.store.SaveSchedule(ctx, username, sched); err != nil {
		return model.Event{}, err
	}
	return ev, nil
}
