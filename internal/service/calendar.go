package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"daybook/internal/ics"
	"daybook/internal/log"
	"daybook/internal/model"
	"daybook/internal/notify"
)

// Stand-ins for fields iCalendar leaves optional but events require.
const (
	importedLocation    = "-"
	importedDescription = "Imported from iCalendar"
)

// ImportResult lists the events created by an import and the entries that
// were left out.
type ImportResult struct {
	Imported []model.Event `json:"imported"`
	Skipped  []ics.Skipped `json:"skipped"`
}

// Export renders the user's events as an iCalendar feed.
func (s *Service) Export(ctx context.Context, username string) (string, error) {
	sched, err := s.store.LoadSchedule(ctx, username)
	if err != nil {
		return "", err
	}
	return ics.Export(username, sched.Items, s.now())
}

// Import creates an event for every usable VEVENT in body. Entries are
// created in feed order through the normal creation rules, so one that
// overlaps an earlier entry or a stored event is skipped with the conflict
// as its reason.
func (s *Service) Import(ctx context.Context, username string, body []byte) (ImportResult, error) {
	entries, skipped, err := ics.Parse(body)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: invalid iCalendar data: %v", ErrValidation, err)
	}
	res := ImportResult{Imported: []model.Event{}, Skipped: skipped}
	if err := s.importEntries(ctx, username, entries, &res); err != nil {
		return ImportResult{}, err
	}
	for _, ev := range res.Imported {
		s.publish(notify.EventCreated, username, ev)
	}
	if len(res.Imported) > 0 {
		log.Info("calendar imported", "username", username, "imported", len(res.Imported), "skipped", len(res.Skipped))
	}
	return res, nil
}

// importEntries appends entries to the stored schedule under the user's lock
// and saves it once.
func (s *Service) importEntries(ctx context.Context, username string, entries []ics.Entry, res *ImportResult) error {
	defer s.locks.lock(username)()
	sched, err := s.store.LoadSchedule(ctx, username)
	if err != nil {
		return err
	}
	for _, e := range entries {
		in := e.Input
		if strings.TrimSpace(in.Location) == "" {
			in.Location = importedLocation
		}
		if strings.TrimSpace(in.Description) == "" {
			in.Description = importedDescription
		}
		ev, err := s.appendEvent(&sched, in)
		if err != nil {
			res.Skipped = append(res.Skipped, ics.Skipped{UID: e.UID, Reason: err.Error()})
			continue
		}
		res.Imported = append(res.Imported, ev)
	}
	if len(res.Imported) == 0 {
		return nil
	}
	return s.store.SaveSchedule(ctx, username, sched)
}

var errFetchFailed = fmt.Errorf("%w: could not fetch calendar", ErrValidation)

// ImportURL downloads a feed and imports it.
func (s *Service) ImportURL(ctx context.Context, username, url string) (ImportResult, error) {
	if url == "" {
		return ImportResult{}, fmt.Errorf("%w: url is required", ErrValidation)
	}
	body, err := s.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ImportResult{}, err
		}
		// The cause may name internal hosts and ports, so it is only logged.
		log.Warn("calendar fetch failed", "username", username, "err", err)
		return ImportResult{}, errFetchFailed
	}
	return s.Import(ctx, username, body)
}
