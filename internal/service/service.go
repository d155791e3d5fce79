// Package service implements the calendar operations on top of the
// scheduling core and an injected store.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"daybook/internal/ics"
	"daybook/internal/log"
	"daybook/internal/model"
	"daybook/internal/notify"
	"daybook/internal/store"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUserExists   = errors.New("user exists")
)

// createdAtLayout matches the second-precision ISO timestamps in created_at.
const createdAtLayout = "2006-01-02T15:04:05"

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	AdminUsername      string
	PasswordIterations int
	// SlotWindowStart and SlotWindowEnd are the HH:MM bounds used by Book
	// when a request names no window.
	SlotWindowStart string
	SlotWindowEnd   string

	Publisher notify.Publisher
	Fetcher   *ics.Fetcher
}

type Service struct {
	store store.Store
	opts  Options
	locks userLocks

	// now is overridable in tests.
	now func() time.Time
}

func New(st store.Store, opts Options) *Service {
	if opts.AdminUsername == "" {
		opts.AdminUsername = "admin"
	}
	if opts.SlotWindowStart == "" {
		opts.SlotWindowStart = "09:00"
	}
	if opts.SlotWindowEnd == "" {
		opts.SlotWindowEnd = "18:00"
	}
	if opts.Publisher == nil {
		opts.Publisher = notify.Nop{}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = ics.NewFetcher("", 0)
	}
	return &Service{
		store: st,
		opts:  opts,
		locks: userLocks{m: make(map[string]*sync.Mutex)},
		now:   time.Now,
	}
}

// IsAdmin reports whether username is the configured admin account.
func (s *Service) IsAdmin(username string) bool {
	return username != "" && username == s.opts.AdminUsername
}

// Ping reports whether the store answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) isoNow() string {
	return s.now().UTC().Format(createdAtLayout)
}

func (s *Service) publish(key, username string, ev model.Event) {
	if err := s.opts.Publisher.Publish(key, notify.Change{Username: username, Event: ev}); err != nil {
		log.Error("publish change failed", err, "key", key, "username", username, "event_id", ev.ID)
	}
}

// userLocks serializes read-modify-write cycles on one user's schedule
// within this process.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *userLocks) lock(username string) func() {
	l.mu.Lock()
	m, ok := l.m[username]
	if !ok {
		m = &sync.Mutex{}
		l.m[username] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
