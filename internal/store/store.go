package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"daybook/internal/config"
	"daybook/internal/model"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence port. Schedules are keyed by username and are
// always read and written whole.
type Store interface {
	// LoadSchedule returns the user's schedule, or an empty one with
	// NextID 1 if nothing has been saved yet.
	LoadSchedule(ctx context.Context, username string) (model.Schedule, error)
	// SaveSchedule replaces the user's whole schedule.
	SaveSchedule(ctx context.Context, username string, s model.Schedule) error

	GetUser(ctx context.Context, username string) (model.User, error)
	FindUserByAPIKey(ctx context.Context, key string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	// SaveUser inserts or replaces a user record.
	SaveUser(ctx context.Context, u model.User) error
	// DeleteUser removes the user and their schedule.
	DeleteUser(ctx context.Context, username string) error

	Ping(ctx context.Context) error
	Close() error
}

// Open selects a backend from cfg.DatabaseURL:
//   - ""                      JSON files under cfg.DataDir
//   - sqlite:///rel/path.db   SQLite (sqlite:////abs/path.db for absolute)
//   - postgres:// postgresql:// PostgreSQL
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return OpenFiles(cfg.DataDir)
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "sqlite", "":
		return OpenSQLite(ctx, sqlitePath(dsn))
	case "postgres", "postgresql":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %s", u.Scheme)
	}
}

func sqlitePath(dsn string) string {
	if after, ok := strings.CutPrefix(dsn, "sqlite:///"); ok {
		return after
	}
	return strings.TrimPrefix(dsn, "sqlite://")
}

// emptySchedule is what a user without saved events starts from.
func emptySchedule() model.Schedule {
	return model.Schedule{NextID: 1, Items: []model.Event{}}
}

// nextIDFloor keeps NextID above every stored id, so ids are never reused
// even if a caller hands back a stale counter.
func nextIDFloor(s model.Schedule) int {
	next := s.NextID
	if next < 1 {
		next = 1
	}
	for _, ev := range s.Items {
		if ev.ID >= next {
			next = ev.ID + 1
		}
	}
	return next
}
