package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"daybook/internal/auth"
	"daybook/internal/log"
	"daybook/internal/store"
)

// UserSummary is one row of the admin user list.
type UserSummary struct {
	Username   string `json:"username"`
	APIKey     string `json:"api_key"`
	Enabled    bool   `json:"enabled"`
	CreatedAt  string `json:"created_at"`
	IsAdmin    bool   `json:"is_admin"`
	EventCount int    `json:"event_count"`
}

// Stats summarizes the installation.
type Stats struct {
	TotalUsers     int    `json:"total_users"`
	TotalEvents    int    `json:"total_events"`
	TodayNewUsers  int    `json:"today_new_users"`
	TodayNewEvents int    `json:"today_new_events"`
	SystemStatus   string `json:"system_status"`
}

// ListUsers returns every account sorted by username.
func (s *Service) ListUsers(ctx context.Context) ([]UserSummary, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		sched, err := s.store.LoadSchedule(ctx, u.Username)
		if err != nil {
			return nil, err
		}
		out = append(out, UserSummary{
			Username:   u.Username,
			APIKey:     u.APIKey,
			Enabled:    u.Enabled,
			CreatedAt:  u.CreatedAt,
			IsAdmin:    s.IsAdmin(u.Username),
			EventCount: len(sched.Items),
		})
	}
	return out, nil
}

// DeleteUser removes an account and its schedule. The admin account cannot
// be deleted.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	if _, err := s.store.GetUser(ctx, username); errors.Is(err, store.ErrNotFound) {
		return errNoUser
	} else if err != nil {
		return err
	}
	if s.IsAdmin(username) {
		return fmt.Errorf("%w: Admin user cannot be deleted", ErrValidation)
	}

	defer s.locks.lock(username)()
	if err := s.store.DeleteUser(ctx, username); errors.Is(err, store.ErrNotFound) {
		return errNoUser
	} else if err != nil {
		return err
	}
	log.Info("user deleted", "username", username)
	return nil
}

// ResetPassword sets a new password, rehashed with the current iteration
// count.
func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	u, err := s.store.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return errNoUser
	} else if err != nil {
		return err
	}
	if !auth.ValidPassword(password) {
		return errBadPassword
	}
	salt, hash, err := auth.HashPassword(password, s.opts.PasswordIterations)
	if err != nil {
		return err
	}
	u.PasswordSalt, u.PasswordHash = salt, hash
	u.Iterations = s.opts.PasswordIterations
	if u.Iterations <= 0 {
		u.Iterations = auth.DefaultIterations
	}
	return s.store.SaveUser(ctx, u)
}

// ToggleUser flips an account between enabled and disabled and returns the
// new state. The admin account cannot be disabled.
func (s *Service) ToggleUser(ctx context.Context, username string) (bool, error) {
	u, err := s.store.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return false, errNoUser
	} else if err != nil {
		return false, err
	}
	if s.IsAdmin(username) {
		return false, fmt.Errorf("%w: Admin user cannot be disabled", ErrValidation)
	}
	u.Enabled = !u.Enabled
	if err := s.store.SaveUser(ctx, u); err != nil {
		return false, err
	}
	return u.Enabled, nil
}

// Stats counts users and events, and those created today (UTC).
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return Stats{}, err
	}
	today := s.now().UTC().Format("2006-01-02")

	st := Stats{TotalUsers: len(users), SystemStatus: "ok"}
	for _, u := range users {
		if createdOn(u.CreatedAt, today) {
			st.TodayNewUsers++
		}
		sched, err := s.store.LoadSchedule(ctx, u.Username)
		if err != nil {
			return Stats{}, err
		}
		st.TotalEvents += len(sched.Items)
		for _, ev := range sched.Items {
			if createdOn(ev.CreatedAt, today) {
				st.TodayNewEvents++
			}
		}
	}
	if err := s.store.Ping(ctx); err != nil {
		log.Error("store ping failed", err)
		st.SystemStatus = "degraded"
	}
	return st, nil
}

// createdOn reports whether an ISO timestamp falls on the given YYYY-MM-DD.
func createdOn(ts, day string) bool {
	return len(ts) >= len(day) && strings.HasPrefix(ts, day)
}
