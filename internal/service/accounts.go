package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"daybook/internal/auth"
	"daybook/internal/model"
	"daybook/internal/store"
)

var (
	errBadUsername = fmt.Errorf("%w: Username must be 4-20 chars (letters, numbers, underscore)", ErrValidation)
	errBadPassword = fmt.Errorf("%w: Password must be at least 8 chars and include letters and numbers", ErrValidation)
	errBadLogin    = fmt.Errorf("%w: Invalid username or password", ErrUnauthorized)
	errNoAuth      = fmt.Errorf("%w: Authentication required", ErrUnauthorized)
	errDisabled    = fmt.Errorf("%w: Account is disabled", ErrForbidden)
	errNotAdmin    = fmt.Errorf("%w: Admin access required", ErrForbidden)
	errNoUser      = fmt.Errorf("%w: User not found", ErrNotFound)
)

// Register creates an enabled account with a fresh API key and an empty
// schedule.
func (s *Service) Register(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if !auth.ValidUsername(username) {
		return model.User{}, errBadUsername
	}
	if !auth.ValidPassword(password) {
		return model.User{}, errBadPassword
	}

	defer s.locks.lock(username)()
	if _, err := s.store.GetUser(ctx, username); err == nil {
		return model.User{}, fmt.Errorf("%w: Username already exists", ErrUserExists)
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.User{}, err
	}

	salt, hash, err := auth.HashPassword(password, s.opts.PasswordIterations)
	if err != nil {
		return model.User{}, err
	}
	key, err := auth.NewAPIKey()
	if err != nil {
		return model.User{}, err
	}
	iterations := s.opts.PasswordIterations
	if iterations <= 0 {
		iterations = auth.DefaultIterations
	}
	u := model.User{
		Username:     username,
		APIKey:       key,
		PasswordSalt: salt,
		PasswordHash: hash,
		Iterations:   iterations,
		Enabled:      true,
		CreatedAt:    s.isoNow(),
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return model.User{}, err
	}
	if err := s.store.SaveSchedule(ctx, username, model.Schedule{NextID: 1, Items: []model.Event{}}); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Login checks a username and password.
func (s *Service) Login(ctx context.Context, username, password string) (model.User, error) {
	u, err := s.store.GetUser(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, errBadLogin
	} else if err != nil {
		return model.User{}, err
	}
	if !auth.VerifyPassword(u, password) {
		return model.User{}, errBadLogin
	}
	if !u.Enabled {
		return model.User{}, errDisabled
	}
	return u, nil
}

// Authorize resolves an already identified username (e.g. from a session)
// to an enabled account.
func (s *Service) Authorize(ctx context.Context, username string) (model.User, error) {
	if username == "" {
		return model.User{}, errNoAuth
	}
	u, err := s.store.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, errDisabled
	} else if err != nil {
		return model.User{}, err
	}
	if !u.Enabled {
		return model.User{}, errDisabled
	}
	return u, nil
}

// AuthenticateKey resolves an API key to an enabled account. An unknown key
// counts as no credentials at all.
func (s *Service) AuthenticateKey(ctx context.Context, key string) (model.User, error) {
	if key == "" {
		return model.User{}, errNoAuth
	}
	u, err := s.store.FindUserByAPIKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, errNoAuth
	} else if err != nil {
		return model.User{}, err
	}
	if !u.Enabled {
		return model.User{}, errDisabled
	}
	return u, nil
}

// RequireAdmin returns ErrForbidden unless username is the admin account.
func (s *Service) RequireAdmin(username string) error {
	if !s.IsAdmin(username) {
		return errNotAdmin
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, username string) (model.User, error) {
	u, err := s.store.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, errNoUser
	}
	return u, err
}
