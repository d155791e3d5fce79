package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"daybook/internal/model"
)

// Memory is a process-local Store. It backs tests and throwaway servers.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]model.User
	schedules map[string]model.Schedule
}

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]model.User),
		schedules: make(map[string]model.Schedule),
	}
}

func (m *Memory) LoadSchedule(_ context.Context, username string) (model.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[username]
	if !ok {
		return emptySchedule(), nil
	}
	return model.Schedule{NextID: s.NextID, Items: slices.Clone(s.Items)}, nil
}

func (m *Memory) SaveSchedule(_ context.Context, username string, s model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := slices.Clone(s.Items)
	if items == nil {
		items = []model.Event{}
	}
	m.schedules[username] = model.Schedule{NextID: nextIDFloor(s), Items: items}
	return nil
}

func (m *Memory) GetUser(_ context.Context, username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) FindUserByAPIKey(_ context.Context, key string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if key != "" && u.APIKey == key {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *Memory) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b model.User) int { return strings.Compare(a.Username, b.Username) })
	return out, nil
}

func (m *Memory) SaveUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Username] = u
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return ErrNotFound
	}
	delete(m.users, username)
	delete(m.schedules, username)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
