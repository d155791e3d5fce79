package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"daybook/internal/config"
	"daybook/internal/model"
)

// Files stores users in users.json and each schedule in
// schedules/<username>.json under a data directory. Writes go through a
// temp file and rename.
type Files struct {
	mu  sync.Mutex
	dir string
}

type passwordRecord struct {
	Salt       []byte `json:"salt"`
	Hash       []byte `json:"hash"`
	Iterations int    `json:"iterations"`
}

type userRecord struct {
	APIKey    string         `json:"api_key"`
	Password  passwordRecord `json:"password"`
	Enabled   bool           `json:"enabled"`
	CreatedAt string         `json:"created_at"`
}

func OpenFiles(dir string) (*Files, error) {
	if dir == "" {
		return nil, errors.New("data dir is empty")
	}
	if err := os.MkdirAll(filepath.Join(dir, "schedules"), 0o700); err != nil {
		return nil, err
	}
	return &Files{dir: dir}, nil
}

func (f *Files) usersPath() string { return filepath.Join(f.dir, "users.json") }

func (f *Files) schedulePath(username string) string {
	return filepath.Join(f.dir, "schedules", username+".json")
}

func (f *Files) readUsers() (map[string]userRecord, error) {
	users := make(map[string]userRecord)
	data, err := os.ReadFile(f.usersPath())
	if errors.Is(err, fs.ErrNotExist) {
		return users, nil
	} else if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (f *Files) writeUsers(users map[string]userRecord) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(f.usersPath(), data, 0o600)
}

func (f *Files) LoadSchedule(_ context.Context, username string) (model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.schedulePath(username))
	if errors.Is(err, fs.ErrNotExist) {
		return emptySchedule(), nil
	} else if err != nil {
		return model.Schedule{}, err
	}
	var s model.Schedule
	if err := json.Unmarshal(data, &s); err != nil {
		return model.Schedule{}, err
	}
	if s.Items == nil {
		s.Items = []model.Event{}
	}
	s.NextID = nextIDFloor(s)
	return s, nil
}

func (f *Files) SaveSchedule(_ context.Context, username string, s model.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.Items == nil {
		s.Items = []model.Event{}
	}
	s.NextID = nextIDFloor(s)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(f.schedulePath(username), data, 0o600)
}

func (f *Files) GetUser(_ context.Context, username string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	users, err := f.readUsers()
	if err != nil {
		return model.User{}, err
	}
	rec, ok := users[username]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return rec.toUser(username), nil
}

func (f *Files) FindUserByAPIKey(_ context.Context, key string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	users, err := f.readUsers()
	if err != nil {
		return model.User{}, err
	}
	for name, rec := range users {
		if key != "" && rec.APIKey == key {
			return rec.toUser(name), nil
		}
	}
	return model.User{}, ErrNotFound
}

func (f *Files) ListUsers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	users, err := f.readUsers()
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(users))
	for name, rec := range users {
		out = append(out, rec.toUser(name))
	}
	slices.SortFunc(out, func(a, b model.User) int { return strings.Compare(a.Username, b.Username) })
	return out, nil
}

func (f *Files) SaveUser(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	users, err := f.readUsers()
	if err != nil {
		return err
	}
	users[u.Username] = userRecord{
		APIKey: u.APIKey,
		Password: passwordRecord{
			Salt:       u.PasswordSalt,
			Hash:       u.PasswordHash,
			Iterations: u.Iterations,
		},
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
	}
	return f.writeUsers(users)
}

func (f *Files) DeleteUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	users, err := f.readUsers()
	if err != nil {
		return err
	}
	if _, ok := users[username]; !ok {
		return ErrNotFound
	}
	delete(users, username)
	if err := f.writeUsers(users); err != nil {
		return err
	}
	if err := os.Remove(f.schedulePath(username)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Ping checks that the data directory is still reachable.
func (f *Files) Ping(context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

func (f *Files) Close() error { return nil }

func (r userRecord) toUser(username string) model.User {
	return model.User{
		Username:     username,
		APIKey:       r.APIKey,
		PasswordSalt: r.Password.Salt,
		PasswordHash: r.Password.Hash,
		Iterations:   r.Password.Iterations,
		Enabled:      r.Enabled,
		CreatedAt:    r.CreatedAt,
	}
}
