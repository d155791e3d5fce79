package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"daybook/internal/config"
	"daybook/internal/model"
)

func testUser(name, key string) model.User {
	return model.User{
		Username:     name,
		APIKey:       key,
		PasswordSalt: []byte{1, 2, 3, 4},
		PasswordHash: []byte{9, 8, 7, 6, 5},
		Iterations:   1000,
		Enabled:      true,
		CreatedAt:    "2025-03-01T10:00:00",
	}
}

func weekly(count int) model.Recurrence {
	return model.Recurrence{Frequency: model.FrequencyWeekly, EndType: model.EndCount, Count: &count}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	if _, err := s.GetUser(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser(missing) err = %v, want ErrNotFound", err)
	}

	for _, u := range []model.User{testUser("bob_1", "cs_bob"), testUser("alice", "cs_alice")} {
		if err := s.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser(%s): %v", u.Username, err)
		}
	}

	got, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.APIKey != "cs_alice" || string(got.PasswordHash) != string([]byte{9, 8, 7, 6, 5}) || !got.Enabled || got.Iterations != 1000 {
		t.Fatalf("GetUser = %+v", got)
	}

	byKey, err := s.FindUserByAPIKey(ctx, "cs_bob")
	if err != nil || byKey.Username != "bob_1" {
		t.Fatalf("FindUserByAPIKey = %+v, %v", byKey, err)
	}
	if _, err := s.FindUserByAPIKey(ctx, "cs_nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindUserByAPIKey(unknown) err = %v", err)
	}

	got.Enabled = false
	if err := s.SaveUser(ctx, got); err != nil {
		t.Fatalf("SaveUser(update): %v", err)
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob_1" {
		t.Fatalf("ListUsers order = %+v", users)
	}
	if users[0].Enabled {
		t.Fatalf("alice should be disabled after update")
	}

	empty, err := s.LoadSchedule(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadSchedule(empty): %v", err)
	}
	if empty.NextID != 1 || len(empty.Items) != 0 {
		t.Fatalf("empty schedule = %+v", empty)
	}

	sched := model.Schedule{
		NextID: 4,
		Items: []model.Event{
			{ID: 1, Title: "Standup", Time: "2025-03-03T09:00", EndTime: "2025-03-03T09:15", Location: "Room", Description: "d", Recurrence: weekly(4), CreatedAt: "2025-03-01T10:00:00"},
			{ID: 3, Title: "Lunch", Time: "2025-03-03T12:00", EndTime: "2025-03-03T13:00", Location: "Cafe", Description: "", Recurrence: model.NoRecurrence(), CreatedAt: "2025-03-01T10:00:00"},
		},
	}
	if err := s.SaveSchedule(ctx, "alice", sched); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}
	loaded, err := s.LoadSchedule(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if loaded.NextID != 4 || len(loaded.Items) != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if r := loaded.Items[0].Recurrence; r.Frequency != model.FrequencyWeekly || r.Count == nil || *r.Count != 4 {
		t.Fatalf("recurrence not preserved: %+v", r)
	}
	if loaded.Items[1].Recurrence.Frequency != model.FrequencyNone {
		t.Fatalf("second item recurrence = %+v", loaded.Items[1].Recurrence)
	}

	// Deleting the highest id must not let the counter move back.
	sched.Items = sched.Items[:1]
	if err := s.SaveSchedule(ctx, "alice", sched); err != nil {
		t.Fatalf("SaveSchedule(shrink): %v", err)
	}
	loaded, _ = s.LoadSchedule(ctx, "alice")
	if loaded.NextID != 4 || len(loaded.Items) != 1 {
		t.Fatalf("after shrink = %+v", loaded)
	}

	other, _ := s.LoadSchedule(ctx, "bob_1")
	if len(other.Items) != 0 {
		t.Fatalf("bob sees alice's events: %+v", other)
	}

	if err := s.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := s.DeleteUser(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteUser(again) err = %v", err)
	}
	gone, _ := s.LoadSchedule(ctx, "alice")
	if len(gone.Items) != 0 {
		t.Fatalf("schedule survived user delete: %+v", gone)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFiles(t *testing.T) {
	s, err := OpenFiles(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFiles: %v", err)
	}
	exerciseStore(t, s)
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "daybook.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "daybook.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.SaveUser(ctx, testUser("alice", "cs_a")); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}
	if err := s.SaveSchedule(ctx, "alice", model.Schedule{NextID: 7}); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.LoadSchedule(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if got.NextID != 7 {
		t.Fatalf("NextID = %d, want 7", got.NextID)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	s, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(files): %v", err)
	}
	if _, ok := s.(*Files); !ok {
		t.Fatalf("empty url opened %T", s)
	}

	cfg.DatabaseURL = "sqlite:///" + filepath.Join(dir, "x.db")
	s, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLite); !ok {
		t.Fatalf("sqlite url opened %T", s)
	}

	cfg.DatabaseURL = "mysql://localhost/db"
	if _, err := Open(ctx, cfg); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestSQLitePath(t *testing.T) {
	cases := map[string]string{
		"sqlite:///data/daybook.db": "data/daybook.db",
		"sqlite:////var/lib/x.db":   "/var/lib/x.db",
		"sqlite://relative/x.db":    "relative/x.db",
	}
	for in, want := range cases {
		if got := sqlitePath(in); got != want {
			t.Errorf("sqlitePath(%q) = %q, want %q", in, got, want)
		}
	}
}
