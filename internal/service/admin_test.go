package service

import (
	"context"
	"errors"
	"testing"
)

func TestAdminOperations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"zed_user", "admin", "alice"} {
		if _, err := svc.Register(ctx, name, "secret123"); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	mustCreate(t, svc, input("Meeting", "2025-03-03T10:00", ""))
	mustCreate(t, svc, input("Lunch", "2025-03-03T12:00", ""))

	if err := svc.RequireAdmin("alice"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("RequireAdmin(alice) err = %v", err)
	}
	if err := svc.RequireAdmin("admin"); err != nil {
		t.Fatalf("RequireAdmin(admin) err = %v", err)
	}

	users, err := svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 3 || users[0].Username != "admin" || users[1].Username != "alice" || users[2].Username != "zed_user" {
		t.Fatalf("users = %+v", users)
	}
	if !users[0].IsAdmin || users[1].IsAdmin || users[1].EventCount != 2 {
		t.Fatalf("summaries = %+v", users)
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{TotalUsers: 3, TotalEvents: 2, TodayNewUsers: 3, TodayNewEvents: 2, SystemStatus: "ok"}
	if st != want {
		t.Fatalf("Stats = %+v, want %+v", st, want)
	}

	if err := svc.DeleteUser(ctx, "admin"); !errors.Is(err, ErrValidation) {
		t.Fatalf("DeleteUser(admin) err = %v", err)
	}
	if _, err := svc.ToggleUser(ctx, "admin"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ToggleUser(admin) err = %v", err)
	}
	if err := svc.DeleteUser(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteUser(ghost) err = %v", err)
	}

	if err := svc.ResetPassword(ctx, "alice", "weak"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ResetPassword(weak) err = %v", err)
	}
	if err := svc.ResetPassword(ctx, "alice", "newpass99"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "newpass99"); err != nil {
		t.Fatalf("Login after reset: %v", err)
	}

	if err := svc.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	items, _ := svc.Items(ctx, "alice")
	if len(items) != 0 {
		t.Fatalf("schedule survived: %+v", items)
	}
}
