package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"daybook/internal/ics"
	"daybook/internal/model"
)

func TestExportImportRoundTrip(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()
	in := input("Standup", "2025-03-03T09:00", "2025-03-03T09:15")
	in.Recurrence = &model.RawRecurrence{Frequency: strp("daily"), EndType: strp("until"), Until: strp("2025-03-07")}
	mustCreate(t, svc, in)
	mustCreate(t, svc, input("Dentist", "2025-03-05T14:00", ""))

	feed, err := svc.Export(ctx, "alice")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	res, err := svc.Import(ctx, "bob_", []byte(feed))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Imported) != 2 || len(res.Skipped) != 0 {
		t.Fatalf("result = %+v", res)
	}
	standup := res.Imported[0]
	if standup.Time != "2025-03-03T09:00" || standup.EndTime != "2025-03-03T09:15" ||
		standup.Recurrence.EndType != model.EndUntil || *standup.Recurrence.Until != "2025-03-07" {
		t.Fatalf("standup = %+v", standup)
	}
	if standup.Location != "Office" {
		t.Fatalf("location = %q", standup.Location)
	}

	// A second import hits the same base intervals.
	res, err = svc.Import(ctx, "bob_", []byte(feed))
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if len(res.Imported) != 0 || len(res.Skipped) != 2 {
		t.Fatalf("second result = %+v", res)
	}

	if n := len(pub.keys); n != 4 {
		t.Fatalf("published %d changes, want 4", n)
	}
}

func TestImportFillsOptionalFields(t *testing.T) {
	svc, _ := newTestService(t)
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:a\r\nSUMMARY:Bare\r\nDTSTART:20250303T100000\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	res, err := svc.Import(context.Background(), "alice", []byte(body))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Imported) != 1 {
		t.Fatalf("result = %+v", res)
	}
	ev := res.Imported[0]
	if ev.Location != importedLocation || ev.Description != importedDescription || ev.EndTime != "2025-03-03T11:00" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Import(context.Background(), "alice", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestImportURL(t *testing.T) {
	svc, _ := newTestService(t)
	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//t//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:a\r\nSUMMARY:Remote\r\nDTSTART:20250303T100000\r\nDTEND:20250303T103000\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	svc.opts.Fetcher = ics.NewFetcher("", time.Second)
	svc.opts.Fetcher.AllowPrivate = true

	res, err := svc.ImportURL(context.Background(), "alice", srv.URL+"/feed.ics")
	if err != nil || len(res.Imported) != 1 || res.Imported[0].Title != "Remote" {
		t.Fatalf("ImportURL = %+v, %v", res, err)
	}
	if _, err := svc.ImportURL(context.Background(), "alice", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty url err = %v", err)
	}
}

func TestImportURLRefusesLoopback(t *testing.T) {
	svc, _ := newTestService(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := svc.ImportURL(context.Background(), "alice", srv.URL+"/internal")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if err.Error() != "validation failed: could not fetch calendar" {
		t.Fatalf("err leaks detail: %q", err.Error())
	}
	if hits.Load() != 0 {
		t.Fatalf("loopback server was reached %d times", hits.Load())
	}
}
