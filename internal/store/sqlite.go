package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"daybook/internal/model"
)

// SQLite implements Store on an embedded SQLite database.
type SQLite struct{ db *sql.DB }

// OpenSQLite opens (or creates) the database at path, applies PRAGMAs and
// runs the embedded migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := runSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) LoadSchedule(ctx context.Context, username string) (model.Schedule, error) {
	sched := emptySchedule()

	err := s.db.QueryRowContext(ctx,
		`SELECT next_id FROM schedules WHERE username = ?`, username,
	).Scan(&sched.NextID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, time, end_time, location, description, recurrence, created_at
		FROM events
		WHERE username = ?
		ORDER BY id`,
		username,
	)
	if err != nil {
		return model.Schedule{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ev  model.Event
			rec string
		)
		if err := rows.Scan(
			&ev.ID, &ev.Title, &ev.Time, &ev.EndTime,
			&ev.Location, &ev.Description, &rec, &ev.CreatedAt,
		); err != nil {
			return model.Schedule{}, err
		}
		if ev.Recurrence, err = decodeRecurrence([]byte(rec)); err != nil {
			return model.Schedule{}, fmt.Errorf("event %d recurrence: %w", ev.ID, err)
		}
		sched.Items = append(sched.Items, ev)
	}
	if err := rows.Err(); err != nil {
		return model.Schedule{}, err
	}
	sched.NextID = nextIDFloor(sched)
	return sched, nil
}

// SaveSchedule rewrites the user's events and counter in one transaction.
func (s *SQLite) SaveSchedule(ctx context.Context, username string, sched model.Schedule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE username = ?`, username); err != nil {
		return err
	}
	for _, ev := range sched.Items {
		rec, err := encodeRecurrence(ev.Recurrence)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (username, id, title, time, end_time, location, description, recurrence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			username, ev.ID, ev.Title, ev.Time, ev.EndTime,
			ev.Location, ev.Description, rec, ev.CreatedAt,
		); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schedules (username, next_id) VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET next_id = excluded.next_id`,
		username, nextIDFloor(sched),
	); err != nil {
		return err
	}
	return tx.Commit()
}

const sqliteUserColumns = `username, api_key, password_salt, password_hash, iterations, enabled, created_at`

func (s *SQLite) GetUser(ctx context.Context, username string) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE username = ?`, username)
	return scanSQLiteUser(row)
}

func (s *SQLite) FindUserByAPIKey(ctx context.Context, key string) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE api_key = ?`, key)
	return scanSQLiteUser(row)
}

func (s *SQLite) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *SQLite) SaveUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+sqliteUserColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			api_key       = excluded.api_key,
			password_salt = excluded.password_salt,
			password_hash = excluded.password_hash,
			iterations    = excluded.iterations,
			enabled       = excluded.enabled,
			created_at    = excluded.created_at`,
		u.Username, u.APIKey, encodeSecret(u.PasswordSalt), encodeSecret(u.PasswordHash),
		u.Iterations, boolToInt(u.Enabled), u.CreatedAt,
	)
	return err
}

// DeleteUser relies on ON DELETE CASCADE for events and the counter.
func (s *SQLite) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (model.User, error) {
	var (
		u          model.User
		salt, hash string
		enabled    int
	)
	err := row.Scan(&u.Username, &u.APIKey, &salt, &hash, &u.Iterations, &enabled, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	} else if err != nil {
		return model.User{}, err
	}
	if u.PasswordSalt, err = decodeSecret(salt); err != nil {
		return model.User{}, err
	}
	if u.PasswordHash, err = decodeSecret(hash); err != nil {
		return model.User{}, err
	}
	u.Enabled = enabled != 0
	return u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
