package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"daybook/internal/log"
	"daybook/internal/model"
)

// Postgres implements Store on PostgreSQL through a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and migrates.
func OpenPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	if connStr == "" {
		return nil, errors.New("db connection string required")
	}
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse config error: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgx connect error: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx ping error: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error whilst migrating: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	// The migrations table records applied files so none runs twice.
	if _, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("cannot create migrations table: %w", err)
	}
	names, err := migrationFiles("postgres")
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := p.migrateFile(ctx, name); err != nil {
			return fmt.Errorf("migration error: name=%q err=%w", name, err)
		}
	}
	return nil
}

func (p *Postgres) migrateFile(ctx context.Context, name string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM migrations WHERE name = $1`, name).Scan(&n); err != nil {
		return err
	} else if n != 0 {
		return nil
	}

	buf, err := fs.ReadFile(migrationsFS, name)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, string(buf)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO migrations (name) VALUES ($1)`, name); err != nil {
		return err
	}
	log.Info("applied migration", "name", name)
	return tx.Commit(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) LoadSchedule(ctx context.Context, username string) (model.Schedule, error) {
	sched := emptySchedule()

	err := p.pool.QueryRow(ctx,
		`SELECT next_id FROM schedules WHERE username = $1`, username,
	).Scan(&sched.NextID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return model.Schedule{}, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, title, time, end_time, location, description, recurrence, created_at
		FROM events
		WHERE username = $1
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
			rec []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.Title, &ev.Time, &ev.EndTime,
			&ev.Location, &ev.Description, &rec, &ev.CreatedAt,
		); err != nil {
			return model.Schedule{}, err
		}
		if ev.Recurrence, err = decodeRecurrence(rec); err != nil {
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

func (p *Postgres) SaveSchedule(ctx context.Context, username string, sched model.Schedule) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM events WHERE username = $1`, username); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, ev := range sched.Items {
		rec, err := encodeRecurrence(ev.Recurrence)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO events (username, id, title, time, end_time, location, description, recurrence, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
			username, ev.ID, ev.Title, ev.Time, ev.EndTime,
			ev.Location, ev.Description, rec, ev.CreatedAt,
		)
	}
	batch.Queue(`
		INSERT INTO schedules (username, next_id) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET next_id = EXCLUDED.next_id`,
		username, nextIDFloor(sched),
	)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const pgUserColumns = `username, api_key, password_salt, password_hash, iterations, enabled, created_at`

func (p *Postgres) GetUser(ctx context.Context, username string) (model.User, error) {
	return scanPgUser(p.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE username = $1`, username))
}

func (p *Postgres) FindUserByAPIKey(ctx context.Context, key string) (model.User, error) {
	return scanPgUser(p.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE api_key = $1`, key))
}

func (p *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+pgUserColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanPgUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (p *Postgres) SaveUser(ctx context.Context, u model.User) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO users (`+pgUserColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (username) DO UPDATE SET
			api_key       = EXCLUDED.api_key,
			password_salt = EXCLUDED.password_salt,
			password_hash = EXCLUDED.password_hash,
			iterations    = EXCLUDED.iterations,
			enabled       = EXCLUDED.enabled,
			created_at    = EXCLUDED.created_at`,
		u.Username, u.APIKey, encodeSecret(u.PasswordSalt), encodeSecret(u.PasswordHash),
		u.Iterations, u.Enabled, u.CreatedAt,
	)
	return err
}

func (p *Postgres) DeleteUser(ctx context.Context, username string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgUser(row pgx.Row) (model.User, error) {
	var (
		u          model.User
		salt, hash string
	)
	err := row.Scan(&u.Username, &u.APIKey, &salt, &hash, &u.Iterations, &u.Enabled, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
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
	return u, nil
}
