package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"daybook/internal/model"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// migrationFiles returns the embedded SQL files for a dialect in name order.
func migrationFiles(dialect string) ([]string, error) {
	names, err := fs.Glob(migrationsFS, "migrations/"+dialect+"/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// runSQLiteMigrations executes every SQLite migration file, each in its own
// transaction. The files are idempotent so they run on every open.
func runSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	names, err := migrationFiles("sqlite")
	if err != nil {
		return err
	}
	for _, name := range names {
		buf, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return err
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(buf)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func encodeRecurrence(r model.Recurrence) (string, error) {
	if r.Frequency == "" {
		r = model.NoRecurrence()
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRecurrence(raw []byte) (model.Recurrence, error) {
	r := model.NoRecurrence()
	if len(raw) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.Recurrence{}, err
	}
	return r, nil
}

func encodeSecret(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeSecret(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }
