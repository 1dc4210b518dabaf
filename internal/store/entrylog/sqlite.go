package entrylog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite is the embedded default backend. A single connection serialises
// writers; synchronous=FULL makes every committed Put survive power loss.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening entry log %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to entry log %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying entry log schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (l *SQLite) Get(ctx context.Context, id int32) ([]byte, error) {
	var data []byte
	err := l.db.QueryRowContext(ctx, `SELECT data FROM entries WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry log row %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry log row %d: %w", id, err)
	}
	return data, nil
}

func (l *SQLite) Put(ctx context.Context, id int32, data []byte) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO entries (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data`, id, data)
	if err != nil {
		return fmt.Errorf("writing entry log row %d: %w", id, err)
	}
	return nil
}

func (l *SQLite) Iterate(ctx context.Context, fn func(id int32, data []byte) error) error {
	return iterate(ctx, l.db, `SELECT id, data FROM entries ORDER BY id`, fn)
}

func (l *SQLite) Close() error {
	return l.db.Close()
}

func iterate(ctx context.Context, db *sql.DB, query string, fn func(id int32, data []byte) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("scanning entry log: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int32
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("decoding entry log row: %w", err)
		}
		if err := fn(id, data); err != nil {
			return err
		}
	}
	return rows.Err()
}
