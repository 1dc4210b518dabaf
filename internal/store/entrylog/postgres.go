package entrylog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/postgres"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS directory_entries (
    id   INTEGER PRIMARY KEY,
    data BYTEA NOT NULL
)`

// Postgres keeps the log in a shared database for deployments that already
// run one. Each Put commits on its own.
type Postgres struct {
	client *postgres.Client
}

// NewPostgres ensures the table exists and returns the log.
func NewPostgres(ctx context.Context, client *postgres.Client) (*Postgres, error) {
	err := client.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, postgresSchema)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("applying entry log schema: %w", err)
	}
	return &Postgres{client: client}, nil
}

func (l *Postgres) Get(ctx context.Context, id int32) ([]byte, error) {
	var data []byte
	err := l.client.DB.QueryRowContext(ctx,
		`SELECT data FROM directory_entries WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry log row %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry log row %d: %w", id, err)
	}
	return data, nil
}

func (l *Postgres) Put(ctx context.Context, id int32, data []byte) error {
	_, err := l.client.DB.ExecContext(ctx,
		`INSERT INTO directory_entries (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, id, data)
	if err != nil {
		return fmt.Errorf("writing entry log row %d: %w", id, err)
	}
	return nil
}

func (l *Postgres) Iterate(ctx context.Context, fn func(id int32, data []byte) error) error {
	return iterate(ctx, l.client.DB, `SELECT id, data FROM directory_entries ORDER BY id`, fn)
}

func (l *Postgres) Close() error {
	return l.client.Close()
}
