package entrylog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/postgres"
)

// Opener defers opening the log until the store holds its directory lock.
type Opener func(ctx context.Context) (Log, error)

// SQLiteAt opens the embedded backend at path.
func SQLiteAt(path string) Opener {
	return func(context.Context) (Log, error) {
		return OpenSQLite(path)
	}
}

// FromConfig selects the backend named by cfg.Store.Backend.
func FromConfig(cfg *config.Config) Opener {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		return func(ctx context.Context) (Log, error) {
			client, err := postgres.New(ctx, cfg.Postgres)
			if err != nil {
				return nil, err
			}
			l, err := NewPostgres(ctx, client)
			if err != nil {
				client.Close()
				return nil, err
			}
			return l, nil
		}
	case config.BackendSQLite:
		return SQLiteAt(filepath.Join(cfg.Store.DataDir, cfg.Store.LogFile))
	default:
		return func(context.Context) (Log, error) {
			return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
		}
	}
}
