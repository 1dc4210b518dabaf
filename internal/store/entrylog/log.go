// Package entrylog is the durable key-value log behind the store: one row per
// entry id holding the latest serialised entry, tombstones included. A Put
// is durable once it returns.
package entrylog

import (
	"context"
)

// Log is implemented by the SQLite and PostgreSQL backends.
type Log interface {
	// Get returns the row stored under id, or an error wrapping
	// errors.ErrNotFound.
	Get(ctx context.Context, id int32) ([]byte, error)
	// Put replaces the row stored under id.
	Put(ctx context.Context, id int32, data []byte) error
	// Iterate calls fn for every row in ascending id order and stops at the
	// first error fn returns.
	Iterate(ctx context.Context, fn func(id int32, data []byte) error) error
	Close() error
}
