package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrClosed  = errors.New("store closed")
	ErrEmptyID = errors.New("empty item id")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file at Path (default)
//   - "file": snapshot + journal next to Path
//   - "postgres": URL is a postgres DSN
//   - "redis": URL is a redis:// URL, Key is the set name
//   - "memory": nothing persisted
type Config struct {
	Driver      string
	Path        string
	URL         string
	Key         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SeenStore is a durable set of announced item ids.
//
// Insert is idempotent: inserting an existing id leaves Count unchanged.
type SeenStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// StoreError wraps a backend failure.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %s %q: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrap(op, id string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, ID: id, Err: err}
}
