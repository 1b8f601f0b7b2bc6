package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/curator/internal/model"
)

// ErrNotFound is wrapped by StoreError when no history exists and the store
// was not opened in bootstrap mode.
var ErrNotFound = errors.New("history not found (run with --bootstrap to start a new one)")

// StoreError reports a history read or write failure. It is always fatal to a run.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store persists published cluster records.
type Store interface {
	// Load returns every retained record.
	Load(ctx context.Context) (*model.History, error)

	// Append adds records published at now and applies retention.
	Append(ctx context.Context, records []model.HistoryRecord, now time.Time) error

	// Prune removes records older than the retention window and reports how many.
	Prune(ctx context.Context, now time.Time) (int, error)

	Close() error
}

// Options configures a store.
type Options struct {
	RetentionDays int
	Bootstrap     bool
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg model.HistoryConfig, bootstrap bool) (Store, error) {
	opts := Options{RetentionDays: cfg.RetentionDays, Bootstrap: bootstrap}
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Path, opts), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL, opts)
	default:
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("unknown backend %q", cfg.Backend)}
	}
}
