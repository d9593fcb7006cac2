package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "unpotato/pkg/logx"
)

// Store is the history API used by the scheduler and the history command.
type Store interface {
	RecordFired(ctx context.Context, f Firing) error
	RecordDismissed(ctx context.Context, id string, at time.Time) error
	// Recent returns up to n firings, newest first.
	Recent(ctx context.Context, n int) ([]Firing, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
