package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "unpotato/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordFired(ctx context.Context, f Firing) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if f.FiredAt.IsZero() {
		f.FiredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO firings(id, idx, interval, text, fired_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET fired_at=excluded.fired_at`,
		f.ID, f.Index, f.Interval, f.Text, f.FiredAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) RecordDismissed(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, `UPDATE firings SET dismissed_at = ? WHERE id = ?`, at.UnixMilli(), id)
	return err
}

func (s *sqliteStore) Recent(ctx context.Context, n int) ([]Firing, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, idx, interval, text, fired_at, dismissed_at FROM firings
		 ORDER BY fired_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Firing
	for rows.Next() {
		var (
			f         Firing
			fired     int64
			dismissed sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.Index, &f.Interval, &f.Text, &fired, &dismissed); err != nil {
			return nil, err
		}
		f.FiredAt = time.UnixMilli(fired)
		if dismissed.Valid {
			f.DismissedAt = time.UnixMilli(dismissed.Int64)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
