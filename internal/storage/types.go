package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines journal, dependency-free
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Firing is one shown reminder. DismissedAt is zero while the popup is open
// (or if the process ended first).
type Firing struct {
	ID          string    `json:"id"`
	Index       int       `json:"index"`
	Interval    string    `json:"interval"`
	Text        string    `json:"text"`
	FiredAt     time.Time `json:"fired_at"`
	DismissedAt time.Time `json:"dismissed_at,omitempty"`
}

// Dismissed reports whether the popup was closed.
func (f Firing) Dismissed() bool { return !f.DismissedAt.IsZero() }
