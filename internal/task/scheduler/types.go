package scheduler

import (
	"errors"
	"time"

	"unpotato/internal/eventbus"
	"unpotato/internal/notifier"
	"unpotato/internal/storage"
	logx "unpotato/pkg/logx"
)

var ErrZeroInterval = errors.New("interval must be > 0")

const (
	EventFired     = "reminder.fired"
	EventDismissed = "reminder.dismissed"
)

// Alarm is the shared alarm. *alarm.Coordinator implements it. The
// scheduler never shuts it down: the alarm outlives a single Run, and its
// owner silences it on exit.
type Alarm interface {
	Trigger() error
	Acknowledge() error
}

// Config wires the scheduler's collaborators. History and Bus are optional.
type Config struct {
	Renderer notifier.Renderer
	Alarm    Alarm
	// Template supplies app name, urgency and sound hint for every popup.
	Template notifier.Notification
	History  storage.Store
	Bus      eventbus.Bus
	Log      logx.Logger
}

// FiringEvent is the Data of EventFired and EventDismissed.
type FiringEvent struct {
	ID    string    `json:"id"`
	Index int       `json:"index"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// TaskInfo describes one running reminder task.
type TaskInfo struct {
	Index     int
	Interval  string
	Text      string
	Fired     uint64
	LastFired time.Time
	Next      time.Time
	Err       string
}
