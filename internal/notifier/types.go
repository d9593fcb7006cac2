package notifier

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnsupported = errors.New("notifier: unsupported platform (linux only)")
	ErrClosed      = errors.New("notifier closed")
)

// Urgency maps onto the freedesktop urgency hint (0, 1, 2).
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// ParseUrgency accepts "low", "normal" or "critical"; anything else is critical.
func ParseUrgency(s string) Urgency {
	switch s {
	case "low":
		return UrgencyLow
	case "normal":
		return UrgencyNormal
	default:
		return UrgencyCritical
	}
}

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyNormal:
		return "normal"
	default:
		return "critical"
	}
}

// Notification is one popup request.
type Notification struct {
	AppName   string
	Summary   string
	Body      string
	Urgency   Urgency
	SoundHint string
	// Timeout <= 0 asks the daemon to keep the popup until dismissed.
	Timeout time.Duration
}

// Handle identifies a shown notification.
type Handle interface {
	ID() uint32
	// OnDismiss registers fn to run once when the user closes the popup.
	// If the popup is already closed, fn runs immediately. Only the first
	// registration is kept.
	OnDismiss(fn func())
}

// Renderer shows notifications.
type Renderer interface {
	Show(ctx context.Context, n Notification) (Handle, error)
	Close() error
}

// Config controls the renderer.
type Config struct {
	RatePerSec int
}
