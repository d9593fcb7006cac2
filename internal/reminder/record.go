// Package reminder persists reminders in a flat, line-oriented file.
//
// Each line is "<interval> <text>". A reminder has no identity other than
// its position among the non-empty lines: removing index i shifts every
// later reminder down by one.
package reminder

import (
	"errors"
	"fmt"
	"strings"

	"unpotato/internal/interval"
	"unpotato/internal/notifier"
)

var (
	ErrMissingText = errors.New("reminder text required")
	ErrInvalidText = errors.New("reminder text must be a single line")
)

// Record is one reminder.
type Record struct {
	Interval interval.Value
	Text     string
}

// New validates text and parses the interval token.
func New(token, text string) (Record, error) {
	iv, err := interval.Parse(token)
	if err != nil {
		return Record{}, err
	}
	if err := validateText(text); err != nil {
		return Record{}, err
	}
	return Record{Interval: iv, Text: text}, nil
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrMissingText
	}
	if strings.ContainsAny(text, "\r\n") {
		return ErrInvalidText
	}
	return nil
}

// ParseLine decodes one store line.
func ParseLine(line string) (Record, error) {
	token, text, ok := interval.Split(line)
	iv, err := interval.Parse(token)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, fmt.Errorf("%w after %q", ErrMissingText, token)
	}
	return Record{Interval: iv, Text: text}, nil
}

// Line is the stored form, without terminator.
func (r Record) Line() string { return r.Interval.String() + " " + r.Text }

func (r Record) String() string { return r.Line() }

// Notification derives the popup for this reminder from a template carrying
// app name, urgency and sound hint.
func (r Record) Notification(tmpl notifier.Notification) notifier.Notification {
	tmpl.Summary = r.Text
	return tmpl
}
