// Package interval parses and formats reminder recurrence intervals.
//
// An interval is a non-negative integer followed by a unit, with nothing in
// between: "500ms", "30s", "5m", "1h", "2d", "1w".
package interval

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Unit is the tag of an interval Value.
type Unit int

const (
	Milliseconds Unit = iota
	Seconds
	Minutes
	Hours
	Days
	Weeks
)

// suffixes are ordered so that "ms" is tried before "m" and "s".
var suffixes = []struct {
	text string
	unit Unit
}{
	{"ms", Milliseconds},
	{"s", Seconds},
	{"m", Minutes},
	{"h", Hours},
	{"d", Days},
	{"w", Weeks},
}

var (
	ErrUnknownUnit        = errors.New("unknown interval unit")
	ErrMalformedMagnitude = errors.New("malformed interval magnitude")
)

// ParseError reports why a token is not a valid interval.
// Kind is ErrUnknownUnit or ErrMalformedMagnitude.
type ParseError struct {
	Token string
	Kind  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid interval %q: %v (use <n>ms|s|m|h|d|w, e.g. \"5m\")", e.Token, e.Kind)
}

func (e *ParseError) Unwrap() error { return e.Kind }

// Value is a tagged duration. The zero value is 0ms.
type Value struct {
	unit Unit
	n    uint64
}

// Parse decodes "<digits><unit>".
func Parse(text string) (Value, error) {
	i := 0
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	digits, suffix := text[:i], text[i:]
	if digits == "" || strings.HasPrefix(suffix, ".") {
		return Value{}, &ParseError{Token: text, Kind: ErrMalformedMagnitude}
	}

	unit, ok := unitFor(suffix)
	if !ok {
		return Value{}, &ParseError{Token: text, Kind: ErrUnknownUnit}
	}

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return Value{}, &ParseError{Token: text, Kind: ErrMalformedMagnitude}
	}
	if n > maxMagnitude(unit) {
		return Value{}, &ParseError{Token: text, Kind: ErrMalformedMagnitude}
	}
	return Value{unit: unit, n: n}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) Value {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

func unitFor(suffix string) (Unit, bool) {
	for _, s := range suffixes {
		if suffix == s.text {
			return s.unit, true
		}
	}
	return 0, false
}

func (u Unit) step() time.Duration {
	switch u {
	case Milliseconds:
		return time.Millisecond
	case Seconds:
		return time.Second
	case Minutes:
		return 60 * time.Second
	case Hours:
		return 3600 * time.Second
	case Days:
		return 86400 * time.Second
	case Weeks:
		return 604800 * time.Second
	default:
		return 0
	}
}

// maxMagnitude keeps Duration() from overflowing time.Duration.
func maxMagnitude(u Unit) uint64 {
	return uint64(math.MaxInt64 / int64(u.step()))
}

func (u Unit) String() string {
	for _, s := range suffixes {
		if s.unit == u {
			return s.text
		}
	}
	return "?"
}

// String formats v so that Parse(v.String()) == v.
func (v Value) String() string {
	return strconv.FormatUint(v.n, 10) + v.unit.String()
}

// Duration resolves v to an absolute duration.
func (v Value) Duration() time.Duration {
	return time.Duration(v.n) * v.unit.step()
}

// Equal compares by resolved duration, so "60s" equals "1m".
func (v Value) Equal(o Value) bool { return v.Duration() == o.Duration() }

// MarshalText / UnmarshalText let a Value travel through JSON and YAML as its token.
func (v Value) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Value) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// Schedule returns a cron.Schedule firing every v.Duration(). Whole-second
// intervals use cron.Every and land on second boundaries; anything finer
// keeps millisecond precision, which cron.Every would round away.
func (v Value) Schedule() cron.Schedule {
	d := v.Duration()
	if d >= time.Second && d%time.Second == 0 {
		return cron.Every(d)
	}
	return fixedDelay(d)
}

// fixedDelay fires exactly d after t.
type fixedDelay time.Duration

func (d fixedDelay) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

// Split separates a store line into its interval token and the text after
// the first run of whitespace. ok is false when there is no text.
func Split(line string) (token, rest string, ok bool) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, "", false
	}
	token = line[:i]
	rest = strings.TrimLeft(line[i:], " \t")
	return token, rest, rest != ""
}
