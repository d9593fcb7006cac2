// Package alarm owns the single audible alarm shared by all reminders.
//
// The Coordinator reference-counts ringing alerts: the first Trigger starts
// looped playback, and playback stops only when every Trigger has been paired
// with an Acknowledge.
package alarm

import (
	"errors"
	"sync"

	"unpotato/internal/eventbus"
	logx "unpotato/pkg/logx"
)

// ErrUnbalanced means Acknowledge was called more often than Trigger.
// It signals a broken trigger/acknowledge pairing, not a runtime condition.
var ErrUnbalanced = errors.New("alarm: acknowledge without matching trigger")

// ErrShutdown is returned by Trigger once Shutdown has run.
var ErrShutdown = errors.New("alarm: coordinator shut down")

const (
	EventRinging = "alarm.ringing"
	EventSilent  = "alarm.silent"
)

// Player plays the alarm sound in a loop.
// Play must not block for the duration of playback.
type Player interface {
	Play() error
	Stop() error
}

type State int

const (
	Silent State = iota
	Ringing
)

func (s State) String() string {
	if s == Ringing {
		return "ringing"
	}
	return "silent"
}

// Coordinator serializes access to the player and the ringing count.
type Coordinator struct {
	player Player
	log    logx.Logger
	bus    eventbus.Bus

	mu       sync.Mutex
	ringing  int
	shutdown bool
}

func NewCoordinator(player Player, log logx.Logger, bus eventbus.Bus) *Coordinator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Coordinator{player: player, log: log, bus: bus}
}

// Trigger registers one more ringing alert. On the 0->1 transition it starts
// playback; if that fails the count is restored and the error returned.
func (c *Coordinator) Trigger() error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return ErrShutdown
	}
	c.ringing++
	n := c.ringing
	if n == 1 {
		if err := c.player.Play(); err != nil {
			c.ringing--
			c.mu.Unlock()
			return err
		}
	}
	c.mu.Unlock()

	c.log.Debug("alarm triggered", logx.Int("ringing", n))
	if n == 1 {
		c.publish(EventRinging, n)
	}
	return nil
}

// Acknowledge releases one ringing alert. On the 1->0 transition playback
// stops immediately.
func (c *Coordinator) Acknowledge() error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	if c.ringing == 0 {
		c.mu.Unlock()
		c.log.Error("alarm acknowledged while silent", logx.Err(ErrUnbalanced))
		return ErrUnbalanced
	}
	c.ringing--
	n := c.ringing
	var stopErr error
	if n == 0 {
		stopErr = c.player.Stop()
	}
	c.mu.Unlock()

	if stopErr != nil {
		c.log.Warn("alarm stop failed", logx.Err(stopErr))
	}
	c.log.Debug("alarm acknowledged", logx.Int("ringing", n))
	if n == 0 {
		c.publish(EventSilent, n)
	}
	return stopErr
}

// State reports Ringing while any alert is unacknowledged.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ringing > 0 {
		return Ringing
	}
	return Silent
}

// Shutdown force-stops playback and forgets outstanding alerts. It is final:
// later acknowledgements are ignored and Trigger returns ErrShutdown.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	was := c.ringing
	c.ringing = 0
	c.shutdown = true
	var err error
	if was > 0 {
		err = c.player.Stop()
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("alarm stop failed", logx.Err(err))
	}
	if was > 0 {
		c.log.Info("alarm force-stopped", logx.Int("outstanding", was))
		c.publish(EventSilent, 0)
	}
}

func (c *Coordinator) publish(typ string, ringing int) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Type: typ, Data: ringing})
}
