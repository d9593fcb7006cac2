package alarm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "unpotato/pkg/logx"
)

// DefaultSound is the freedesktop sound theme's alarm clock.
const DefaultSound = "/usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga"

// PlayerConfig selects the external program used to play the alarm sound.
// The sound path is appended as the last argument.
type PlayerConfig struct {
	Command string
	Args    []string
	Sound   string
	// MinGap bounds how often the command is restarted. Default 200ms.
	MinGap time.Duration
}

// CommandPlayer loops an external audio player until Stop.
type CommandPlayer struct {
	path    string
	args    []string
	log     logx.Logger
	limiter *rate.Limiter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCommandPlayer resolves the player command and checks the sound file.
// Errors here are fatal at startup.
func NewCommandPlayer(cfg PlayerConfig, log logx.Logger) (*CommandPlayer, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	name := strings.TrimSpace(cfg.Command)
	if name == "" {
		name = "paplay"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("alarm: player %q: %w", name, err)
	}

	args := append([]string(nil), cfg.Args...)
	if sound := strings.TrimSpace(cfg.Sound); sound != "" {
		if _, err := os.Stat(sound); err != nil {
			return nil, fmt.Errorf("alarm: sound file: %w", err)
		}
		args = append(args, sound)
	}

	gap := cfg.MinGap
	if gap <= 0 {
		gap = 200 * time.Millisecond
	}
	return &CommandPlayer{
		path:    path,
		args:    args,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(gap), 1),
	}, nil
}

// Play starts the replay loop. Calling Play while playing is a no-op.
func (p *CommandPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go p.loop(ctx, done)
	return nil
}

func (p *CommandPlayer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		cmd := exec.CommandContext(ctx, p.path, p.args...)
		err := cmd.Run()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.log.Warn("alarm player exited", logx.String("cmd", p.path), logx.Err(err))
		}
	}
}

// Stop kills the running player and waits for the loop to exit.
func (p *CommandPlayer) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// playing reports whether the replay loop is running.
func (p *CommandPlayer) playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}
