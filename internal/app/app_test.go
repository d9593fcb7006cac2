package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unpotato/internal/alarm"
	"unpotato/internal/interval"
	"unpotato/internal/notifier"
	"unpotato/internal/reminder"
	"unpotato/internal/storage"
	logx "unpotato/pkg/logx"
)

type fakeRenderer struct {
	mu     sync.Mutex
	shown  []string
	closed bool
}

func (r *fakeRenderer) Show(_ context.Context, n notifier.Notification) (notifier.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, n.Summary)
	h := notifier.NewDismissHandle(uint32(len(r.shown)))
	// dismissed straight away so the alarm never piles up
	h.Dismiss()
	return h, nil
}

func (r *fakeRenderer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeRenderer) count(text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.shown {
		if s == text {
			n++
		}
	}
	return n
}

// heldRenderer keeps every popup open.
type heldRenderer struct {
	mu    sync.Mutex
	shown int
}

func (r *heldRenderer) Show(context.Context, notifier.Notification) (notifier.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown++
	return notifier.NewDismissHandle(uint32(r.shown)), nil
}

func (r *heldRenderer) Close() error { return nil }

func (r *heldRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown
}

type switchPlayer struct {
	mu      sync.Mutex
	playing bool
}

func (p *switchPlayer) Play() error { return p.set(true) }
func (p *switchPlayer) Stop() error { return p.set(false) }

func (p *switchPlayer) set(on bool) error {
	p.mu.Lock()
	p.playing = on
	p.mu.Unlock()
	return nil
}

func (p *switchPlayer) isPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

type nopPlayer struct{}

func (nopPlayer) Play() error { return nil }
func (nopPlayer) Stop() error { return nil }

type notifyLog struct {
	mu     sync.Mutex
	states []string
}

func (l *notifyLog) add(s string) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *notifyLog) has(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, x := range l.states {
		if x == s {
			return true
		}
	}
	return false
}

func newTestApp(t *testing.T, extraConfig string) (*App, *fakeRenderer, *notifyLog) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("logging:\n  level: error\nhistory:\n  driver: file\n  path: %s\n%s",
		filepath.Join(dir, "history.jsonl"), extraConfig)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	a, err := New(Options{ConfigPath: cfgPath, StorePath: filepath.Join(dir, "notifications")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	r := &fakeRenderer{}
	nl := &notifyLog{}
	a.openRenderer = func(notifier.Config, logx.Logger) (notifier.Renderer, error) { return r, nil }
	a.openPlayer = func(alarm.PlayerConfig, logx.Logger) (alarm.Player, error) { return nopPlayer{}, nil }
	a.sdNotify = nl.add
	return a, r, nl
}

func TestAddListRemove(t *testing.T) {
	t.Parallel()
	a, _, _ := newTestApp(t, "")

	_, err := a.Add("5m", []string{"Fix", "your", "posture"})
	require.NoError(t, err)
	_, err = a.Add("1h", []string{"Drink", "water"})
	require.NoError(t, err)

	recs, err := a.List()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "5m Fix your posture", recs[0].Line())
	assert.Equal(t, "1h Drink water", recs[1].Line())

	ok, err := a.Remove(0)
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err = a.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "1h Drink water", recs[0].Line())

	ok, err = a.Remove(5)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.Remove(-1)
	assert.Error(t, err)
}

func TestAddRejectsBadInput(t *testing.T) {
	t.Parallel()
	a, _, _ := newTestApp(t, "")

	_, err := a.Add("5x", []string{"nope"})
	assert.True(t, errors.Is(err, interval.ErrUnknownUnit))

	_, err = a.Add("5m", nil)
	assert.True(t, errors.Is(err, reminder.ErrMissingText))

	recs, err := a.List()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunWithoutRemindersReturns(t *testing.T) {
	t.Parallel()
	a, r, nl := newTestApp(t, "")
	require.NoError(t, a.Run(context.Background(), false))
	r.mu.Lock()
	assert.Empty(t, r.shown)
	r.mu.Unlock()
	assert.False(t, nl.has("READY=1"))
}

func TestRunFiresAndStops(t *testing.T) {
	t.Parallel()
	a, r, nl := newTestApp(t, "")
	_, err := a.Add("10ms", []string{"Stretch"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, false) }()

	require.Eventually(t, func() bool { return r.count("Stretch") >= 2 }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, nl.has("READY=1"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.True(t, nl.has("STOPPING=1"))
	r.mu.Lock()
	assert.True(t, r.closed)
	r.mu.Unlock()

	hist, err := a.History(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, hist)
	assert.Equal(t, "Stretch", hist[0].Text)
	assert.True(t, hist[0].Dismissed())
}

func TestRunWatchPicksUpNewReminders(t *testing.T) {
	t.Parallel()
	a, r, _ := newTestApp(t, "")
	_, err := a.Add("1h", []string{"Stand", "up"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, true) }()

	// let the watcher register before editing
	time.Sleep(200 * time.Millisecond)
	_, err = a.Add("10ms", []string{"Blink"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return r.count("Blink") >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, r.count("Stand up"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunWatchKeepsRingingAcrossReschedule(t *testing.T) {
	t.Parallel()
	a, _, nl := newTestApp(t, "")
	r := &heldRenderer{}
	p := &switchPlayer{}
	a.openRenderer = func(notifier.Config, logx.Logger) (notifier.Renderer, error) { return r, nil }
	a.openPlayer = func(alarm.PlayerConfig, logx.Logger) (alarm.Player, error) { return p, nil }

	_, err := a.Add("20ms", []string{"Fix", "your", "posture"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, true) }()

	require.Eventually(t, func() bool {
		return p.isPlaying() && r.count() >= 1 && nl.has("STATUS=1 reminders scheduled")
	}, 5*time.Second, 5*time.Millisecond)

	// Editing the list restarts the schedule; the open popup still rings.
	_, err = a.Add("1h", []string{"Drink", "water"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return nl.has("STATUS=2 reminders scheduled") }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, p.isPlaying())
	assert.False(t, nl.has("STATUS=silent"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.False(t, p.isPlaying(), "exit silences the alarm")
}

func TestRunFailsWhenRendererUnavailable(t *testing.T) {
	t.Parallel()
	a, _, _ := newTestApp(t, "")
	_, err := a.Add("1s", []string{"Drink", "water"})
	require.NoError(t, err)

	a.openRenderer = func(notifier.Config, logx.Logger) (notifier.Renderer, error) {
		return nil, notifier.ErrUnsupported
	}
	err = a.Run(context.Background(), false)
	assert.True(t, errors.Is(err, notifier.ErrUnsupported))
}

func TestHistoryDisabled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"history":{"driver":"none"},"logging":{"level":"error"}}`), 0o644))
	a, err := New(Options{ConfigPath: cfgPath, StorePath: filepath.Join(dir, "notifications")})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.History(context.Background(), 5)
	assert.True(t, errors.Is(err, storage.ErrDisabled))
}

func TestStorePathPrecedence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	fromCfg := filepath.Join(dir, "from-config")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+fromCfg+"\nlogging:\n  level: error\n"), 0o644))

	a, err := New(Options{ConfigPath: cfgPath})
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, fromCfg, a.Store().Path())

	flag := filepath.Join(dir, "from-flag")
	b, err := New(Options{ConfigPath: cfgPath, StorePath: flag})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, flag, b.Store().Path())
}

func TestConfigMapping(t *testing.T) {
	t.Parallel()
	a, _, _ := newTestApp(t, "alarm:\n  min_gap: 1s\n  sound: /tmp/beep.oga\nnotifier:\n  urgency: low\n  timeout: 30s\n")

	pc, err := mapPlayerConfig(a.Config())
	require.NoError(t, err)
	assert.Equal(t, time.Second, pc.MinGap)
	assert.Equal(t, "/tmp/beep.oga", pc.Sound)

	tmpl, ncfg, err := mapNotification(a.Config())
	require.NoError(t, err)
	assert.Equal(t, notifier.UrgencyLow, tmpl.Urgency)
	assert.Equal(t, 30*time.Second, tmpl.Timeout)
	assert.Equal(t, "un-potato", tmpl.AppName)
	assert.Zero(t, ncfg.RatePerSec)

	sc, err := mapHistoryConfig(a.Config())
	require.NoError(t, err)
	assert.Equal(t, "file", sc.Driver)
	assert.Equal(t, time.Second, sc.BusyTimeout)
}
