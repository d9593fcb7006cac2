package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "unpotato/pkg/logx"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestMissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "nope.yaml"), logx.Nop())
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "critical", cfg.Notifier.Urgency)
	assert.Equal(t, "file", cfg.History.Driver)
	assert.True(t, cfg.Logging.Console)
	assert.Same(t, cfg, m.Get())
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
store:
  path: /tmp/reminders
logging:
  level: debug
alarm:
  command: pw-play
  args: ["--volume", "0.8"]
  min_gap: 2s
notifier:
  urgency: normal
history:
  driver: sqlite
  path: /tmp/history.db
  busy_timeout: 3s
`)
	cfg, err := NewManager(path, logx.Nop()).Parse()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/reminders", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"--volume", "0.8"}, cfg.Alarm.Args)
	assert.Equal(t, "normal", cfg.Notifier.Urgency)
	assert.Equal(t, DefaultAppName, cfg.Notifier.AppName)
	assert.Equal(t, "sqlite", cfg.History.Driver)

	gap, err := ParseDurationOrDefault("alarm.min_gap", cfg.Alarm.MinGap, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, gap)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"logging":{"level":"warn"},"history":{"driver":"none"}}`)
	cfg, err := NewManager(path, logx.Nop()).Parse()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "none", cfg.History.Driver)
}

func TestParseEmptyYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# nothing yet\n")
	cfg, err := NewManager(path, logx.Nop()).Parse()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"unknown field":  "alarm:\n  volume: 11\n",
		"bad duration":   "alarm:\n  min_gap: soon\n",
		"negative":       "notifier:\n  timeout: -1s\n",
		"bad urgency":    "notifier:\n  urgency: loud\n",
		"bad driver":     "history:\n  driver: postgres\n",
		"negative rate":  "notifier:\n  rate_per_sec: -2\n",
		"malformed yaml": "logging: [\n",
		"wrong type":     "alarm:\n  args: paplay\n",
	}
	for name, body := range tests {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, body)
			_, err := NewManager(path, logx.Nop()).Parse()
			assert.Error(t, err)
		})
	}
}

func TestTrailingJSONRejected(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"logging":{}} {"logging":{}}`)
	_, err := NewManager(path, logx.Nop()).Parse()
	assert.Error(t, err)
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "0s", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = ParseDurationOrDefault("x", "150ms", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, d)

	_, err = ParseDurationOrDefault("x", "later", time.Second)
	assert.ErrorContains(t, err, "x: invalid duration")
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	sections, _ := SummarizeChange(a, b)
	assert.Empty(t, sections)

	b.Logging.Level = "debug"
	b.History.Driver = "none"
	sections, attrs := SummarizeChange(a, b)
	assert.Equal(t, []string{"logging", "history"}, sections)
	assert.NotEmpty(t, attrs)
}

func TestWatchPublishesEdits(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "logging:\n  level: info\n")
	m := NewManager(path, logx.Nop())
	_, err := m.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, func(_, cur *Config) { got <- cur })
	}()

	// give the watcher a moment to register the directory
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "logging:\n  level: [broken\n")
	time.Sleep(2 * reloadDebounce)
	writeFile(t, path, "logging:\n  level: debug\n")

	select {
	case cfg := <-got:
		assert.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
	assert.Equal(t, "debug", m.Get().Logging.Level)

	cancel()
	require.NoError(t, <-done)
}
