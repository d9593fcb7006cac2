package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unpotato/internal/storage"
	logx "unpotato/pkg/logx"
)

type cli struct {
	cfg   string
	store string
}

func newCLI(t *testing.T) cli {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	body := "logging:\n  level: error\nhistory:\n  driver: file\n  path: " + filepath.Join(dir, "history.jsonl") + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return cli{cfg: cfg, store: filepath.Join(dir, "notifications")}
}

func (c cli) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", c.cfg, "--store", c.store}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestAddListRemove(t *testing.T) {
	t.Parallel()
	c := newCLI(t)

	_, _, err := c.run(t, "add", "5m", "Fix", "your", "posture")
	require.NoError(t, err)
	_, _, err = c.run(t, "add", "1h", "Drink", "water")
	require.NoError(t, err)

	out, _, err := c.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "* 0: 5m Fix your posture\n* 1: 1h Drink water\n", out)

	_, _, err = c.run(t, "remove", "0")
	require.NoError(t, err)

	out, _, err = c.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "* 0: 1h Drink water\n", out)

	b, err := os.ReadFile(c.store)
	require.NoError(t, err)
	assert.Equal(t, "1h Drink water\n", string(b))
}

func TestListEmptyStore(t *testing.T) {
	t.Parallel()
	c := newCLI(t)
	out, _, err := c.run(t, "list")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = os.Stat(c.store)
	assert.NoError(t, err, "list creates the store file")
}

func TestAddErrors(t *testing.T) {
	t.Parallel()
	c := newCLI(t)

	_, _, err := c.run(t, "add", "5q", "Nope")
	assert.ErrorContains(t, err, "unknown interval unit")

	_, _, err = c.run(t, "add", "5m")
	assert.Error(t, err, "text is required")

	out, _, err := c.run(t, "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRemoveErrors(t *testing.T) {
	t.Parallel()
	c := newCLI(t)
	_, _, err := c.run(t, "add", "1h", "Drink", "water")
	require.NoError(t, err)

	_, _, err = c.run(t, "remove", "first")
	assert.ErrorContains(t, err, "index must be an integer")

	_, stderr, err := c.run(t, "remove", "7")
	require.NoError(t, err)
	assert.Contains(t, stderr, "no reminder at index 7")

	out, _, err := c.run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, "* 0: 1h Drink water\n", out)
}

func TestHistoryTable(t *testing.T) {
	t.Parallel()
	c := newCLI(t)

	dir := filepath.Dir(c.cfg)
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "history.jsonl")}, logx.Nop())
	require.NoError(t, err)
	ctx := context.Background()
	at := time.Now().Add(-10 * time.Minute)
	require.NoError(t, st.RecordFired(ctx, storage.Firing{ID: "a", Index: 0, Interval: "5m", Text: "Fix your posture", FiredAt: at}))
	require.NoError(t, st.RecordDismissed(ctx, "a", at.Add(30*time.Second)))
	require.NoError(t, st.RecordFired(ctx, storage.Firing{ID: "b", Index: 1, Interval: "1h", Text: "Drink water", FiredAt: at.Add(time.Minute)}))
	require.NoError(t, st.Close())

	out, _, err := c.run(t, "history", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "REMINDER")
	assert.Contains(t, out, "Fix your posture")
	assert.Contains(t, out, "after 30 seconds")
	assert.Contains(t, out, "Drink water")
	assert.Contains(t, out, "open")
	assert.Contains(t, out, "minutes ago")

	_, _, err = c.run(t, "history", "-n", "0")
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	c := newCLI(t)
	_, _, err := c.run(t, "snooze")
	assert.Error(t, err)
}
