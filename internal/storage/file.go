package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "unpotato/pkg/logx"
)

const (
	opFired     = "fired"
	opDismissed = "dismissed"
)

// fileStore appends one JSON object per event to <path>.
// Recent replays the journal; the file is small for a personal tool.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
	f  *os.File
}

type journalEntry struct {
	Op string    `json:"op"`
	At time.Time `json:"at"`
	ID string    `json:"id"`

	Index    int    `json:"index,omitempty"`
	Interval string `json:"interval,omitempty"`
	Text     string `json:"text,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("history.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, f: f}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) write(e journalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("history file closed")
	}
	return json.NewEncoder(s.f).Encode(e)
}

func (s *fileStore) RecordFired(ctx context.Context, f Firing) error {
	_ = ctx
	return s.write(journalEntry{
		Op:       opFired,
		At:       f.FiredAt,
		ID:       f.ID,
		Index:    f.Index,
		Interval: f.Interval,
		Text:     f.Text,
	})
}

func (s *fileStore) RecordDismissed(ctx context.Context, id string, at time.Time) error {
	_ = ctx
	return s.write(journalEntry{Op: opDismissed, At: at, ID: id})
}

func (s *fileStore) Recent(ctx context.Context, n int) ([]Firing, error) {
	if n <= 0 {
		return nil, nil
	}
	rf, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rf.Close()

	var (
		order []string
		byID  = map[string]*Firing{}
	)
	sc := bufio.NewScanner(rf)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var e journalEntry
		if err := json.Unmarshal(b, &e); err != nil {
			// A torn final write after a crash; skip it.
			s.log.Warn("history: skipping bad line", logx.String("path", s.path), logx.Int("line", line), logx.Err(err))
			continue
		}
		switch e.Op {
		case opFired:
			if _, ok := byID[e.ID]; !ok {
				order = append(order, e.ID)
			}
			byID[e.ID] = &Firing{ID: e.ID, Index: e.Index, Interval: e.Interval, Text: e.Text, FiredAt: e.At}
		case opDismissed:
			if f, ok := byID[e.ID]; ok {
				f.DismissedAt = e.At
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	out := make([]Firing, 0, n)
	for i := len(order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *byID[order[i]])
	}
	return out, nil
}
