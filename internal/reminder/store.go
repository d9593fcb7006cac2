package reminder

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "unpotato/pkg/logx"
)

const (
	appDir   = "un-potato"
	fileName = "notifications"
)

// DefaultPath is <user config dir>/un-potato/notifications.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// Store reads and rewrites the reminder file. Methods are safe for
// concurrent use within one process; nothing coordinates across processes.
type Store struct {
	path string
	log  logx.Logger

	mu sync.Mutex
	// loaded is the content hash of the last successful Load.
	loaded uint64
}

func NewStore(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, log: log}
}

func (s *Store) Path() string { return s.path }

// EnsureStorageReady creates the directory and an empty file if absent.
func (s *Store) EnsureStorageReady() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	return f.Close()
}

// Load returns the reminders in file order. A missing file is an empty
// store (and is created). Any unparsable line fails the whole load.
func (s *Store) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.log.Debug("store missing; creating", logx.String("path", s.path))
		s.loaded = 0
		return []Record{}, s.EnsureStorageReady()
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	recs, err := parse(s.path, b)
	if err != nil {
		return nil, err
	}
	s.loaded = hashContent(b)
	return recs, nil
}

func (s *Store) loadedHash() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func parse(path string, b []byte) ([]Record, error) {
	out := []Record{}
	for i, line := range splitLines(b) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		r, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// splitLines splits on '\n', drops a trailing '\r' per line, and ignores the
// empty element after a final terminator.
func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	lines := strings.Split(string(b), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}

// Append adds r as the last line without touching existing lines.
func (s *Store) Append(r Record) error {
	if err := validateText(r.Text); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	line := r.Line() + "\n"
	// A hand-edited file may lack a final newline; don't glue onto its last line.
	if st, err := f.Stat(); err == nil && st.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, st.Size()-1); err == nil && last[0] != '\n' {
			line = "\n" + line
		}
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append reminder: %w", err)
	}
	s.log.Debug("reminder appended", logx.String("interval", r.Interval.String()), logx.String("text", r.Text))
	return nil
}

// RemoveAt drops the reminder at the zero-based positional index, counting
// non-empty lines only. Every other line is written back unchanged. It
// reports whether anything was removed; an out-of-range index leaves the
// file untouched.
func (s *Store) RemoveAt(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("read store: %w", err)
	}

	var buf bytes.Buffer
	removed := false
	n := 0
	for _, line := range splitLines(b) {
		if strings.TrimSpace(line) != "" {
			if n == index {
				removed = true
				n++
				continue
			}
			n++
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if !removed {
		return false, nil
	}
	if err := s.replace(buf.Bytes()); err != nil {
		return false, err
	}
	s.log.Debug("reminder removed", logx.Int("index", index))
	return true, nil
}

// replace swaps in new content through a temp file + rename so a failed
// write never leaves a truncated store.
func (s *Store) replace(content []byte) error {
	mode := fs.FileMode(0o644)
	if st, err := os.Stat(s.path); err == nil {
		mode = st.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+fileName+".*")
	if err != nil {
		return fmt.Errorf("rewrite store: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("rewrite store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("rewrite store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("rewrite store: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return fmt.Errorf("rewrite store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("rewrite store: %w", err)
	}
	return nil
}
