package reminder

import (
	"context"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "unpotato/pkg/logx"
)

const (
	watchDebounce      = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// Watch calls onChange with the freshly loaded reminders whenever the store
// file's content differs from what Load last returned. Edits that fail to
// parse are logged and skipped. Once the first watcher is up it re-checks
// the file, so an edit made between Load and Watch is not lost. It blocks
// until ctx is done and recreates the fsnotify watcher if it breaks.
func (s *Store) Watch(ctx context.Context, onChange func([]Record)) error {
	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var (
		timerMu  sync.Mutex
		timer    *time.Timer
		lastHash = s.loadedHash()
		started  bool
	)
	reload := func() {
		if ctx.Err() != nil {
			return
		}
		h := s.contentHash()
		timerMu.Lock()
		unchanged := h == lastHash
		timerMu.Unlock()
		if unchanged {
			s.log.Debug("store unchanged; skipping reload", logx.String("path", s.path))
			return
		}
		recs, err := s.Load()
		if err != nil {
			s.log.Warn("store reload failed; keeping current schedule", logx.String("path", s.path), logx.Err(err))
			return
		}
		timerMu.Lock()
		lastHash = h
		timerMu.Unlock()
		s.log.Info("store changed", logx.String("path", s.path), logx.Int("reminders", len(recs)))
		onChange(recs)
	}
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		backoff *= 2
		if backoff > restartBackoffMax {
			backoff = restartBackoffMax
		}
		return wait
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			s.log.Warn("store watch init failed", logx.String("dir", dir), logx.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(nextWait()):
				continue
			}
		}

		backoff = restartBackoffBase
		s.log.Debug("store watcher started", logx.String("dir", dir), logx.String("file", file))
		if !started {
			started = true
			debounce()
		}

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				// Rewrites land as a rename of a temp file onto the store name.
				if filepath.Base(ev.Name) == file &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					s.log.Warn("store watch overflow; forcing reload", logx.Err(err))
					debounce()
					continue
				}
				s.log.Warn("store watch error", logx.String("dir", dir), logx.Err(err))
			}
		}

		_ = w.Close()
		wait := nextWait()
		s.log.Warn("store watcher stopped; restarting", logx.String("dir", dir), logx.Duration("backoff", wait))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Store) contentHash() uint64 {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return 0
	}
	return hashContent(b)
}

// hashContent is 0 for an empty store.
func hashContent(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
