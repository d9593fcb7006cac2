package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"unpotato/internal/eventbus"
	"unpotato/internal/notifier"
	"unpotato/internal/reminder"
	"unpotato/internal/runtime/supervisor"
	"unpotato/internal/storage"
	logx "unpotato/pkg/logx"
)

const historyTimeout = 2 * time.Second

type Scheduler struct {
	renderer notifier.Renderer
	alarm    Alarm
	tmpl     notifier.Notification
	history  storage.Store
	bus      eventbus.Bus
	log      logx.Logger

	mu    sync.Mutex
	tasks map[int]*TaskInfo
}

func New(cfg Config) *Scheduler {
	log := cfg.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		renderer: cfg.Renderer,
		alarm:    cfg.Alarm,
		tmpl:     cfg.Template,
		history:  cfg.History,
		bus:      cfg.Bus,
		log:      log.With(logx.String("comp", "scheduler")),
		tasks:    map[int]*TaskInfo{},
	}
}

// Run starts one task per record and blocks until all of them have ended:
// normally when ctx is canceled. Run must not be called concurrently.
//
// A record whose interval and text match a task of the previous Run keeps
// that task's pending fire time, so restarting with an edited list does not
// push unrelated reminders back by a full interval.
func (s *Scheduler) Run(ctx context.Context, records []reminder.Record) error {
	s.mu.Lock()
	pending := pendingFires(s.tasks)
	s.tasks = make(map[int]*TaskInfo, len(records))
	first := make([]time.Time, len(records))
	for i, r := range records {
		k := taskKey(r.Interval.String(), r.Text)
		if q := pending[k]; len(q) > 0 {
			first[i], pending[k] = q[0], q[1:]
		}
		s.tasks[i] = &TaskInfo{Index: i, Interval: r.Interval.String(), Text: r.Text}
	}
	s.mu.Unlock()

	sup := supervisor.New(ctx,
		supervisor.WithLogger(s.log),
		// one reminder failing must not stop the others
		supervisor.WithCancelOnError(false),
	)
	for i, r := range records {
		i, r := i, r
		sup.Go(taskName(i, r), func(ctx context.Context) error {
			err := s.loop(ctx, i, r, first[i])
			if err != nil && ctx.Err() == nil {
				s.setErr(i, err)
				s.log.Error("reminder stopped; later recurrences are lost",
					logx.Int("index", i), logx.String("text", r.Text), logx.Err(err))
			}
			return err
		})
	}
	s.log.Info("scheduler started", logx.Int("reminders", len(records)))

	err := sup.Wait(context.Background())
	snap := sup.Snapshot()
	s.log.Info("scheduler stopped",
		logx.Int("reminders", len(records)),
		logx.Uint64("tasks_started", snap.Counters.Started),
		logx.String("first_error", snap.FirstError))
	return err
}

func taskName(i int, r reminder.Record) string {
	return fmt.Sprintf("reminder[%d] %s", i, r.Interval)
}

func taskKey(interval, text string) string { return interval + " " + text }

// pendingFires collects the armed fire times of tasks, grouped by record
// and in index order. Failed tasks have none.
func pendingFires(tasks map[int]*TaskInfo) map[string][]time.Time {
	idx := make([]int, 0, len(tasks))
	for i := range tasks {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	out := make(map[string][]time.Time, len(tasks))
	for _, i := range idx {
		t := tasks[i]
		if t.Next.IsZero() {
			continue
		}
		k := taskKey(t.Interval, t.Text)
		out[k] = append(out[k], t.Next)
	}
	return out
}

// loop fires r every interval. A non-zero first replaces the first computed
// fire time.
func (s *Scheduler) loop(ctx context.Context, i int, r reminder.Record, first time.Time) error {
	if r.Interval.Duration() <= 0 {
		return fmt.Errorf("%q: %w", r.Interval.String(), ErrZeroInterval)
	}
	sched := r.Interval.Schedule()
	if s.log.Enabled(logx.LevelDebug) {
		s.log.Debug("reminder armed",
			logx.Int("index", i),
			logx.String("interval", r.Interval.String()),
			logx.String("next", previewNextRuns(sched, time.Now(), 3)))
	}

	next := first
	for {
		if next.IsZero() {
			next = sched.Next(time.Now())
		}
		s.setNext(i, next)

		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		if err := s.fire(ctx, i, r); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		next = time.Time{}
	}
}

// fire shows the popup, triggers the shared alarm and arranges for the
// matching acknowledge when the user dismisses the popup.
func (s *Scheduler) fire(ctx context.Context, i int, r reminder.Record) error {
	h, err := s.renderer.Show(ctx, r.Notification(s.tmpl))
	if err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	if err := s.alarm.Trigger(); err != nil {
		return fmt.Errorf("start alarm: %w", err)
	}

	ev := FiringEvent{ID: uuid.NewString(), Index: i, Text: r.Text, At: time.Now()}
	s.noteFired(i, ev.At)
	s.recordHistory(ctx, func(hctx context.Context, st storage.Store) error {
		return st.RecordFired(hctx, storage.Firing{
			ID:       ev.ID,
			Index:    i,
			Interval: r.Interval.String(),
			Text:     r.Text,
			FiredAt:  ev.At,
		})
	})
	s.publish(EventFired, ev)
	s.log.Info("reminder fired", logx.Int("index", i), logx.String("text", r.Text), logx.String("id", ev.ID))

	var once sync.Once
	h.OnDismiss(func() {
		once.Do(func() { s.dismissed(ctx, ev) })
	})
	return nil
}

func (s *Scheduler) dismissed(ctx context.Context, fired FiringEvent) {
	if err := s.alarm.Acknowledge(); err != nil {
		s.log.Error("alarm acknowledge failed", logx.String("id", fired.ID), logx.Err(err))
	}
	ev := fired
	ev.At = time.Now()
	s.recordHistory(ctx, func(hctx context.Context, st storage.Store) error {
		return st.RecordDismissed(hctx, ev.ID, ev.At)
	})
	s.publish(EventDismissed, ev)
	s.log.Info("reminder dismissed",
		logx.Int("index", ev.Index),
		logx.String("id", ev.ID),
		logx.Duration("after", ev.At.Sub(fired.At)))
}

// recordHistory writes best-effort; history failures never stop a reminder.
func (s *Scheduler) recordHistory(ctx context.Context, fn func(context.Context, storage.Store) error) {
	if s.history == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	if err := fn(hctx, s.history); err != nil {
		s.log.Warn("history write failed", logx.Err(err))
	}
}

func (s *Scheduler) publish(typ string, ev FiringEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}

func (s *Scheduler) setNext(i int, next time.Time) {
	s.mu.Lock()
	if t := s.tasks[i]; t != nil {
		t.Next = next
	}
	s.mu.Unlock()
}

func (s *Scheduler) noteFired(i int, at time.Time) {
	s.mu.Lock()
	if t := s.tasks[i]; t != nil {
		t.Fired++
		t.LastFired = at
	}
	s.mu.Unlock()
}

func (s *Scheduler) setErr(i int, err error) {
	s.mu.Lock()
	if t := s.tasks[i]; t != nil {
		t.Err = err.Error()
		t.Next = time.Time{}
	}
	s.mu.Unlock()
}

// Snapshot returns the tasks of the current (or last) run in index order.
func (s *Scheduler) Snapshot() []TaskInfo {
	s.mu.Lock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	s.mu.Unlock()
	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out
}

// previewNextRuns lists the next n fire times, for debug logs.
func previewNextRuns(sched cron.Schedule, from time.Time, n int) string {
	var b strings.Builder
	t := from
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.Format("2006-01-02 15:04:05.000"))
	}
	return b.String()
}
