package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"unpotato/internal/alarm"
	"unpotato/internal/config"
	"unpotato/internal/eventbus"
	"unpotato/internal/notifier"
	"unpotato/internal/reminder"
	"unpotato/internal/storage"
	"unpotato/internal/task/scheduler"
	logx "unpotato/pkg/logx"
)

// runtime holds the collaborators that live for one Run.
type runtime struct {
	renderer notifier.Renderer
	player   alarm.Player
	history  storage.Store
	tmpl     notifier.Notification
	// coord outlives reschedules so open alerts keep ringing across them.
	coord *alarm.Coordinator
}

// Run loads the reminders and schedules them until ctx is canceled.
//
// Without watch, Run returns when the scheduler does: on cancellation, or
// after every reminder task has ended. With watch, edits to the reminder
// file restart the scheduler with the new list and edits to the config file
// re-apply logging settings.
func (a *App) Run(ctx context.Context, watch bool) error {
	if err := a.store.EnsureStorageReady(); err != nil {
		return err
	}
	recs, err := a.store.Load()
	if err != nil {
		return err
	}
	if len(recs) == 0 && !watch {
		a.log.Info("no reminders configured; nothing to run", logx.String("store", a.store.Path()))
		return nil
	}

	rt, err := a.openRuntime()
	if err != nil {
		return err
	}
	defer a.closeRuntime(rt)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	events, unsub := a.bus.Subscribe(64)
	g.Go(func() error {
		defer unsub()
		a.reportStatus(gctx, events)
		return nil
	})

	var changes chan []reminder.Record
	if watch {
		changes = make(chan []reminder.Record, 1)
		g.Go(func() error {
			return a.store.Watch(gctx, func(next []reminder.Record) {
				// keep only the newest list
				for {
					select {
					case changes <- next:
						return
					default:
					}
					select {
					case <-changes:
					default:
					}
				}
			})
		})
		g.Go(func() error {
			if err := a.cfgm.Watch(gctx, a.applyConfig); err != nil {
				a.log.Warn("config watch unavailable", logx.Err(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		return a.schedule(gctx, rt, recs, changes)
	})

	a.sdNotify("READY=1")
	a.sdNotify(scheduledLine(len(recs)))
	a.log.Info("running",
		logx.Int("reminders", len(recs)),
		logx.Bool("watch", watch),
		logx.String("store", a.store.Path()))

	err = g.Wait()
	a.sdNotify("STOPPING=1")
	a.log.Info("stopped")
	return err
}

// schedule runs the scheduler, restarting it each time the reminder list
// changes. changes is nil without watch.
func (a *App) schedule(ctx context.Context, rt *runtime, recs []reminder.Record, changes <-chan []reminder.Record) error {
	sched := scheduler.New(scheduler.Config{
		Renderer: rt.renderer,
		Alarm:    rt.coord,
		Template: rt.tmpl,
		History:  rt.history,
		Bus:      a.bus,
		Log:      a.logs.Logger(),
	})
	for {
		runCtx, stop := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(recs []reminder.Record) {
			err := sched.Run(runCtx, recs)
			a.logSummary(sched.Snapshot())
			done <- err
		}(recs)

		select {
		case err := <-done:
			stop()
			if changes == nil {
				return err
			}
			if err != nil {
				a.log.Error("scheduler stopped; waiting for reminder file edits", logx.Err(err))
			}
			select {
			case <-ctx.Done():
				return nil
			case recs = <-changes:
			}
		case next := <-changes:
			stop()
			if err := <-done; err != nil {
				a.log.Warn("previous schedule ended with error", logx.Err(err))
			}
			recs = next
		}
		a.log.Info("rescheduling", logx.Int("reminders", len(recs)))
		a.sdNotify(scheduledLine(len(recs)))
	}
}

func (a *App) logSummary(tasks []scheduler.TaskInfo) {
	for _, t := range tasks {
		fields := []logx.Field{
			logx.Int("index", t.Index),
			logx.String("interval", t.Interval),
			logx.String("text", t.Text),
			logx.Uint64("fired", t.Fired),
		}
		if t.Err != "" {
			fields = append(fields, logx.String("err", t.Err))
		}
		a.log.Debug("reminder summary", fields...)
	}
}

func (a *App) openRuntime() (*runtime, error) {
	cfg := a.cfgm.Get()
	tmpl, ncfg, err := mapNotification(cfg)
	if err != nil {
		return nil, err
	}
	pcfg, err := mapPlayerConfig(cfg)
	if err != nil {
		return nil, err
	}

	player, err := a.openPlayer(pcfg, a.logs.Logger().With(logx.String("comp", "player")))
	if err != nil {
		return nil, err
	}
	renderer, err := a.openRenderer(ncfg, a.logs.Logger().With(logx.String("comp", "notifier")))
	if err != nil {
		return nil, err
	}
	history, err := a.openHistory()
	if err != nil {
		_ = renderer.Close()
		return nil, err
	}
	if history != nil {
		a.log.Info("history enabled", logx.String("driver", cfg.History.Driver))
	}
	return &runtime{
		renderer: renderer,
		player:   player,
		history:  history,
		tmpl:     tmpl,
		coord:    alarm.NewCoordinator(player, a.logs.Logger().With(logx.String("comp", "alarm")), a.bus),
	}, nil
}

func (a *App) closeRuntime(rt *runtime) {
	a.step("alarm", time.Second, func(context.Context) error { rt.coord.Shutdown(); return nil })
	a.step("player", time.Second, func(context.Context) error { return rt.player.Stop() })
	a.step("notifier", 2*time.Second, func(context.Context) error { return rt.renderer.Close() })
	if rt.history != nil {
		a.step("history", time.Second, func(context.Context) error { return rt.history.Close() })
	}
}

// step runs one shutdown action with an upper bound so a stuck component
// cannot stall exit.
func (a *App) step(name string, max time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), max)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, notifier.ErrClosed) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("max", max))
	}
}

// reportStatus mirrors alarm transitions into the log and the systemd
// status line.
func (a *App) reportStatus(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			switch e.Type {
			case alarm.EventRinging:
				n, _ := e.Data.(int)
				a.sdNotify(fmt.Sprintf("STATUS=ringing (%d open)", n))
			case alarm.EventSilent:
				a.sdNotify("STATUS=silent")
			}
		}
	}
}

func scheduledLine(n int) string {
	return fmt.Sprintf("STATUS=%d reminders scheduled", n)
}

// applyConfig re-applies the sections that can change without a restart.
func (a *App) applyConfig(old, cur *config.Config) {
	sections, attrs := config.SummarizeChange(old, cur)
	if len(sections) == 0 {
		return
	}
	a.log.Info("config changed", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	var restart []string
	for _, s := range sections {
		if !config.LiveSections[s] {
			restart = append(restart, s)
		}
	}
	if old == nil || old.Logging != cur.Logging {
		a.logs.Apply(mapLoggingConfig(cur, a.opts.LogLevel))
	}
	if len(restart) > 0 {
		a.log.Warn("config sections need a restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
}
