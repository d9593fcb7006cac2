package app

import (
	"context"
	"fmt"
	"strings"

	"unpotato/internal/alarm"
	"unpotato/internal/config"
	"unpotato/internal/eventbus"
	"unpotato/internal/notifier"
	"unpotato/internal/reminder"
	"unpotato/internal/storage"
	logx "unpotato/pkg/logx"
)

// Options come from the command line. Empty fields fall back to the config
// file and then to built-in defaults.
type Options struct {
	ConfigPath string
	StorePath  string
	LogLevel   string
}

type App struct {
	opts Options

	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	store *reminder.Store
	bus   eventbus.Bus

	// replaced in tests
	openRenderer func(notifier.Config, logx.Logger) (notifier.Renderer, error)
	openPlayer   func(alarm.PlayerConfig, logx.Logger) (alarm.Player, error)
	sdNotify     func(state string)
}

// New loads the config and sets up logging and the reminder store. Nothing
// touches the desktop session until Run.
func New(opts Options) (*App, error) {
	cfgPath := strings.TrimSpace(opts.ConfigPath)
	if cfgPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		cfgPath = p
	}

	cfgm := config.NewManager(cfgPath, logx.NewConsole(opts.LogLevel).With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.NewService(mapLoggingConfig(cfg, opts.LogLevel))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	storePath := strings.TrimSpace(opts.StorePath)
	if storePath == "" {
		storePath = strings.TrimSpace(cfg.Store.Path)
	}
	if storePath == "" {
		p, err := reminder.DefaultPath()
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		storePath = p
	}

	return &App{
		opts:  opts,
		cfgm:  cfgm,
		logs:  logSvc,
		log:   log.With(logx.String("comp", "app")),
		store: reminder.NewStore(storePath, log.With(logx.String("comp", "store"))),
		bus:   eventbus.New(),

		openRenderer: notifier.Open,
		openPlayer: func(pc alarm.PlayerConfig, l logx.Logger) (alarm.Player, error) {
			return alarm.NewCommandPlayer(pc, l)
		},
		sdNotify: sdNotify,
	}, nil
}

// Config is the current config, including live reloads picked up by Run.
func (a *App) Config() *config.Config { return a.cfgm.Get() }
func (a *App) Store() *reminder.Store { return a.store }
func (a *App) Logger() logx.Logger    { return a.log }
func (a *App) Close() error           { return a.logs.Close() }

// Add validates and appends one reminder. words are joined with single
// spaces to form the text.
func (a *App) Add(token string, words []string) (reminder.Record, error) {
	rec, err := reminder.New(token, strings.Join(words, " "))
	if err != nil {
		return reminder.Record{}, err
	}
	if err := a.store.Append(rec); err != nil {
		return reminder.Record{}, err
	}
	a.log.Debug("reminder added", logx.String("interval", rec.Interval.String()), logx.String("text", rec.Text))
	return rec, nil
}

// Remove deletes the reminder at index. ok is false when index was out of
// range; the store is then left untouched.
func (a *App) Remove(index int) (bool, error) {
	if index < 0 {
		return false, fmt.Errorf("index must be >= 0, got %d", index)
	}
	ok, err := a.store.RemoveAt(index)
	if err != nil {
		return false, err
	}
	if !ok {
		a.log.Warn("no reminder at index; nothing removed", logx.Int("index", index))
	}
	return ok, nil
}

func (a *App) List() ([]reminder.Record, error) { return a.store.Load() }

// History returns the n most recent firings, newest first. It fails with
// storage.ErrDisabled when history.driver is "none".
func (a *App) History(ctx context.Context, n int) ([]storage.Firing, error) {
	st, err := a.openHistory()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, storage.ErrDisabled
	}
	defer st.Close()
	return st.Recent(ctx, n)
}

func (a *App) openHistory() (storage.Store, error) {
	sc, err := mapHistoryConfig(a.cfgm.Get())
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, a.logs.Logger().With(logx.String("comp", "history")))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return st, nil
}
