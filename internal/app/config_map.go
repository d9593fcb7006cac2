package app

import (
	"strings"
	"time"

	"unpotato/internal/alarm"
	"unpotato/internal/config"
	"unpotato/internal/notifier"
	"unpotato/internal/storage"
	logx "unpotato/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config, levelOverride string) logx.Config {
	level := cfg.Logging.Level
	if s := strings.TrimSpace(levelOverride); s != "" {
		level = s
	}
	return logx.Config{
		Level:   level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapHistoryConfig(cfg *config.Config) (storage.Config, error) {
	hc := cfg.History
	driver := strings.ToLower(strings.TrimSpace(hc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{Driver: "none"}, nil
	}
	if driver == "sqlite3" {
		driver = "sqlite"
	}
	path := strings.TrimSpace(hc.Path)
	if path == "" {
		p, err := config.DefaultHistoryPath(driver)
		if err != nil {
			return storage.Config{}, err
		}
		path = p
	}
	busy, err := config.ParseDurationOrDefault("history.busy_timeout", hc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
}

func mapPlayerConfig(cfg *config.Config) (alarm.PlayerConfig, error) {
	ac := cfg.Alarm
	gap, err := config.ParseDurationOrDefault("alarm.min_gap", ac.MinGap, 200*time.Millisecond)
	if err != nil {
		return alarm.PlayerConfig{}, err
	}
	sound := strings.TrimSpace(ac.Sound)
	if sound == "" {
		sound = alarm.DefaultSound
	}
	return alarm.PlayerConfig{
		Command: ac.Command,
		Args:    ac.Args,
		Sound:   sound,
		MinGap:  gap,
	}, nil
}

// mapNotification builds the popup template every reminder is rendered from.
func mapNotification(cfg *config.Config) (notifier.Notification, notifier.Config, error) {
	nc := cfg.Notifier
	timeout, err := config.ParseDurationField("notifier.timeout", nc.Timeout)
	if err != nil {
		return notifier.Notification{}, notifier.Config{}, err
	}
	tmpl := notifier.Notification{
		AppName:   nc.AppName,
		Urgency:   notifier.ParseUrgency(strings.ToLower(strings.TrimSpace(nc.Urgency))),
		SoundHint: nc.SoundHint,
		Timeout:   timeout,
	}
	return tmpl, notifier.Config{RatePerSec: nc.RatePerSec}, nil
}
