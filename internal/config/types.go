package config

// Config is the on-disk configuration. Every section may be omitted.
//
// Example (YAML):
//
//	store:
//	  path: /home/me/.config/un-potato/notifications
//	logging:
//	  level: debug
//	alarm:
//	  command: paplay
//	  sound: /usr/share/sounds/freedesktop/stereo/alarm-clock-elapsed.oga
//	notifier:
//	  urgency: critical
//	history:
//	  driver: sqlite
//	  path: /home/me/.local/state/un-potato/history.db
type Config struct {
	Store    StoreConfig    `json:"store"`
	Logging  LoggingConfig  `json:"logging"`
	Alarm    AlarmConfig    `json:"alarm"`
	Notifier NotifierConfig `json:"notifier"`
	History  HistoryConfig  `json:"history"`
}

type StoreConfig struct {
	// Path of the reminders file. Empty means <UserConfigDir>/un-potato/notifications.
	Path string `json:"path,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AlarmConfig selects the command that plays the alarm sound.
// MinGap is a Go duration string bounding how often the command may restart.
type AlarmConfig struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Sound   string   `json:"sound,omitempty"`
	MinGap  string   `json:"min_gap,omitempty"`
}

// NotifierConfig shapes every popup. Timeout "0s" (the default) keeps the
// popup open until the user dismisses it.
type NotifierConfig struct {
	AppName    string `json:"app_name,omitempty"`
	Urgency    string `json:"urgency,omitempty"`
	SoundHint  string `json:"sound_hint,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// HistoryConfig controls the firing journal.
//
// Driver values: "none", "file" (JSON Lines), "sqlite".
type HistoryConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

const (
	DefaultAppName   = "un-potato"
	DefaultUrgency   = "critical"
	DefaultSoundHint = "alarm-clock-elapsed"
	DefaultLogLevel  = "info"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills omitted fields. Paths that depend on the user's
// directories are resolved by the caller.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if !c.Logging.File.Enabled {
		c.Logging.Console = true
	}
	if c.Notifier.AppName == "" {
		c.Notifier.AppName = DefaultAppName
	}
	if c.Notifier.Urgency == "" {
		c.Notifier.Urgency = DefaultUrgency
	}
	if c.Notifier.SoundHint == "" {
		c.Notifier.SoundHint = DefaultSoundHint
	}
	if c.History.Driver == "" {
		c.History.Driver = "file"
	}
}
