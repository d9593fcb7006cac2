package config

import (
	"reflect"
	"strings"

	logx "unpotato/pkg/logx"
)

// SummarizeChange lists the sections that differ and fields worth logging
// about the new values.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	if strings.TrimSpace(oldCfg.Store.Path) != strings.TrimSpace(newCfg.Store.Path) {
		changed = append(changed, "store")
		attrs = append(attrs, logx.String("store.path", newCfg.Store.Path))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Alarm, newCfg.Alarm) {
		changed = append(changed, "alarm")
		attrs = append(attrs,
			logx.String("alarm.command", newCfg.Alarm.Command),
			logx.String("alarm.sound", newCfg.Alarm.Sound),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.String("notifier.urgency", newCfg.Notifier.Urgency),
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
		)
	}
	if oldCfg.History != newCfg.History {
		changed = append(changed, "history")
		attrs = append(attrs, logx.String("history.driver", newCfg.History.Driver))
	}
	return changed, attrs
}

// LiveSections are the sections a running process applies without restart.
var LiveSections = map[string]bool{"logging": true}
