package config

import "reflect"

// ConfigDiff describes what changed between two configs.
//
// Log level and assistant flags are applied live. Everything else requires a
// restart; the app logs those sections so the operator knows.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	AssistantChanged bool
	NewAssistant     AssistantConfig

	// RestartRequired names the sections whose changes only take effect
	// after a restart, in schema order.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.AssistantChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !reflect.DeepEqual(old.Assistant, new.Assistant) {
		d.AssistantChanged = true
		d.NewAssistant = new.Assistant
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"fallbacks", old.Fallbacks, new.Fallbacks},
		{"audio", old.Audio, new.Audio},
		{"store", old.Store, new.Store},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
