package config

// ConfigDiff describes what changed between two configs. Only the log level
// can be applied without a restart; the other flags let the watcher's callback
// tell the operator a restart is needed.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ServerChanged is true when the listen address or TLS settings differ.
	ServerChanged bool

	// LiveChanged is true when any live-provider setting differs. New values
	// only take effect for sessions started after a restart.
	LiveChanged bool

	// ChatChanged is true when the chat backend URL, timeout, or retry
	// policy differs.
	ChatChanged bool
}

// Empty reports whether the diff records no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ServerChanged && !d.LiveChanged && !d.ChatChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.ServerChanged = true
	}

	if old.Live != new.Live {
		d.LiveChanged = true
	}

	if old.Chat != new.Chat {
		d.ChatChanged = true
	}

	return d
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
