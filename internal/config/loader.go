package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidVoiceNames lists the prebuilt voice names the live API is known to
// accept. Used by [Validate] to warn about likely typos; unknown names are
// still forwarded as-is, since the API grows voices faster than this list.
var ValidVoiceNames = []string{
	"Aoede", "Charon", "Fenrir", "Kore", "Leda", "Orus", "Puck", "Zephyr",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Suspicious-but-legal values are logged as warnings, not errors.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when server.tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when server.tls is set"))
		}
	}

	// Live provider availability warnings
	if cfg.Live.APIKey == "" {
		slog.Warn("live.api_key is empty; voice sessions will fail to connect")
	}
	if cfg.Live.BaseURL != "" {
		if err := validateURL("live.base_url", cfg.Live.BaseURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	validateVoiceName(cfg.Live.Voice)

	// Chat backend
	if cfg.Chat.BaseURL == "" {
		slog.Warn("chat.base_url is empty; the send_to_chat tool will answer with errors")
	} else if err := validateURL("chat.base_url", cfg.Chat.BaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if cfg.Chat.Timeout < 0 {
		errs = append(errs, fmt.Errorf("chat.timeout %s must not be negative", cfg.Chat.Timeout.Std()))
	}

	// Retry policy
	if cfg.Chat.Retry.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("chat.retry.max_attempts %d must not be negative", cfg.Chat.Retry.MaxAttempts))
	}
	if cfg.Chat.Retry.InitialBackoff < 0 {
		errs = append(errs, fmt.Errorf("chat.retry.initial_backoff %s must not be negative", cfg.Chat.Retry.InitialBackoff.Std()))
	}
	if cfg.Chat.Retry.MaxBackoff < 0 {
		errs = append(errs, fmt.Errorf("chat.retry.max_backoff %s must not be negative", cfg.Chat.Retry.MaxBackoff.Std()))
	}
	if cfg.Chat.Retry.MaxBackoff > 0 && cfg.Chat.Retry.InitialBackoff > cfg.Chat.Retry.MaxBackoff {
		errs = append(errs, fmt.Errorf("chat.retry.initial_backoff %s exceeds chat.retry.max_backoff %s",
			cfg.Chat.Retry.InitialBackoff.Std(), cfg.Chat.Retry.MaxBackoff.Std()))
	}

	return errors.Join(errs...)
}

// validateURL checks that raw parses as a URL with one of the given schemes
// and a host.
func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s %q is not a valid URL: %w", field, raw, err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("%s %q must use one of the schemes %v", field, raw, schemes)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q is missing a host", field, raw)
	}
	return nil
}

// validateVoiceName logs a warning if name is non-empty and not found in
// [ValidVoiceNames].
func validateVoiceName(name string) {
	if name == "" || slices.Contains(ValidVoiceNames, name) {
		return
	}
	slog.Warn("unknown voice name, may be a typo or a newly released voice",
		"name", name,
		"known", ValidVoiceNames,
	)
}
