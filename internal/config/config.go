// Package config provides the configuration schema, loader, and file watcher
// for the Naveo voice service.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the voice service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto the corresponding slog level. Unrecognised or empty
// levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration wraps time.Duration so YAML values can be written in Go duration
// syntax (e.g. "500ms", "10s").
type Duration time.Duration

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for the voice service.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Live   LiveConfig   `yaml:"live"`
	Chat   ChatConfig   `yaml:"chat"`
}

// ServerConfig holds network and logging settings for the gateway server.
type ServerConfig struct {
	// ListenAddr is the TCP address the gateway listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the gateway. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// LiveConfig configures the duplex conversational-session provider.
type LiveConfig struct {
	// APIKey is the authentication key for the live API. When empty, voice
	// sessions cannot be established and /readyz reports not-ready.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default websocket endpoint.
	// Leave empty to use the built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects the live model (e.g., "gemini-2.0-flash-live-001").
	// Leave empty to use the provider default.
	Model string `yaml:"model"`

	// Voice is the prebuilt voice name used for audio responses (e.g., "Puck").
	Voice string `yaml:"voice"`

	// SystemInstruction is the persona prompt injected at session setup.
	SystemInstruction string `yaml:"system_instruction"`
}

// ChatConfig configures the REST chat-backend collaborator. The live session's
// send_to_chat tool forwards user queries to this backend.
type ChatConfig struct {
	// BaseURL is the chat backend's root URL (e.g., "http://localhost:8000").
	// When empty, the send_to_chat tool answers with an error.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single request attempt. Zero means the client default.
	Timeout Duration `yaml:"timeout"`

	// Retry tunes the retry policy for transient failures.
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig tunes the chat client's backoff retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, first attempt included.
	// Zero means the client default.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the delay before the first retry; it doubles per
	// attempt. Zero means the client default.
	InitialBackoff Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the per-attempt delay. Zero means the client default.
	MaxBackoff Duration `yaml:"max_backoff"`
}
