// Package config provides the configuration schema, loader, and STT provider
// registry for the RocketReaders assessment server.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the server.
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

// Slog maps l onto the corresponding [slog.Level]. The empty level maps to
// [slog.LevelInfo].
func (l LogLevel) Slog() slog.Level {
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

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Storage       StorageConfig       `yaml:"storage"`
	Passages      PassagesConfig      `yaml:"passages"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It is hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	// Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig selects the speech-to-text backends. STT is tried first;
// STTFallbacks are tried in order when it fails or its circuit is open.
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// ProviderEntry is the configuration block for one STT backend.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. For "whisper"
	// it is the whisper.cpp server URL.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "whisper-1",
	// "nova-3"). For "whisper-native" it is the path to the GGML model file.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// StorageConfig selects where assessment sessions are persisted.
type StorageConfig struct {
	// PostgresDSN is the PostgreSQL connection string. When empty, sessions
	// are kept in memory and lost on restart.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// PassagesConfig lists the YAML passage library files to load. Changes are
// picked up on hot reload.
type PassagesConfig struct {
	Files []string `yaml:"files"`
}

// ScoringConfig tunes the fluency metrics.
type ScoringConfig struct {
	// MinMinutes is the lower bound applied to the reading time when
	// computing words correct per minute. Default: 0.1; smaller values have
	// no effect.
	MinMinutes float64 `yaml:"min_minutes"`

	// ContextRadius is the number of characters shown on either side of an
	// error in review snippets. Default: 30.
	ContextRadius int `yaml:"context_radius"`
}

// TranscriptionConfig holds request-level settings for STT calls.
type TranscriptionConfig struct {
	// RateLimitPerMin caps outbound STT requests per minute across all
	// backends. Zero disables limiting.
	RateLimitPerMin int `yaml:"rate_limit_per_min"`

	// Language is the BCP-47 language hint sent with every recording that
	// does not carry its own (e.g., "en-US").
	Language string `yaml:"language"`
}

// TelemetryConfig tunes tracing and metric identity. Changes need a restart.
type TelemetryConfig struct {
	// ServiceName is reported as service.name. Default: "rocketreaders".
	ServiceName string `yaml:"service_name"`

	// TraceSampleRatio is the fraction of new traces recorded, in [0, 1].
	// Unset records every trace.
	TraceSampleRatio *float64 `yaml:"trace_sample_ratio"`
}

// SampleRatio returns TraceSampleRatio, or 1 when it is unset.
func (t TelemetryConfig) SampleRatio() float64 {
	if t.TraceSampleRatio == nil {
		return 1
	}
	return *t.TraceSampleRatio
}
