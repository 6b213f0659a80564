package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidSTTNames lists the STT provider names the server knows how to build.
// Used by [Validate] to warn about unrecognised provider names.
var ValidSTTNames = []string{"deepgram", "whisper", "whisper-native", "openai"}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMinMinutes      = 0.1
	DefaultContextRadius   = 30
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadBytes(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Scoring.MinMinutes == 0 {
		cfg.Scoring.MinMinutes = DefaultMinMinutes
	}
	if cfg.Scoring.ContextRadius == 0 {
		cfg.Scoring.ContextRadius = DefaultContextRadius
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s must not be negative", cfg.Server.ShutdownTimeout))
	}

	seen := make(map[string]string)
	entries := append([]ProviderEntry{cfg.Providers.STT}, cfg.Providers.STTFallbacks...)
	for i, e := range entries {
		prefix := "providers.stt"
		if i > 0 {
			prefix = fmt.Sprintf("providers.stt_fallbacks[%d]", i-1)
		}
		if e.Name == "" {
			if i > 0 {
				errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			}
			continue
		}
		validateProviderName(e.Name)
		key := e.Name + "|" + e.BaseURL + "|" + e.Model
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s duplicates %s", prefix, prev))
		}
		seen[key] = prefix
		if e.Name == "whisper" && e.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s: whisper requires base_url", prefix))
		}
		if e.Name == "whisper-native" && e.Model == "" {
			errs = append(errs, fmt.Errorf("%s: whisper-native requires model (path to the model file)", prefix))
		}
	}
	if cfg.Providers.STT.Name == "" {
		if len(cfg.Providers.STTFallbacks) > 0 {
			errs = append(errs, errors.New("providers.stt_fallbacks is set but providers.stt is not configured"))
		} else {
			slog.Warn("no STT provider configured; only transcript-based assessment will be available")
		}
	}

	for i, f := range cfg.Passages.Files {
		if f == "" {
			errs = append(errs, fmt.Errorf("passages.files[%d] is empty", i))
		}
	}

	if cfg.Scoring.MinMinutes < 0 {
		errs = append(errs, fmt.Errorf("scoring.min_minutes %.3f must not be negative", cfg.Scoring.MinMinutes))
	}
	if cfg.Scoring.ContextRadius < 0 {
		errs = append(errs, fmt.Errorf("scoring.context_radius %d must not be negative", cfg.Scoring.ContextRadius))
	}
	if cfg.Transcription.RateLimitPerMin < 0 {
		errs = append(errs, fmt.Errorf("transcription.rate_limit_per_min %d must not be negative", cfg.Transcription.RateLimitPerMin))
	}

	if r := cfg.Telemetry.SampleRatio(); r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %v must be between 0 and 1", r))
	}

	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; sessions are kept in memory only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is not in [ValidSTTNames].
func validateProviderName(name string) {
	if slices.Contains(ValidSTTNames, name) {
		return
	}
	slog.Warn("unknown stt provider name, may be a typo or a custom registration",
		"name", name,
		"known", ValidSTTNames,
	)
}
