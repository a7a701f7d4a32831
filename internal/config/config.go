// Package config collects the daemon's environment-driven settings.
// Command-line flags override these values in cmd/companiond.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is everything the daemon needs to wire a server.
type Config struct {
	// ListenAddr for the WebSocket and HTTP API.
	ListenAddr string

	// DBPath of the SQLite file. Empty disables persistence.
	DBPath string

	// OpenAIKey enables the OpenAI adapters when set.
	OpenAIKey string
	// OpenAIBaseURL points the OpenAI adapters at a compatible vendor.
	OpenAIBaseURL string
	// ChatModel for reply generation.
	ChatModel string

	// OllamaHost of a local model server. Empty disables the adapter.
	OllamaHost string
	// OllamaModel name, e.g. "gemma3:1b".
	OllamaModel string

	// SampleRate expected from clients.
	SampleRate int
	// VoiceThreshold is the normalized RMS speech threshold.
	VoiceThreshold float64
	// OnsetDuration of sustained sound before speech starts.
	OnsetDuration time.Duration
	// PatienceWindow of silence before an utterance finalizes.
	PatienceWindow time.Duration

	// SundowningHour after which the voice is always calm.
	SundowningHour int

	// IdleTimeout before inactive sessions are reaped.
	IdleTimeout time.Duration

	// Greet makes sessions open with a spoken greeting.
	Greet bool
}

// Default returns the daemon's baseline settings.
func Default() Config {
	return Config{
		ListenAddr:     ":8765",
		DBPath:         "companion.db",
		ChatModel:      "gpt-4o-mini",
		SampleRate:     16000,
		VoiceThreshold: 0.015,
		OnsetDuration:  150 * time.Millisecond,
		PatienceWindow: 2 * time.Second,
		SundowningHour: 17,
		IdleTimeout:    10 * time.Minute,
		Greet:          true,
	}
}

// FromEnv overlays COMPANION_* environment variables on the defaults.
func FromEnv() (Config, error) {
	cfg := Default()
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("COMPANION_LISTEN_ADDR", &cfg.ListenAddr)
	str("COMPANION_DB_PATH", &cfg.DBPath)
	str("OPENAI_API_KEY", &cfg.OpenAIKey)
	str("COMPANION_OPENAI_BASE_URL", &cfg.OpenAIBaseURL)
	str("COMPANION_CHAT_MODEL", &cfg.ChatModel)
	str("COMPANION_OLLAMA_HOST", &cfg.OllamaHost)
	str("COMPANION_OLLAMA_MODEL", &cfg.OllamaModel)

	var err error
	intVar := func(key string, dst *int) {
		if err != nil {
			return
		}
		if v := os.Getenv(key); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("config: %s: %w", key, perr)
				return
			}
			*dst = n
		}
	}
	durVar := func(key string, dst *time.Duration) {
		if err != nil {
			return
		}
		if v := os.Getenv(key); v != "" {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("config: %s: %w", key, perr)
				return
			}
			*dst = d
		}
	}
	intVar("COMPANION_SAMPLE_RATE", &cfg.SampleRate)
	intVar("COMPANION_SUNDOWNING_HOUR", &cfg.SundowningHour)
	durVar("COMPANION_ONSET_DURATION", &cfg.OnsetDuration)
	durVar("COMPANION_PATIENCE_WINDOW", &cfg.PatienceWindow)
	durVar("COMPANION_IDLE_TIMEOUT", &cfg.IdleTimeout)
	if err != nil {
		return Config{}, err
	}

	if v := os.Getenv("COMPANION_VOICE_THRESHOLD"); v != "" {
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return Config{}, fmt.Errorf("config: COMPANION_VOICE_THRESHOLD: %w", perr)
		}
		cfg.VoiceThreshold = f
	}
	if v := os.Getenv("COMPANION_GREET"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return Config{}, fmt.Errorf("config: COMPANION_GREET: %w", perr)
		}
		cfg.Greet = b
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("config: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.VoiceThreshold <= 0 || c.VoiceThreshold >= 1 {
		return fmt.Errorf("config: voice threshold must be in (0, 1), got %g", c.VoiceThreshold)
	}
	if c.PatienceWindow <= 0 {
		return fmt.Errorf("config: patience window must be positive")
	}
	if c.SundowningHour < 0 || c.SundowningHour > 23 {
		return fmt.Errorf("config: sundowning hour must be 0-23, got %d", c.SundowningHour)
	}
	return nil
}
