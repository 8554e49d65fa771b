package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-wide configuration. It is built once at startup
// from environment variables and never mutated afterwards.
type Config struct {
	Telegram TelegramConfig
	HTTP     HTTPConfig
	Pipeline PipelineConfig
	Engine   EngineConfig
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	BotToken        string
	PollTimeout     int // long-poll window in seconds
	DispatchRetries int
	DispatchBackoff time.Duration
}

// HTTPConfig configures the liveness server.
type HTTPConfig struct {
	Port int
}

// PipelineConfig bounds a single request.
type PipelineConfig struct {
	MaxTextLength    int
	MaxConcurrent    int
	RequestTimeout   time.Duration
	SynthesisTimeout time.Duration
	TranscodeTimeout time.Duration
	Renderer         string // "googletranslate" or "elevenlabs"
}

// EngineConfig locates the native audio engine.
type EngineConfig struct {
	FFmpegPath  string
	FFprobePath string
	WorkDir     string // base for per-request temp dirs; empty means os default
}

// FromEnv builds a Config from environment variables, applying defaults for
// everything except the bot token.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			BotToken:        os.Getenv("BOT_TOKEN"),
			PollTimeout:     envInt("POLL_TIMEOUT", 30),
			DispatchRetries: envInt("DISPATCH_RETRIES", 3),
			DispatchBackoff: envDuration("DISPATCH_BACKOFF", 500*time.Millisecond),
		},
		HTTP: HTTPConfig{
			Port: envInt("PORT", 8080),
		},
		Pipeline: PipelineConfig{
			MaxTextLength:    envInt("MAX_TEXT_LENGTH", 4000),
			MaxConcurrent:    envInt("MAX_CONCURRENT", 4),
			RequestTimeout:   envDuration("REQUEST_TIMEOUT", 120*time.Second),
			SynthesisTimeout: envDuration("SYNTHESIS_TIMEOUT", 45*time.Second),
			TranscodeTimeout: envDuration("TRANSCODE_TIMEOUT", 30*time.Second),
			Renderer:         envString("RENDERER", "googletranslate"),
		},
		Engine: EngineConfig{
			FFmpegPath:  envString("FFMPEG_PATH", "ffmpeg"),
			FFprobePath: envString("FFPROBE_PATH", "ffprobe"),
			WorkDir:     os.Getenv("AUDIO_WORK_DIR"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	return nil
}

func (t *TelegramConfig) Validate() error {
	if t.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN must be set")
	}
	if t.PollTimeout < 1 || t.PollTimeout > 60 {
		return fmt.Errorf("poll timeout must be between 1 and 60 seconds, got %d", t.PollTimeout)
	}
	if t.DispatchRetries < 0 {
		return fmt.Errorf("dispatch retries cannot be negative, got %d", t.DispatchRetries)
	}
	if t.DispatchBackoff <= 0 {
		return fmt.Errorf("dispatch backoff must be positive, got %v", t.DispatchBackoff)
	}
	return nil
}

func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}
	return nil
}

func (p *PipelineConfig) Validate() error {
	if p.MaxTextLength < 1 {
		return fmt.Errorf("max text length must be at least 1, got %d", p.MaxTextLength)
	}
	if p.MaxConcurrent < 1 {
		return fmt.Errorf("max concurrent must be at least 1, got %d", p.MaxConcurrent)
	}
	if p.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", p.RequestTimeout)
	}
	if p.SynthesisTimeout <= 0 || p.SynthesisTimeout > p.RequestTimeout {
		return fmt.Errorf("synthesis timeout must be positive and within the request timeout, got %v", p.SynthesisTimeout)
	}
	if p.TranscodeTimeout <= 0 || p.TranscodeTimeout > p.RequestTimeout {
		return fmt.Errorf("transcode timeout must be positive and within the request timeout, got %v", p.TranscodeTimeout)
	}
	switch p.Renderer {
	case "googletranslate", "elevenlabs":
	default:
		return fmt.Errorf("renderer must be 'googletranslate' or 'elevenlabs', got %q", p.Renderer)
	}
	return nil
}

func (e *EngineConfig) Validate() error {
	if e.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg path cannot be empty")
	}
	if e.FFprobePath == "" {
		return fmt.Errorf("ffprobe path cannot be empty")
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
