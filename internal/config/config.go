package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":4000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	UploadDir      string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	WorkDir        string `env:"WORK_DIR" envDefault:"./work"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`

	FFmpegPath        string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	WhisperPath       string `env:"WHISPER_PATH" envDefault:"whisper-cli"`
	WhisperModelEN    string `env:"WHISPER_MODEL_EN" envDefault:"./models/ggml-base.en.bin"`
	WhisperModelMulti string `env:"WHISPER_MODEL_MULTI" envDefault:"./models/ggml-base.bin"`

	LLMURL         string        `env:"LLM_URL" envDefault:"http://localhost:11434"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"phi"`
	LLMTemperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.3"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"5m"`

	MaxConcurrent  int           `env:"PIPELINE_MAX_CONCURRENT" envDefault:"4"`
	SweepRetention time.Duration `env:"SWEEP_RETENTION" envDefault:"1h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	UploadDir   string
	WhisperPath string
	LLMURL      string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.UploadDir != "" {
		cfg.UploadDir = overrides.UploadDir
	}
	if overrides.WhisperPath != "" {
		cfg.WhisperPath = overrides.WhisperPath
	}
	if overrides.LLMURL != "" {
		cfg.LLMURL = overrides.LLMURL
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("PIPELINE_MAX_CONCURRENT must be >= 0, got %d", c.MaxConcurrent)
	}
	return nil
}

// SupportedLanguages is the fixed set of language codes accepted for
// transcription. English uses the smaller English-only whisper model;
// every other code shares the multilingual model.
var SupportedLanguages = map[string]bool{
	"en": true,
	"hi": true,
	"ta": true,
	"fr": true,
	"es": true,
}
