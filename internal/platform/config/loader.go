package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from a YAML file layered over defaults.
type Loader struct {
	path      string
	useDotEnv bool
}

// NewLoader creates a loader reading config.yaml in the working directory.
func NewLoader() *Loader {
	return &Loader{
		path:      "config.yaml",
		useDotEnv: true,
	}
}

// WithPath overrides the configuration file path.
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load reads the config file if present, applies environment overrides and validates.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := DefaultConfig()
	path := l.path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		path = "defaults"
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the file.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.TTS.OpenAI.APIKey = key
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Job.Redis.Addr = addr
	}
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.TTS.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", cfg.TTS.SampleRate)
	}
	if cfg.Cache.MaxTotalMB < 0 {
		return fmt.Errorf("invalid cache size cap: %d", cfg.Cache.MaxTotalMB)
	}
	switch cfg.Job.Store {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unsupported job store: %s", cfg.Job.Store)
	}
	return nil
}
