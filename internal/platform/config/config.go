package config

import (
	"time"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	TTS    TTSConfig    `yaml:"tts"`
	Cache  CacheConfig  `yaml:"cache"`
	Output OutputConfig `yaml:"output"`
	Job    JobConfig    `yaml:"job"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// TTSConfig selects the synthesis provider and its per-provider settings.
type TTSConfig struct {
	Provider     string        `yaml:"provider"`
	DefaultVoice string        `yaml:"default_voice"`
	Timeout      time.Duration `yaml:"timeout"`
	SampleRate   int           `yaml:"sample_rate"`
	Edge         EdgeConfig    `yaml:"edge"`
	OpenAI       OpenAIConfig  `yaml:"openai"`
}

type EdgeConfig struct {
	Voice string `yaml:"voice"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"url"`
	Model   string `yaml:"model"`
}

// CacheConfig controls the content-addressed synthesis cache.
type CacheConfig struct {
	Dir        string        `yaml:"dir"`
	DSN        string        `yaml:"dsn"`
	MaxAge     time.Duration `yaml:"max_age"`
	MaxTotalMB int64         `yaml:"max_total_mb"`
}

// OutputConfig controls transient merged-audio artifacts.
type OutputConfig struct {
	Dir          string        `yaml:"dir"`
	CleanupDelay time.Duration `yaml:"cleanup_delay"`
}

// JobConfig selects the progress store backend.
type JobConfig struct {
	Store     string         `yaml:"store"`
	Retention time.Duration  `yaml:"retention"`
	Redis     JobRedisConfig `yaml:"redis,omitempty"`
}

type JobRedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}
