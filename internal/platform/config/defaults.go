package config

import "time"

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		TTS: TTSConfig{
			Provider:     "edge",
			DefaultVoice: "en-US-AriaNeural",
			Timeout:      30 * time.Second,
			SampleRate:   24000,
			Edge: EdgeConfig{
				Voice: "en-US-AriaNeural",
			},
			OpenAI: OpenAIConfig{
				Model: "tts-1",
			},
		},
		Cache: CacheConfig{
			Dir:        "data/cache",
			DSN:        "data/voiceweave.db",
			MaxAge:     7 * 24 * time.Hour,
			MaxTotalMB: 512,
		},
		Output: OutputConfig{
			Dir:          "data/output",
			CleanupDelay: 10 * time.Minute,
		},
		Job: JobConfig{
			Store:     "memory",
			Retention: time.Hour,
		},
	}
}
