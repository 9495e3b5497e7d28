// Package tts defines the speech synthesis provider contract and the
// provider registry used to build one from configuration.
package tts

import (
	"context"

	"voiceweave-server-go/internal/platform/config"
	"voiceweave-server-go/internal/platform/errors"
	"voiceweave-server-go/internal/platform/logging"
)

// Voice describes one selectable synthesis voice.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender"`
	Description string `json:"description"`
}

// Provider synthesises text into encoded audio. Implementations return
// MP3 bytes; decoding to PCM is the caller's concern.
type Provider interface {
	// Synthesize renders text with the given voice. Voice must not be
	// empty; defaulting happens above this layer.
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)

	// Voices lists the voices this provider accepts.
	Voices() []Voice
}

// Factory builds a Provider from configuration.
type Factory func(cfg *config.Config, logger *logging.Logger) (Provider, error)

var registry = map[string]Factory{}

// Register makes a provider constructor available under name.
// Adapters call it from init.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New builds the provider named by cfg.TTS.Provider.
func New(cfg *config.Config, logger *logging.Logger) (Provider, error) {
	factory, ok := registry[cfg.TTS.Provider]
	if !ok {
		return nil, errors.New(errors.KindConfig, "tts.new",
			"unknown tts provider: "+cfg.TTS.Provider)
	}
	return factory(cfg, logger)
}
