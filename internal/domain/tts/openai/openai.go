// Package openai adapts the OpenAI speech endpoint as a synthesis
// provider. It is selected with tts.provider "openai" and needs an
// API key.
package openai

import (
	"context"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"voiceweave-server-go/internal/domain/tts"
	"voiceweave-server-go/internal/platform/config"
	"voiceweave-server-go/internal/platform/errors"
	"voiceweave-server-go/internal/platform/logging"
)

const defaultModel = "tts-1"

func init() {
	tts.Register("openai", func(cfg *config.Config, logger *logging.Logger) (tts.Provider, error) {
		return New(cfg.TTS.OpenAI.APIKey, cfg.TTS.OpenAI.BaseURL, cfg.TTS.OpenAI.Model, logger)
	})
}

// Provider synthesises speech through the OpenAI audio/speech API.
type Provider struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

// New creates an OpenAI provider. baseURL and model are optional.
func New(apiKey, baseURL, model string, logger *logging.Logger) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.KindConfig, "tts.openai.new", "api key is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = defaultModel
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}, nil
}

// Synthesize renders text as MP3 bytes using the given voice.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	const op = "tts.openai.synthesize"

	if text == "" {
		return nil, errors.New(errors.KindProvider, op, "text cannot be empty")
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindProvider, op, "openai speech request failed", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, errors.Wrap(errors.KindProvider, op, "failed to read speech response", err)
	}

	p.logger.DebugTag("TTS", "openai synthesis done, voice=%s bytes=%d", voice, len(audio))
	return audio, nil
}

// Voices lists the OpenAI speech voices.
func (p *Provider) Voices() []tts.Voice {
	return []tts.Voice{
		{ID: string(openai.VoiceAlloy), Name: "Alloy", Language: "multilingual", Gender: "Neutral", Description: "Balanced neutral voice"},
		{ID: string(openai.VoiceEcho), Name: "Echo", Language: "multilingual", Gender: "Male", Description: "Deep male voice"},
		{ID: string(openai.VoiceFable), Name: "Fable", Language: "multilingual", Gender: "Male", Description: "Expressive storytelling voice"},
		{ID: string(openai.VoiceOnyx), Name: "Onyx", Language: "multilingual", Gender: "Male", Description: "Authoritative male voice"},
		{ID: string(openai.VoiceNova), Name: "Nova", Language: "multilingual", Gender: "Female", Description: "Bright female voice"},
		{ID: string(openai.VoiceShimmer), Name: "Shimmer", Language: "multilingual", Gender: "Female", Description: "Soft female voice"},
	}
}
