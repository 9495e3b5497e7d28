// Package edge adapts Microsoft Edge TTS as a synthesis provider.
package edge

import (
	"context"
	"sync"
	"time"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"voiceweave-server-go/internal/domain/tts"
	"voiceweave-server-go/internal/platform/config"
	"voiceweave-server-go/internal/platform/errors"
	"voiceweave-server-go/internal/platform/logging"
)

func init() {
	tts.Register("edge", func(cfg *config.Config, logger *logging.Logger) (tts.Provider, error) {
		voice := cfg.TTS.Edge.Voice
		if voice == "" {
			voice = cfg.TTS.DefaultVoice
		}
		return New(voice, logger), nil
	})
}

// Provider synthesises speech through the Edge TTS websocket service.
// A circuit breaker shields the service after repeated failures.
type Provider struct {
	fallbackVoice string
	logger        *logging.Logger
	breaker       *circuitBreaker
}

// New creates an Edge TTS provider. fallbackVoice is used when a
// request names no voice.
func New(fallbackVoice string, logger *logging.Logger) *Provider {
	return &Provider{
		fallbackVoice: fallbackVoice,
		logger:        logger,
		breaker: &circuitBreaker{
			maxFailures: 5,
			retryAfter:  30 * time.Second,
		},
	}
}

// Synthesize renders text as MP3 bytes using the given voice.
func (p *Provider) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	const op = "tts.edge.synthesize"

	if text == "" {
		return nil, errors.New(errors.KindProvider, op, "text cannot be empty")
	}
	if voice == "" {
		voice = p.fallbackVoice
	}
	if !p.breaker.allow() {
		return nil, errors.New(errors.KindProvider, op, "circuit breaker is open")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindProvider, op, "request cancelled", err)
	}

	communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(voice))
	if err != nil {
		p.breaker.recordFailure()
		return nil, errors.Wrap(errors.KindProvider, op, "failed to create edge tts communicator", err)
	}

	start := time.Now()
	audio, err := communicate.Stream()
	if err != nil {
		p.breaker.recordFailure()
		return nil, errors.Wrap(errors.KindProvider, op, "edge tts synthesis failed", err)
	}
	p.breaker.recordSuccess()

	p.logger.DebugTag("TTS", "edge synthesis done, voice=%s bytes=%d took=%v",
		voice, len(audio), time.Since(start))
	return audio, nil
}

// Voices lists commonly used Edge neural voices.
func (p *Provider) Voices() []tts.Voice {
	return []tts.Voice{
		{
			ID:          "en-US-AriaNeural",
			Name:        "Aria",
			Language:    "en-US",
			Gender:      "Female",
			Description: "English female voice - Natural",
		},
		{
			ID:          "en-US-GuyNeural",
			Name:        "Guy",
			Language:    "en-US",
			Gender:      "Male",
			Description: "English male voice - Friendly",
		},
		{
			ID:          "en-GB-SoniaNeural",
			Name:        "Sonia",
			Language:    "en-GB",
			Gender:      "Female",
			Description: "British female voice - Clear",
		},
		{
			ID:          "zh-CN-XiaoxiaoNeural",
			Name:        "Xiaoxiao",
			Language:    "zh-CN",
			Gender:      "Female",
			Description: "Chinese female voice - Natural",
		},
		{
			ID:          "zh-CN-YunyangNeural",
			Name:        "Yunyang",
			Language:    "zh-CN",
			Gender:      "Male",
			Description: "Chinese male voice - Steady",
		},
	}
}

const (
	breakerClosed = iota
	breakerOpen
	breakerHalfOpen
)

type circuitBreaker struct {
	maxFailures int
	retryAfter  time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       int
}

// allow reports whether a request may proceed. An open breaker lets a
// single probe through once retryAfter has elapsed.
func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == breakerOpen {
		if time.Since(cb.lastFailure) > cb.retryAfter {
			cb.state = breakerHalfOpen
			return true
		}
		return false
	}
	return true
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = breakerClosed
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= cb.maxFailures || cb.state == breakerHalfOpen {
		cb.state = breakerOpen
	}
}
