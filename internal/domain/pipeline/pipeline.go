// Package pipeline turns parsed segments into one merged audio clip.
// Synthesis goes through the cache, failed segments degrade to a short
// silence instead of failing the whole request, and progress is
// reported after every segment.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"voiceweave-server-go/internal/domain/audio"
	"voiceweave-server-go/internal/domain/cache"
	"voiceweave-server-go/internal/domain/job"
	"voiceweave-server-go/internal/domain/segment"
	"voiceweave-server-go/internal/domain/tts"
	"voiceweave-server-go/internal/platform/errors"
	"voiceweave-server-go/internal/platform/logging"
)

const (
	// substituteSilence replaces a segment whose synthesis or decode
	// failed, so one bad segment never sinks the whole request.
	substituteSilence = 500 * time.Millisecond

	// interBlockSilence separates consecutive blocks in a multi-block
	// request.
	interBlockSilence = 500 * time.Millisecond
)

// Materializer resolves a voice and text pair to encoded audio,
// synthesising on a cache miss.
type Materializer interface {
	Materialize(ctx context.Context, voice, text string, synth cache.SynthFunc) ([]byte, error)
}

// Decoder turns provider output into PCM.
type Decoder func(data []byte) (audio.Clip, error)

// ProgressFunc receives done, total, and a status line after each
// processed segment. done counts processed segments of any kind.
type ProgressFunc func(done, total int, status string)

// Options wires a Pipeline.
type Options struct {
	Provider   tts.Provider
	Cache      Materializer
	Decode     Decoder
	SampleRate int
	Logger     *logging.Logger
}

// Pipeline renders segment sequences into merged clips.
type Pipeline struct {
	provider   tts.Provider
	cache      Materializer
	decode     Decoder
	sampleRate int
	logger     *logging.Logger
}

// New builds a Pipeline. Decode defaults to MP3 decoding and
// SampleRate to the audio package default.
func New(opts Options) *Pipeline {
	decode := opts.Decode
	if decode == nil {
		decode = audio.DecodeMP3
	}
	rate := opts.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	return &Pipeline{
		provider:   opts.Provider,
		cache:      opts.Cache,
		decode:     decode,
		sampleRate: rate,
		logger:     opts.Logger,
	}
}

// Run renders segs into one clip. defaultVoice applies until the first
// voice directive. Progress fires before each segment and the caller
// decides when to report completion. An empty sequence yields an empty
// clip. The only hard failure is context cancellation.
func (p *Pipeline) Run(ctx context.Context, segs []segment.Segment, defaultVoice string, progress ProgressFunc) (audio.Clip, error) {
	merger := audio.NewMerger(p.sampleRate)
	voice := defaultVoice
	total := len(segs)

	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return audio.Clip{}, errors.Wrap(errors.KindDomain, "pipeline.run", "synthesis cancelled", err)
		}
		if progress != nil {
			progress(i, total, fmt.Sprintf("Processing segment %d/%d", i+1, total))
		}

		switch s := seg.(type) {
		case segment.VoiceSegment:
			voice = s.Name
		case segment.PauseSegment:
			merger.AppendSilence(time.Duration(s.Seconds * float64(time.Second)))
		case segment.TextSegment:
			merger.Append(p.renderText(ctx, voice, s.Content))
		}
	}

	if progress != nil {
		progress(total, total, fmt.Sprintf("Processing segment %d/%d", total, total))
	}
	return merger.Clip(), nil
}

// renderText synthesises one text segment, degrading to silence when
// the provider or the decoder fails.
func (p *Pipeline) renderText(ctx context.Context, voice, text string) audio.Clip {
	data, err := p.cache.Materialize(ctx, voice, text, func(ctx context.Context) ([]byte, error) {
		return p.provider.Synthesize(ctx, text, voice)
	})
	if err != nil {
		p.logger.WarnTag("AUDIO", "synthesis failed, substituting silence: %v", err)
		return audio.Silence(substituteSilence, p.sampleRate)
	}

	clip, err := p.decode(data)
	if err != nil {
		p.logger.WarnTag("AUDIO", "decode failed, substituting silence: %v", err)
		return audio.Silence(substituteSilence, p.sampleRate)
	}
	return clip
}

// Block is one unit of a multi-block request: its own text, parsed
// independently, with an optional per-block starting voice.
type Block struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// RunBlocks renders blocks in order with a short silence between them,
// tracking block-level progress in the job store under jobID. Segment
// granularity inside the current block is exposed through the record's
// segment counters. The record reaches its Complete status before
// RunBlocks returns.
func (p *Pipeline) RunBlocks(ctx context.Context, blocks []Block, defaultVoice, jobID string, jobs job.Store) (audio.Clip, error) {
	merger := audio.NewMerger(p.sampleRate)
	total := len(blocks)

	for i, block := range blocks {
		if i > 0 {
			merger.AppendSilence(interBlockSilence)
		}

		voice := block.Voice
		if voice == "" {
			voice = defaultVoice
		}

		rec := job.Record{
			Done:   i,
			Total:  total,
			Status: fmt.Sprintf("Synthesizing block %d/%d", i+1, total),
		}
		p.updateJob(ctx, jobs, jobID, rec)

		blockIndex := i
		clip, err := p.Run(ctx, segment.Parse(block.Text), voice, func(done, segTotal int, _ string) {
			snapshot := job.Record{
				Done:         blockIndex,
				Total:        total,
				Status:       fmt.Sprintf("Synthesizing block %d/%d", blockIndex+1, total),
				SegmentDone:  done,
				SegmentTotal: segTotal,
			}
			p.updateJob(ctx, jobs, jobID, snapshot)
		})
		if err != nil {
			return audio.Clip{}, err
		}
		merger.Append(clip)
	}

	p.updateJob(ctx, jobs, jobID, job.Record{
		Done:   total,
		Total:  total,
		Status: job.StatusComplete,
	})
	return merger.Clip(), nil
}

func (p *Pipeline) updateJob(ctx context.Context, jobs job.Store, jobID string, rec job.Record) {
	if jobs == nil || jobID == "" {
		return
	}
	if err := jobs.Update(ctx, jobID, rec); err != nil {
		p.logger.WarnTag("JOB", "failed to update job %s: %v", jobID, err)
	}
}
