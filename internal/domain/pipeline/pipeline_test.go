package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceweave-server-go/internal/domain/audio"
	"voiceweave-server-go/internal/domain/cache"
	"voiceweave-server-go/internal/domain/job"
	"voiceweave-server-go/internal/domain/segment"
	"voiceweave-server-go/internal/domain/tts"
)

// fakeProvider records every synthesis call and can be told to fail
// for specific texts.
type fakeProvider struct {
	calls  []string
	voices []string
	fail   map[string]bool
}

func (f *fakeProvider) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	f.calls = append(f.calls, text)
	f.voices = append(f.voices, voice)
	if f.fail[text] {
		return nil, fmt.Errorf("synthesis refused for %q", text)
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeProvider) Voices() []tts.Voice { return nil }

// passthroughCache memoises by digest like the real store but keeps
// everything in a map.
type passthroughCache struct {
	entries map[string][]byte
}

func (c *passthroughCache) Materialize(ctx context.Context, voice, text string, synth cache.SynthFunc) ([]byte, error) {
	key := cache.Digest(voice, text)
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	if data, ok := c.entries[key]; ok {
		return data, nil
	}
	data, err := synth(ctx)
	if err != nil {
		return nil, err
	}
	c.entries[key] = data
	return data, nil
}

// fakeDecode maps every payload to a single sample so clip sizes are
// easy to reason about.
func fakeDecode(data []byte) (audio.Clip, error) {
	if string(data) == "mp3:corrupt" {
		return audio.Clip{}, fmt.Errorf("unreadable stream")
	}
	return audio.Clip{Data: []byte{1, 0}, SampleRate: 24000}, nil
}

func newTestPipeline(provider tts.Provider) *Pipeline {
	return New(Options{
		Provider:   provider,
		Cache:      &passthroughCache{},
		Decode:     fakeDecode,
		SampleRate: 24000,
	})
}

func silenceBytes(d time.Duration) int {
	return len(audio.Silence(d, 24000).Data)
}

func TestRunMergesTextAndPauses(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPipeline(provider)

	segs := segment.Parse("hello [pause 0.25] world")
	clip, err := p.Run(context.Background(), segs, "aria", nil)
	require.NoError(t, err)

	// Two one-sample clips around 250ms of silence.
	assert.Equal(t, 2+silenceBytes(250*time.Millisecond)+2, len(clip.Data))
	assert.Equal(t, []string{"hello", "world"}, provider.calls)
}

func TestRunSubstitutesSilenceOnProviderFailure(t *testing.T) {
	provider := &fakeProvider{fail: map[string]bool{"two": true}}
	p := newTestPipeline(provider)

	segs := []segment.Segment{
		segment.TextSegment{Content: "one"},
		segment.TextSegment{Content: "two"},
		segment.TextSegment{Content: "three"},
	}
	clip, err := p.Run(context.Background(), segs, "aria", nil)
	require.NoError(t, err, "a failed segment must not fail the request")

	assert.Equal(t, 2+silenceBytes(500*time.Millisecond)+2, len(clip.Data))
	assert.Equal(t, []string{"one", "two", "three"}, provider.calls,
		"every segment is still attempted")
}

func TestRunSubstitutesSilenceOnDecodeFailure(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPipeline(provider)

	segs := []segment.Segment{segment.TextSegment{Content: "corrupt"}}
	clip, err := p.Run(context.Background(), segs, "aria", nil)
	require.NoError(t, err)

	assert.Equal(t, silenceBytes(500*time.Millisecond), len(clip.Data))
}

func TestRunSwitchesVoices(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPipeline(provider)

	segs := segment.Parse("[voice X]: hello [voice Y]: world")
	_, err := p.Run(context.Background(), segs, "aria", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"X", "Y"}, provider.voices)
}

func TestRunUsesDefaultVoiceUntilDirective(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPipeline(provider)

	segs := segment.Parse("intro [voice X]: rest")
	_, err := p.Run(context.Background(), segs, "aria", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"aria", "X"}, provider.voices)
}

func TestRunReportsMonotonicProgress(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPipeline(provider)

	segs := segment.Parse("a [pause 1] b")
	var dones []int
	var lastStatus string
	_, err := p.Run(context.Background(), segs, "aria", func(done, total int, status string) {
		assert.Equal(t, 3, total)
		dones = append(dones, done)
		lastStatus = status
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, dones)
	assert.Equal(t, "Processing segment 3/3", lastStatus)
}

func TestRunEmptySegments(t *testing.T) {
	p := newTestPipeline(&fakeProvider{})

	clip, err := p.Run(context.Background(), nil, "aria", nil)
	require.NoError(t, err)
	assert.Empty(t, clip.Data)
}

func TestRunHonoursCancellation(t *testing.T) {
	p := newTestPipeline(&fakeProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []segment.Segment{segment.TextSegment{Content: "x"}}, "aria", nil)
	assert.Error(t, err)
}

func TestRunCachesRepeatedSegments(t *testing.T) {
	provider := &fakeProvider{}
	p := newTestPipeline(provider)

	segs := []segment.Segment{
		segment.TextSegment{Content: "echo"},
		segment.TextSegment{Content: "echo"},
	}
	_, err := p.Run(context.Background(), segs, "aria", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"echo"}, provider.calls,
		"identical voice and text must synthesise once")
}

func TestRunBlocks(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	p := newTestPipeline(provider)

	jobs := job.NewMemory(time.Hour)
	t.Cleanup(func() { _ = jobs.Close(ctx) })

	jobID := job.NewID()
	require.NoError(t, jobs.Create(ctx, jobID, job.Record{Total: 2, Status: "Synthesizing block 0/2"}))

	blocks := []Block{
		{Text: "first", Voice: "X"},
		{Text: "second"},
	}
	clip, err := p.RunBlocks(ctx, blocks, "aria", jobID, jobs)
	require.NoError(t, err)

	// Two one-sample clips with the inter-block gap between them.
	assert.Equal(t, 2+silenceBytes(500*time.Millisecond)+2, len(clip.Data))
	assert.Equal(t, []string{"X", "aria"}, provider.voices)

	rec, err := jobs.Get(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, rec.Complete())
	assert.Equal(t, 2, rec.Done)
	assert.Equal(t, 2, rec.Total)
	assert.Equal(t, float64(100), rec.Percentage())
}
