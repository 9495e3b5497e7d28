// Package audio provides the PCM clip model used by the synthesis
// pipeline: MP3 decoding, silence generation, concatenation with
// resampling, and WAV container encoding.
package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"voiceweave-server-go/internal/platform/errors"
)

const (
	// BitsPerSample is fixed: all clips are 16-bit little-endian PCM.
	BitsPerSample = 16

	// DefaultSampleRate matches the rate Edge TTS emits.
	DefaultSampleRate = 24000
)

// Clip is a run of mono 16-bit little-endian PCM samples.
type Clip struct {
	Data       []byte
	SampleRate int
}

// Duration reports the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	samples := len(c.Data) / 2
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Silence produces a clip of zero samples lasting d at the given rate.
func Silence(d time.Duration, sampleRate int) Clip {
	if d < 0 {
		d = 0
	}
	samples := int(int64(d) * int64(sampleRate) / int64(time.Second))
	return Clip{
		Data:       make([]byte, samples*2),
		SampleRate: sampleRate,
	}
}

// DecodeMP3 decodes an MP3 byte stream into a mono PCM clip. go-mp3
// always emits 16-bit stereo at the source sample rate; the two
// channels are averaged down to one.
func DecodeMP3(data []byte) (Clip, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Clip{}, errors.Wrap(errors.KindDecode, "audio.decode_mp3", "invalid mp3 stream", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return Clip{}, errors.Wrap(errors.KindDecode, "audio.decode_mp3", "failed to read pcm frames", err)
	}

	stereo := bytesToSamples(pcm)
	mono := make([]int16, 0, len(stereo)/2)
	for i := 0; i+1 < len(stereo); i += 2 {
		mono = append(mono, int16((int32(stereo[i])+int32(stereo[i+1]))/2))
	}

	return Clip{
		Data:       samplesToBytes(mono),
		SampleRate: decoder.SampleRate(),
	}, nil
}

// Merger accumulates clips into one contiguous stream at a fixed rate.
// Appended clips are resampled when their rate differs.
type Merger struct {
	sampleRate int
	data       []byte
}

// NewMerger creates an empty accumulator at the target sample rate.
func NewMerger(sampleRate int) *Merger {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Merger{sampleRate: sampleRate}
}

// Append adds a clip to the end of the stream.
func (m *Merger) Append(c Clip) {
	if len(c.Data) == 0 {
		return
	}
	if c.SampleRate == m.sampleRate {
		m.data = append(m.data, c.Data...)
		return
	}
	samples := resamplePCM(bytesToSamples(c.Data), c.SampleRate, m.sampleRate)
	m.data = append(m.data, samplesToBytes(samples)...)
}

// AppendSilence adds d of silence to the end of the stream.
func (m *Merger) AppendSilence(d time.Duration) {
	m.data = append(m.data, Silence(d, m.sampleRate).Data...)
}

// Clip returns the accumulated stream.
func (m *Merger) Clip() Clip {
	return Clip{Data: m.data, SampleRate: m.sampleRate}
}

// EncodeWAV writes the clip as a mono 16-bit WAV stream.
func EncodeWAV(w io.Writer, c Clip) error {
	if err := writeWavHeader(w, len(c.Data), c.SampleRate, 1, BitsPerSample); err != nil {
		return errors.Wrap(errors.KindDecode, "audio.encode_wav", "failed to write header", err)
	}
	if _, err := w.Write(c.Data); err != nil {
		return errors.Wrap(errors.KindDecode, "audio.encode_wav", "failed to write samples", err)
	}
	return nil
}

// writeWavHeader emits the standard 44-byte RIFF/WAVE header.
func writeWavHeader(w io.Writer, dataLen, sampleRate, channels, bitsPerSample int) error {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 0, 44)
	buf := bytes.NewBuffer(header)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))

	_, err := w.Write(buf.Bytes())
	return err
}

// resamplePCM converts samples between rates with linear interpolation.
func resamplePCM(input []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return input
	}
	if len(input) == 0 {
		return []int16{}
	}

	outLen := int(int64(len(input)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		outLen = 1
	}
	output := make([]int16, outLen)

	for i := range output {
		pos := float64(i) * float64(fromRate) / float64(toRate)
		idx := int(pos)
		if idx >= len(input)-1 {
			output[i] = input[len(input)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(input[idx])
		b := float64(input[idx+1])
		output[i] = int16(a + (b-a)*frac)
	}

	return output
}

func bytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
