// Package segment turns annotated text into an ordered sequence of
// synthesis units. Two inline directives are recognised:
//
//	[voice <identifier>]:  switch the current voice for following text
//	[pause <seconds>]      insert silence, fractional seconds allowed
//
// Anything else, including malformed bracket text, is literal text.
package segment

// Segment is one parsed unit of input: text, a voice switch, or a pause.
type Segment interface {
	segment()
}

// TextSegment carries literal text to synthesise. Content is never
// empty after trimming; blank stretches are dropped by the parser.
type TextSegment struct {
	Content string
}

// VoiceSegment switches the current voice for subsequent text segments.
// It produces no audio of its own.
type VoiceSegment struct {
	Name string
}

// PauseSegment inserts Seconds of silence. Zero is legal.
type PauseSegment struct {
	Seconds float64
}

func (TextSegment) segment()  {}
func (VoiceSegment) segment() {}
func (PauseSegment) segment() {}
