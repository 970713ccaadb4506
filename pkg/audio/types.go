package audio

import "time"

// Frame is a single span of PCM audio moving through the pipeline. Frames are
// the atomic unit of transport: decoded from the voice channel per speaker,
// accumulated into utterances, and written back out during playback.
type Frame struct {
	// PCM payload, little-endian int16 samples.
	Data []byte

	// SampleRate in Hz (48000 for Discord Opus, 16000 for recognition input).
	SampleRate int

	// Channels: 2 for Discord voice, 1 for recognition input.
	Channels int

	// Timestamp marks when the frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame's PCM payload.
// Returns zero when the frame carries no format information.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
