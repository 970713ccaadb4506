package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable rendering, e.g. "48000Hz stereo".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Converter converts Frames to a target format, downmixing stereo to mono and
// resampling as needed. The resampler keeps fractional read position and the
// last sample across calls, so consecutive frames of one stream join without
// timing skew — create one Converter per speaker stream and do not share it
// across goroutines.
type Converter struct {
	Target Format

	warnedMismatch sync.Once
	warnedCorrupt  sync.Once

	// frac is the resampler's fractional read position carried between
	// frames, so consecutive frames resample as one continuous stream.
	frac float64
}

// Convert converts a frame to the target format. If the source format already
// matches the target, the frame is returned unchanged (zero allocation).
// Frames with an odd byte count are dropped: the payload is not valid int16 PCM.
func (c *Converter) Convert(frame Frame) Frame {
	if len(frame.Data)%2 != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio converter: odd byte count in PCM data, dropping frame",
				"bytes", len(frame.Data),
				"format", Format{frame.SampleRate, frame.Channels}.String(),
			)
		})
		return Frame{SampleRate: c.Target.SampleRate, Channels: c.Target.Channels, Timestamp: frame.Timestamp}
	}

	if frame.SampleRate == c.Target.SampleRate && frame.Channels == c.Target.Channels {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Debug("audio converter: converting stream format",
			"from", Format{frame.SampleRate, frame.Channels}.String(),
			"to", c.Target.String(),
		)
	})

	pcm := frame.Data

	// Downmix first so resampling operates on mono data.
	if frame.Channels == 2 && c.Target.Channels == 1 {
		pcm = StereoToMono(pcm)
	} else if frame.Channels == 1 && c.Target.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}

	if frame.SampleRate != c.Target.SampleRate {
		if c.Target.Channels == 1 {
			pcm = c.resampleMono(pcm, frame.SampleRate, c.Target.SampleRate)
		} else {
			// Stereo resampling is not needed on any current path; the
			// playback source emits the transport format directly.
			pcm = nil
		}
	}

	return Frame{
		Data:       pcm,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}
}

// Reset discards the resampler carry-over state. Call when the stream has a
// discontinuity (speaker stopped and resumed) so stale position does not
// bleed into the next utterance.
func (c *Converter) Reset() {
	c.frac = 0
}

// resampleMono resamples little-endian int16 mono PCM from srcRate to dstRate
// using linear interpolation, carrying the fractional read position into the
// next call.
func (c *Converter) resampleMono(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	srcSamples := len(pcm) / 2
	if srcSamples == 0 {
		return nil
	}

	at := func(i int) int16 {
		if i >= srcSamples {
			i = srcSamples - 1
		}
		return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}

	ratio := float64(srcRate) / float64(dstRate)
	out := make([]byte, 0, (int(float64(srcSamples)/ratio)+1)*2)

	pos := c.frac
	for pos < float64(srcSamples) {
		idx := int(pos)
		frac := pos - float64(idx)
		v := int16(float64(at(idx))*(1-frac) + float64(at(idx+1))*frac)
		out = append(out, byte(v), byte(v>>8))
		pos += ratio
	}

	c.frac = pos - float64(srcSamples)
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to the int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (l + r) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}
