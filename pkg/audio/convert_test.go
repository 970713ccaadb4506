package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestMonoToStereo(t *testing.T) {
	mono := samplesToBytes([]int16{100, 200, 300})
	stereo := audio.MonoToStereo(mono)
	got := bytesToSamples(stereo)
	want := []int16{100, 100, 200, 200, 300, 300}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	stereo := samplesToBytes([]int16{100, 200, -100, -200})
	mono := audio.StereoToMono(stereo)
	got := bytesToSamples(mono)
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStereoToMono_Clamping(t *testing.T) {
	// Two max-positive samples should clamp to 32767 (not overflow).
	stereo := samplesToBytes([]int16{32767, 32767})
	mono := audio.StereoToMono(stereo)
	got := bytesToSamples(mono)
	if len(got) != 1 {
		t.Fatalf("length mismatch: got %d, want 1", len(got))
	}
	if got[0] != 32767 {
		t.Errorf("got %d, want 32767", got[0])
	}
}

func TestConverter_NoOp(t *testing.T) {
	conv := &audio.Converter{
		Target: audio.Format{SampleRate: 48000, Channels: 2},
	}
	frame := audio.Frame{
		Data:       samplesToBytes([]int16{100, 200}),
		SampleRate: 48000,
		Channels:   2,
	}
	result := conv.Convert(frame)
	// Same slice — pointer equality check.
	if &result.Data[0] != &frame.Data[0] {
		t.Error("expected same slice (zero allocation) for matching format")
	}
}

func TestConverter_StereoToMonoDownsample(t *testing.T) {
	// The ingest path: 48kHz stereo from the voice channel down to
	// 16kHz mono for recognition. One 20ms frame is 960 stereo sample
	// pairs in, roughly 320 mono samples out.
	conv := &audio.Converter{
		Target: audio.Format{SampleRate: 16000, Channels: 1},
	}
	in := make([]int16, 960*2)
	for i := range in {
		in[i] = int16(i % 1000)
	}
	result := conv.Convert(audio.Frame{
		Data:       samplesToBytes(in),
		SampleRate: 48000,
		Channels:   2,
	})
	if result.SampleRate != 16000 || result.Channels != 1 {
		t.Errorf("unexpected format: %dHz %dch", result.SampleRate, result.Channels)
	}
	got := len(bytesToSamples(result.Data))
	if got < 315 || got > 325 {
		t.Errorf("expected ~320 mono samples, got %d", got)
	}
}

func TestConverter_ContinuityAcrossFrames(t *testing.T) {
	// Consecutive frames must resample as one stream: total output
	// length equals the single-shot conversion of the concatenated
	// input, within one sample.
	single := &audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	split := &audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}

	in := make([]int16, 961) // deliberately not divisible by 3
	for i := range in {
		in[i] = int16(i)
	}
	pcm := samplesToBytes(in)

	whole := single.Convert(audio.Frame{Data: pcm, SampleRate: 48000, Channels: 1})

	a := split.Convert(audio.Frame{Data: pcm[:400], SampleRate: 48000, Channels: 1})
	b := split.Convert(audio.Frame{Data: pcm[400:], SampleRate: 48000, Channels: 1})

	wholeN := len(whole.Data) / 2
	splitN := (len(a.Data) + len(b.Data)) / 2
	if diff := wholeN - splitN; diff < -1 || diff > 1 {
		t.Errorf("split conversion produced %d samples, single-shot %d", splitN, wholeN)
	}
}

func TestConverter_ResetDiscardsCarryOver(t *testing.T) {
	conv := &audio.Converter{Target: audio.Format{SampleRate: 16000, Channels: 1}}
	pcm := samplesToBytes(make([]int16, 961))

	first := conv.Convert(audio.Frame{Data: pcm, SampleRate: 48000, Channels: 1})
	conv.Reset()
	second := conv.Convert(audio.Frame{Data: pcm, SampleRate: 48000, Channels: 1})

	if len(first.Data) != len(second.Data) {
		t.Errorf("after Reset the same input produced %d bytes, first run %d",
			len(second.Data), len(first.Data))
	}
}

func TestConverter_OddByteCount(t *testing.T) {
	conv := &audio.Converter{
		Target: audio.Format{SampleRate: 16000, Channels: 1},
	}
	result := conv.Convert(audio.Frame{
		Data:       []byte{1, 2, 3}, // odd, invalid for int16 PCM
		SampleRate: 48000,
		Channels:   1,
	})
	if len(result.Data) != 0 {
		t.Errorf("expected empty data for odd byte count, got %d bytes", len(result.Data))
	}
	// Dropped frame should carry target format, not source format.
	if result.SampleRate != 16000 || result.Channels != 1 {
		t.Errorf("unexpected format: %dHz %dch", result.SampleRate, result.Channels)
	}
}

func TestFrameDuration(t *testing.T) {
	frame := audio.Frame{
		Data:       make([]byte, 3840), // 960 stereo sample pairs
		SampleRate: 48000,
		Channels:   2,
	}
	if d := frame.Duration(); d != 20*time.Millisecond {
		t.Errorf("Duration = %v, want 20ms", d)
	}
	if d := (audio.Frame{Data: []byte{1, 2}}).Duration(); d != 0 {
		t.Errorf("Duration without format = %v, want 0", d)
	}
}

func TestFormatString(t *testing.T) {
	if got := (audio.Format{SampleRate: 48000, Channels: 2}).String(); got != "48000Hz stereo" {
		t.Errorf("String() = %q", got)
	}
	if got := (audio.Format{SampleRate: 16000, Channels: 1}).String(); got != "16000Hz mono" {
		t.Errorf("String() = %q", got)
	}
}
