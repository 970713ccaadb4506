// Package pipeline implements the per-speaker audio buffering stage that sits
// between frame ingest and speech recognition.
//
// Incoming PCM frames are accumulated per speaker. When a speaker stays
// silent for the configured timeout, their accumulated audio is finalized
// into an Utterance and handed to the recognition stage. Buffers that are too
// short to contain speech are discarded. A background sweep evicts speaker
// entries that have gone idle or whose processing never completed.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/observe"
)

// Utterance is one finalized stretch of speech from a single speaker.
type Utterance struct {
	// SpeakerID identifies the speaker the audio came from.
	SpeakerID string

	// PCM is the concatenated 16-bit little-endian audio of the utterance.
	PCM []byte

	// Frames is the number of ingested frames the utterance spans.
	Frames int

	// Duration is the total audio duration of the utterance.
	Duration time.Duration
}

// Config holds the buffering and eviction parameters.
type Config struct {
	// SilenceTimeout is how long a speaker must stay silent before their
	// buffer is finalized.
	SilenceTimeout time.Duration

	// MinFrames is the minimum frame count for an utterance to be worth
	// transcribing. Shorter buffers are discarded at finalize time.
	MinFrames int

	// IdleEviction is how long an inactive, non-processing speaker entry is
	// kept before the sweep removes it.
	IdleEviction time.Duration

	// StuckEviction is how long a speaker entry may stay marked as
	// processing before the sweep forcibly removes it.
	StuckEviction time.Duration
}

// speakerState tracks one speaker's accumulated audio and lifecycle.
// All fields are guarded by Buffer.mu.
type speakerState struct {
	frames   [][]byte
	bytes    int
	duration time.Duration

	lastActivity time.Time

	// processing marks that a detached utterance for this speaker is still
	// in flight; a new finalize must wait until Release is called.
	processing      bool
	processingSince time.Time

	timer *time.Timer
}

// Buffer accumulates audio frames per speaker and emits finalized utterances.
// It is safe for concurrent use.
type Buffer struct {
	cfg           Config
	sweepInterval time.Duration
	metrics       *observe.Metrics

	mu       sync.Mutex
	speakers map[string]*speakerState
	closed   bool

	out chan Utterance

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a [Buffer].
type Option func(*Buffer)

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Buffer) { b.metrics = m }
}

// WithSweepInterval overrides the eviction sweep interval. The default is
// 10 seconds.
func WithSweepInterval(d time.Duration) Option {
	return func(b *Buffer) {
		if d > 0 {
			b.sweepInterval = d
		}
	}
}

// NewBuffer creates a Buffer and starts its eviction sweep goroutine.
// Call Close when done.
func NewBuffer(cfg Config, opts ...Option) *Buffer {
	b := &Buffer{
		cfg:           cfg,
		sweepInterval: 10 * time.Second,
		speakers:      make(map[string]*speakerState),
		out:           make(chan Utterance, 16),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	if b.metrics == nil {
		b.metrics = observe.DefaultMetrics()
	}

	go b.sweep()
	return b
}

// Utterances returns the channel finalized utterances are delivered on.
// The channel is never closed; stop consuming when the Buffer is closed.
func (b *Buffer) Utterances() <-chan Utterance {
	return b.out
}

// Ingest adds one frame of PCM audio for the given speaker and arms (or
// re-arms) their silence timer. Duration is the audio duration of the frame.
func (b *Buffer) Ingest(speakerID string, pcm []byte, duration time.Duration) {
	if len(pcm) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	st, ok := b.speakers[speakerID]
	if !ok {
		st = &speakerState{}
		st.timer = time.AfterFunc(b.cfg.SilenceTimeout, func() {
			b.onSilence(speakerID)
		})
		b.speakers[speakerID] = st
		b.metrics.ActiveSpeakers.Add(context.Background(), 1)
	} else {
		st.timer.Reset(b.cfg.SilenceTimeout)
	}

	st.frames = append(st.frames, pcm)
	st.bytes += len(pcm)
	st.duration += duration
	st.lastActivity = time.Now()
}

// Release clears the processing marker for a speaker, allowing their next
// buffered utterance to be finalized. The recognition stage must call this
// once per detached utterance, whether transcription succeeded or not.
func (b *Buffer) Release(speakerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.speakers[speakerID]
	if !ok {
		return
	}
	st.processing = false
	st.lastActivity = time.Now()
}

// Evict removes a speaker entry immediately, discarding any buffered audio.
// Used when the speaker leaves the channel. Safe to call for unknown IDs.
func (b *Buffer) Evict(speakerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(speakerID)
}

// ActiveSpeakers returns the number of tracked speaker entries.
func (b *Buffer) ActiveSpeakers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.speakers)
}

// Close stops the sweep goroutine and all silence timers. Utterances already
// delivered to the output channel remain readable.
func (b *Buffer) Close() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		b.closed = true
		for id := range b.speakers {
			b.removeLocked(id)
		}
		b.mu.Unlock()
	})
}

// onSilence fires when a speaker's silence timer expires. It either
// reschedules (activity raced the timer, or processing is still in flight) or
// finalizes the buffer into an Utterance.
func (b *Buffer) onSilence(speakerID string) {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return
	}
	st, ok := b.speakers[speakerID]
	if !ok {
		b.mu.Unlock()
		return
	}

	// A frame may have arrived between the timer firing and the lock being
	// taken. Re-arm for the remaining silence window.
	elapsed := time.Since(st.lastActivity)
	if elapsed < b.cfg.SilenceTimeout {
		st.timer.Reset(b.cfg.SilenceTimeout - elapsed)
		b.mu.Unlock()
		return
	}

	if len(st.frames) == 0 {
		b.mu.Unlock()
		return
	}

	// The previous utterance is still being transcribed. Keep the buffer
	// intact and try again after another silence window.
	if st.processing {
		st.timer.Reset(b.cfg.SilenceTimeout)
		b.mu.Unlock()
		return
	}

	if len(st.frames) < b.cfg.MinFrames {
		frames := len(st.frames)
		st.frames = nil
		st.bytes = 0
		st.duration = 0
		b.mu.Unlock()
		slog.Debug("pipeline: discarding short burst", "speaker", speakerID, "frames", frames)
		b.metrics.RecordUtterance(context.Background(), "discarded")
		return
	}

	// Detach: snapshot and clear under the lock so frames arriving from now
	// on land in a fresh buffer.
	pcm := make([]byte, 0, st.bytes)
	for _, f := range st.frames {
		pcm = append(pcm, f...)
	}
	utt := Utterance{
		SpeakerID: speakerID,
		PCM:       pcm,
		Frames:    len(st.frames),
		Duration:  st.duration,
	}
	st.frames = nil
	st.bytes = 0
	st.duration = 0
	st.processing = true
	st.processingSince = time.Now()
	b.mu.Unlock()

	select {
	case b.out <- utt:
	case <-b.done:
		b.Release(speakerID)
	default:
		slog.Warn("pipeline: utterance queue full, dropping",
			"speaker", speakerID, "frames", utt.Frames, "duration", utt.Duration)
		b.metrics.RecordUtterance(context.Background(), "dropped")
		b.Release(speakerID)
	}
}

// sweep periodically evicts idle and stuck speaker entries.
func (b *Buffer) sweep() {
	ticker := time.NewTicker(b.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.sweepOnce()
		}
	}
}

// sweepOnce runs a single eviction pass.
func (b *Buffer) sweepOnce() {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, st := range b.speakers {
		switch {
		case st.processing && now.Sub(st.processingSince) >= b.cfg.StuckEviction:
			slog.Warn("pipeline: evicting stuck speaker entry",
				"speaker", id, "processing_for", now.Sub(st.processingSince))
			b.removeLocked(id)
			b.metrics.RecordEviction(context.Background(), "stuck")
		case !st.processing && now.Sub(st.lastActivity) >= b.cfg.IdleEviction:
			b.removeLocked(id)
			b.metrics.RecordEviction(context.Background(), "idle")
		}
	}
}

// removeLocked deletes a speaker entry and stops its timer.
// Caller must hold b.mu.
func (b *Buffer) removeLocked(speakerID string) {
	st, ok := b.speakers[speakerID]
	if !ok {
		return
	}
	st.timer.Stop()
	delete(b.speakers, speakerID)
	b.metrics.ActiveSpeakers.Add(context.Background(), -1)
}
