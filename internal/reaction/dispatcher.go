// Package reaction turns recognized keywords and user commands into
// sound playback.
package reaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/keyword"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/observe"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/playback"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/soundstore"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/tts"
)

// Player submits playback requests. Satisfied by [playback.Controller].
type Player interface {
	Play(ctx context.Context, req playback.Request) error
}

// Dispatcher resolves triggers to sounds and submits them for playback.
type Dispatcher struct {
	store     soundstore.Store
	player    Player
	soundsDir string

	synth   tts.Synthesizer
	metrics *observe.Metrics
}

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithSynthesizer enables the Speak operation.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(d *Dispatcher) { d.synth = s }
}

// New creates a dispatcher. Sound paths from the store are resolved
// relative to soundsDir unless absolute.
func New(store soundstore.Store, player Player, soundsDir string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		player:    player,
		soundsDir: soundsDir,
		metrics:   observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnKeyword reacts to a keyword spotted in a speaker's transcript. The
// mapped sound is played at interrupt priority, cutting off whatever is
// currently playing.
func (d *Dispatcher) OnKeyword(ctx context.Context, speakerID string, m keyword.Match) error {
	d.metrics.RecordKeywordMatch(ctx, m.Keyword)
	slog.Info("reaction: keyword spotted",
		"keyword", m.Keyword, "matched", m.Matched, "score", m.Score, "speaker", speakerID)

	snd, err := d.resolve(ctx, m.Sound)
	if err != nil {
		return fmt.Errorf("reaction: keyword %q: %w", m.Keyword, err)
	}
	return d.play(ctx, snd, playback.PriorityInterrupt, speakerID, "keyword")
}

// PlayManual plays a named sound on behalf of a user. The name is
// fuzzy-matched against the store.
func (d *Dispatcher) PlayManual(ctx context.Context, requesterID, name string) error {
	snd, err := d.resolve(ctx, name)
	if err != nil {
		return fmt.Errorf("reaction: play %q: %w", name, err)
	}
	return d.play(ctx, snd, playback.PriorityManual, requesterID, "manual")
}

// Speak synthesizes text and plays the result at manual priority.
// Requires a synthesizer; see [WithSynthesizer].
func (d *Dispatcher) Speak(ctx context.Context, requesterID, text string) error {
	if d.synth == nil {
		return errors.New("reaction: speech synthesis is not configured")
	}

	start := time.Now()
	path, err := d.synth.Synthesize(ctx, text)
	d.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("reaction: speak: %w", err)
	}

	snd := soundstore.Sound{Name: "tts", Path: path}
	return d.play(ctx, snd, playback.PriorityManual, requesterID, "tts")
}

func (d *Dispatcher) resolve(ctx context.Context, name string) (soundstore.Sound, error) {
	snd, err := d.store.Get(ctx, name)
	if err == nil {
		return snd, nil
	}
	if !errors.Is(err, soundstore.ErrNotFound) {
		return soundstore.Sound{}, err
	}
	return soundstore.Resolve(ctx, d.store, name)
}

func (d *Dispatcher) play(ctx context.Context, snd soundstore.Sound, prio playback.Priority, speakerID, trigger string) error {
	path := snd.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.soundsDir, path)
	}

	err := d.player.Play(ctx, playback.Request{
		Sound:     snd.Name,
		Path:      path,
		Priority:  prio,
		Requester: speakerID,
	})
	if err != nil {
		if errors.Is(err, playback.ErrBusy) {
			slog.Debug("reaction: playback busy", "sound", snd.Name, "priority", prio)
			return nil
		}
		return fmt.Errorf("reaction: %w", err)
	}

	rec := soundstore.PlayRecord{
		Sound:     snd.Name,
		SpeakerID: speakerID,
		Trigger:   trigger,
		PlayedAt:  time.Now(),
	}
	if err := d.store.RecordPlay(ctx, rec); err != nil {
		slog.Warn("reaction: record play", "sound", snd.Name, "error", err)
	}
	return nil
}
