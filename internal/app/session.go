// Package app wires the voice pipeline together: channel connection,
// per-speaker ingest, recognition, keyword reactions, playback and the
// ambient scheduler.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/ambient"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/config"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/events"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/keyword"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/observe"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/pipeline"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/playback"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/reaction"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/recognize"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/soundstore"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/audio"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/recognizer"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/tts"
)

// recognitionFormat is the PCM format the recognition engine consumes.
var recognitionFormat = audio.Format{SampleRate: 16000, Channels: 1}

// Session runs the full pipeline on one voice channel.
type Session struct {
	cfg      *config.Config
	platform audio.Platform
	engine   recognizer.Engine
	store    soundstore.Store
	synth    tts.Synthesizer
	bus      *events.Bus
	metrics  *observe.Metrics

	spotter    *keyword.Spotter
	controller *playback.Controller
	dispatcher *reaction.Dispatcher

	mu      sync.Mutex
	readers map[string]bool
}

// Option configures a [Session].
type Option func(*Session)

// WithSynthesizer enables the speak command.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(sess *Session) { sess.synth = s }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(sess *Session) { sess.metrics = m }
}

// New assembles a session from its parts. Run starts it.
func New(cfg *config.Config, platform audio.Platform, engine recognizer.Engine, store soundstore.Store, bus *events.Bus, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg,
		platform: platform,
		engine:   engine,
		store:    store,
		bus:      bus,
		metrics:  observe.DefaultMetrics(),
		readers:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.spotter = keyword.New(spotterEntries(cfg), keyword.WithThreshold(cfg.Keywords.Threshold))
	return s
}

// Dispatcher exposes the reaction dispatcher for command surfaces. Valid
// only while Run is active.
func (s *Session) Dispatcher() *reaction.Dispatcher { return s.dispatcher }

// Reload applies a new configuration to the running session. Only the
// keyword table is hot-swappable; other changes need a restart.
func (s *Session) Reload(cfg *config.Config) {
	s.spotter.SetEntries(spotterEntries(cfg))
	slog.Info("app: keyword table reloaded", "keywords", len(cfg.Keywords.Entries))
}

// Run connects to the configured voice channel and processes audio until
// ctx is cancelled. It returns after everything has shut down.
func (s *Session) Run(ctx context.Context) error {
	conn, err := s.platform.Connect(ctx, s.cfg.Discord.ChannelID)
	if err != nil {
		return fmt.Errorf("app: connect: %w", err)
	}
	s.metrics.ActiveChannels.Add(ctx, 1)
	defer s.metrics.ActiveChannels.Add(context.WithoutCancel(ctx), -1)

	buffer := pipeline.NewBuffer(pipeline.Config{
		SilenceTimeout: s.cfg.Pipeline.SilenceTimeout.Std(),
		MinFrames:      s.cfg.Pipeline.MinFrames,
		IdleEviction:   s.cfg.Pipeline.IdleEviction.Std(),
		StuckEviction:  s.cfg.Pipeline.StuckEviction.Std(),
	}, pipeline.WithMetrics(s.metrics))

	player := &playback.FFmpegPlayer{
		Path:   s.cfg.Playback.FFmpegPath,
		Filter: s.cfg.Playback.Filter,
	}
	s.controller = playback.NewController(player, conn.OutputStream(), playback.Config{
		StopTimeout:  s.cfg.Playback.StopTimeout.Std(),
		MaxAttempts:  s.cfg.Playback.MaxAttempts,
		RetryBackoff: s.cfg.Playback.RetryBackoff.Std(),
	},
		playback.WithMetrics(s.metrics),
		playback.WithEventSink(s.bus.PlaybackSink()),
	)

	var dispatchOpts []reaction.Option
	dispatchOpts = append(dispatchOpts, reaction.WithMetrics(s.metrics))
	if s.synth != nil {
		dispatchOpts = append(dispatchOpts, reaction.WithSynthesizer(s.synth))
	}
	s.dispatcher = reaction.New(s.store, s.controller, s.cfg.Store.SoundsDir, dispatchOpts...)

	worker := recognize.New(s.engine, buffer, s.onTranscript, recognize.Config{
		Workers:    s.cfg.Recognition.Workers,
		SampleRate: recognitionFormat.SampleRate,
		Channels:   recognitionFormat.Channels,
		Language:   s.cfg.Recognition.Language,
	}, recognize.WithMetrics(s.metrics))

	conn.OnSpeakerChange(func(ev audio.Event) {
		s.onSpeakerChange(ctx, conn, buffer, worker, ev)
	})
	s.startReaders(ctx, conn, buffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx, buffer.Utterances())
	})

	var scheduler *ambient.Scheduler
	if s.cfg.Ambient.Enabled {
		scheduler = ambient.New(s.store, s.controller, s.cfg.Store.SoundsDir,
			s.cfg.Ambient.Interval.Std(), s.cfg.Ambient.Jitter.Std())
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	<-gctx.Done()

	if scheduler != nil {
		scheduler.Stop()
	}
	s.controller.Close()
	buffer.Close()
	if err := conn.Disconnect(); err != nil {
		slog.Warn("app: disconnect", "error", err)
	}
	return g.Wait()
}

// onTranscript is the recognition handler. It returns true when a
// keyword matched, which resets the speaker's recognition context.
func (s *Session) onTranscript(ctx context.Context, utt pipeline.Utterance, text string) bool {
	match, ok := s.spotter.Spot(text)
	if !ok {
		return false
	}
	s.bus.Publish(events.Event{
		Type:    "keyword",
		Keyword: match.Keyword,
		Sound:   match.Sound,
		Speaker: utt.SpeakerID,
	})
	if err := s.dispatcher.OnKeyword(ctx, utt.SpeakerID, match); err != nil {
		slog.Error("app: keyword reaction", "keyword", match.Keyword, "error", err)
	}
	return true
}

func (s *Session) onSpeakerChange(ctx context.Context, conn audio.Connection, buffer *pipeline.Buffer, worker *recognize.Worker, ev audio.Event) {
	switch ev.Type {
	case audio.EventJoin:
		s.bus.Publish(events.Event{Type: "speaker.join", Speaker: ev.SpeakerID})
		s.startReaders(ctx, conn, buffer)
	case audio.EventLeave:
		s.bus.Publish(events.Event{Type: "speaker.leave", Speaker: ev.SpeakerID})
		buffer.Evict(ev.SpeakerID)
		worker.CloseSpeaker(ev.SpeakerID)
		s.mu.Lock()
		delete(s.readers, ev.SpeakerID)
		s.mu.Unlock()
	}
}

// startReaders spawns an ingest goroutine for every input stream that
// does not have one yet.
func (s *Session) startReaders(ctx context.Context, conn audio.Connection, buffer *pipeline.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for speakerID, ch := range conn.InputStreams() {
		if s.readers[speakerID] {
			continue
		}
		s.readers[speakerID] = true
		go s.readSpeaker(ctx, speakerID, ch, buffer)
	}
}

// readSpeaker converts one speaker's frames to the recognition format
// and feeds them into the utterance buffer. Exits when the stream
// closes or ctx is cancelled.
func (s *Session) readSpeaker(ctx context.Context, speakerID string, ch <-chan audio.Frame, buffer *pipeline.Buffer) {
	conv := &audio.Converter{Target: recognitionFormat}
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			out := conv.Convert(frame)
			if len(out.Data) == 0 {
				continue
			}
			buffer.Ingest(speakerID, out.Data, out.Duration())
		}
	}
}

func spotterEntries(cfg *config.Config) []keyword.Entry {
	entries := make([]keyword.Entry, 0, len(cfg.Keywords.Entries))
	for _, e := range cfg.Keywords.Entries {
		entries = append(entries, keyword.Entry{
			Keyword:  e.Keyword,
			Sound:    e.Sound,
			Variants: e.Variants,
		})
	}
	return entries
}
