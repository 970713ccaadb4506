// Package recognize runs the speech-recognition stage: a bounded pool of
// workers that transcribe finalized utterances using per-speaker recognizer
// sessions.
//
// Sessions are created lazily on a speaker's first utterance and reused for
// the rest of their activity, so the recognizer can carry context between
// consecutive utterances. When a downstream keyword match is acted on, the
// speaker's session is reset so stale context cannot re-trigger the match.
// A failed transcription is isolated to its own utterance: the error is
// logged, the speaker's buffer slot is released, and the worker moves on.
package recognize

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/observe"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/pipeline"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/recognizer"
)

// Releaser clears a speaker's in-flight processing marker. Implemented by
// [pipeline.Buffer].
type Releaser interface {
	Release(speakerID string)
}

// Handler receives each non-empty transcript. Returning true signals that
// the transcript was acted on (a keyword fired) and the speaker's
// recognition context should be reset.
type Handler func(ctx context.Context, utt pipeline.Utterance, text string) bool

// Config holds the worker pool parameters.
type Config struct {
	// Workers is the number of concurrent transcription workers.
	Workers int

	// SampleRate and Channels describe the PCM format of incoming
	// utterances.
	SampleRate int
	Channels   int

	// Language is the recognition language hint passed to new sessions.
	Language string
}

// Worker transcribes utterances from the buffering stage. It is safe for
// concurrent use.
type Worker struct {
	engine   recognizer.Engine
	releaser Releaser
	handler  Handler
	cfg      Config
	metrics  *observe.Metrics

	mu       sync.Mutex
	sessions map[string]recognizer.Session
}

// Option configures a [Worker].
type Option func(*Worker)

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// New creates a Worker pool. handler may be nil, in which case transcripts
// are only counted. Call Run to start processing.
func New(engine recognizer.Engine, releaser Releaser, handler Handler, cfg Config, opts ...Option) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	w := &Worker{
		engine:   engine,
		releaser: releaser,
		handler:  handler,
		cfg:      cfg,
		sessions: make(map[string]recognizer.Session),
	}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	return w
}

// Run consumes utterances until ctx is cancelled. It blocks; run it in a
// goroutine. All per-speaker sessions are closed before Run returns.
func (w *Worker) Run(ctx context.Context, utterances <-chan pipeline.Utterance) error {
	g, ctx := errgroup.WithContext(ctx)
	for range w.cfg.Workers {
		g.Go(func() error {
			return w.loop(ctx, utterances)
		})
	}
	err := g.Wait()
	w.closeAllSessions()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loop is one worker goroutine.
func (w *Worker) loop(ctx context.Context, utterances <-chan pipeline.Utterance) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case utt, ok := <-utterances:
			if !ok {
				return nil
			}
			w.process(ctx, utt)
		}
	}
}

// process transcribes a single utterance. Errors never propagate past this
// point; the speaker's buffer slot is always released.
func (w *Worker) process(ctx context.Context, utt pipeline.Utterance) {
	defer w.releaser.Release(utt.SpeakerID)

	sess, err := w.session(ctx, utt.SpeakerID)
	if err != nil {
		slog.Error("recognize: cannot open session",
			"speaker", utt.SpeakerID, "error", err)
		w.metrics.RecordUtterance(ctx, "error")
		return
	}

	start := time.Now()
	res, err := sess.Transcribe(ctx, utt.PCM)
	w.metrics.RecognitionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		slog.Warn("recognize: transcription failed",
			"speaker", utt.SpeakerID, "duration", utt.Duration, "error", err)
		w.metrics.RecordUtterance(ctx, "error")
		return
	}

	if res.Text == "" {
		w.metrics.RecordUtterance(ctx, "empty")
		return
	}

	slog.Debug("recognize: transcript",
		"speaker", utt.SpeakerID, "text", res.Text, "audio", utt.Duration)
	w.metrics.RecordUtterance(ctx, "transcribed")

	if w.handler != nil && w.handler(ctx, utt, res.Text) {
		sess.Reset()
	}
}

// session returns the speaker's recognition session, creating it lazily.
func (w *Worker) session(ctx context.Context, speakerID string) (recognizer.Session, error) {
	w.mu.Lock()
	if sess, ok := w.sessions[speakerID]; ok {
		w.mu.Unlock()
		return sess, nil
	}
	w.mu.Unlock()

	// Open outside the lock; engine calls may be slow.
	sess, err := w.engine.NewSession(ctx, recognizer.SessionConfig{
		SampleRate: w.cfg.SampleRate,
		Channels:   w.cfg.Channels,
		Language:   w.cfg.Language,
	})
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.sessions[speakerID]; ok {
		// Another worker won the race.
		_ = sess.Close()
		return existing, nil
	}
	w.sessions[speakerID] = sess
	return sess, nil
}

// CloseSpeaker closes and forgets a speaker's session, typically when they
// leave the channel. Safe to call for unknown IDs.
func (w *Worker) CloseSpeaker(speakerID string) {
	w.mu.Lock()
	sess, ok := w.sessions[speakerID]
	delete(w.sessions, speakerID)
	w.mu.Unlock()
	if ok {
		if err := sess.Close(); err != nil {
			slog.Warn("recognize: session close failed", "speaker", speakerID, "error", err)
		}
	}
}

// ActiveSessions returns the number of open per-speaker sessions.
func (w *Worker) ActiveSessions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

// closeAllSessions closes every open session.
func (w *Worker) closeAllSessions() {
	w.mu.Lock()
	sessions := w.sessions
	w.sessions = make(map[string]recognizer.Session)
	w.mu.Unlock()
	for id, sess := range sessions {
		if err := sess.Close(); err != nil {
			slog.Warn("recognize: session close failed", "speaker", id, "error", err)
		}
	}
}
