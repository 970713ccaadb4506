// Package whisper implements recognizer.Engine backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/recognizer"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that Engine satisfies recognizer.Engine.
var _ recognizer.Engine = (*Engine)(nil)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// maxPromptRunes caps the rolling transcript context carried between
	// utterances. Whisper only uses a limited prompt window anyway.
	maxPromptRunes = 224
)

// Engine implements recognizer.Engine using whisper.cpp Go bindings (CGO).
// The model is loaded once at startup and shared across all sessions.
type Engine struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the default BCP-47 language code for transcription
// (e.g. "en", "pt", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// New creates an Engine that loads the whisper.cpp model from the given file
// path. The model is loaded once and shared across all concurrent sessions.
// The caller must call Close when the engine is no longer needed.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// NewSession opens a per-speaker recognition session. Each Transcribe call
// creates its own whisper.cpp context from the shared model, so multiple
// sessions can transcribe concurrently without interference.
func (e *Engine) NewSession(ctx context.Context, cfg recognizer.SessionConfig) (recognizer.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = e.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	return &session{
		model:    e.model,
		language: lang,
		channels: ch,
	}, nil
}

// session is a live whisper recognition session. It implements
// recognizer.Session. The rolling prompt carries recent transcript text into
// the next inference so whisper keeps capitalisation and phrasing coherent
// across consecutive utterances of the same speaker.
type session struct {
	// immutable configuration (set once in NewSession)
	model    whisperlib.Model
	language string
	channels int

	mu     sync.Mutex
	prompt string
	closed bool
}

// Compile-time assertion that session satisfies recognizer.Session.
var _ recognizer.Session = (*session)(nil)

// Transcribe converts the utterance PCM to float32 mono, runs whisper.cpp
// inference using a fresh context, and returns the concatenated text.
func (s *session) Transcribe(ctx context.Context, pcm []byte) (recognizer.Result, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: context cancelled: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return recognizer.Result{}, errors.New("whisper: session is closed")
	}

	samples := pcmToFloat32Mono(pcm, s.channels)
	if len(samples) == 0 {
		return recognizer.Result{}, nil
	}

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := s.model.NewContext()
	if err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", s.language, "error", err)
	}
	if s.prompt != "" {
		wctx.SetInitialPrompt(s.prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return recognizer.Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return recognizer.Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	text := strings.Join(parts, " ")
	s.appendPrompt(text)
	return recognizer.Result{Text: text}, nil
}

// appendPrompt folds text into the rolling prompt, keeping only the most
// recent maxPromptRunes runes. Caller must hold s.mu.
func (s *session) appendPrompt(text string) {
	if text == "" {
		return
	}
	combined := strings.TrimSpace(s.prompt + " " + text)
	runes := []rune(combined)
	if len(runes) > maxPromptRunes {
		runes = runes[len(runes)-maxPromptRunes:]
	}
	s.prompt = string(runes)
}

// Reset discards the rolling prompt so the next Transcribe starts fresh.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = ""
}

// Close marks the session closed. The shared model is owned by the Engine and
// is not released here.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
