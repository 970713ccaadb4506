// Package mock provides in-memory mock implementations of the
// [recognizer.Engine] and [recognizer.Session] interfaces for use in unit
// tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
package mock

import (
	"context"
	"sync"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/recognizer"
)

// ─── Session ──────────────────────────────────────────────────────────────────

// TranscribeCall records the arguments of a single [Session.Transcribe]
// invocation.
type TranscribeCall struct {
	// PCM is the audio passed to Transcribe.
	PCM []byte
}

// Session is a mock implementation of [recognizer.Session].
// Set the exported Result fields before use; inspect the Call* fields after.
type Session struct {
	mu sync.Mutex

	// TranscribeResults are returned by successive Transcribe calls, in
	// order. Once exhausted, the last entry repeats. If empty, the zero
	// Result is returned.
	TranscribeResults []recognizer.Result

	// TranscribeError is returned by every Transcribe call when non-nil.
	TranscribeError error

	// TranscribeFunc, when non-nil, overrides the canned results entirely.
	TranscribeFunc func(ctx context.Context, pcm []byte) (recognizer.Result, error)

	// CloseError is returned by [Session.Close].
	CloseError error

	// TranscribeCalls records all Transcribe invocations.
	TranscribeCalls []TranscribeCall

	// CallCountReset records how many times Reset was called.
	CallCountReset int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Transcribe implements [recognizer.Session]. Records the call and returns
// the next canned result.
func (s *Session) Transcribe(ctx context.Context, pcm []byte) (recognizer.Result, error) {
	s.mu.Lock()
	s.TranscribeCalls = append(s.TranscribeCalls, TranscribeCall{PCM: pcm})
	idx := len(s.TranscribeCalls) - 1
	fn := s.TranscribeFunc
	results := s.TranscribeResults
	err := s.TranscribeError
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, pcm)
	}
	if err != nil {
		return recognizer.Result{}, err
	}
	if len(results) == 0 {
		return recognizer.Result{}, nil
	}
	if idx >= len(results) {
		idx = len(results) - 1
	}
	return results[idx], nil
}

// Reset implements [recognizer.Session]. Records the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountReset++
}

// Close implements [recognizer.Session]. Returns CloseError.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseError
}

// ─── Engine ───────────────────────────────────────────────────────────────────

// NewSessionCall records the arguments of a single [Engine.NewSession]
// invocation.
type NewSessionCall struct {
	// Config is the configuration passed to NewSession.
	Config recognizer.SessionConfig
}

// Engine is a mock implementation of [recognizer.Engine].
type Engine struct {
	mu sync.Mutex

	// NewSessionResult is the [recognizer.Session] returned by NewSession.
	// If nil, a fresh zero-value [Session] is returned for each call.
	NewSessionResult recognizer.Session

	// NewSessionError is the error returned by NewSession.
	NewSessionError error

	// CloseError is returned by [Engine.Close].
	CloseError error

	// NewSessionCalls records all NewSession invocations.
	NewSessionCalls []NewSessionCall

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewSession implements [recognizer.Engine]. Records the call and returns
// NewSessionResult / NewSessionError.
func (e *Engine) NewSession(_ context.Context, cfg recognizer.SessionConfig) (recognizer.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, NewSessionCall{Config: cfg})
	if e.NewSessionError != nil {
		return nil, e.NewSessionError
	}
	if e.NewSessionResult != nil {
		return e.NewSessionResult, nil
	}
	return &Session{}, nil
}

// Close implements [recognizer.Engine]. Returns CloseError.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CallCountClose++
	return e.CloseError
}
