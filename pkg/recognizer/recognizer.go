// Package recognizer defines the Engine interface for speech-to-text backends.
//
// An Engine wraps a speech model (e.g. a local whisper.cpp model) and opens
// per-speaker Sessions. A Session transcribes complete utterances of raw PCM
// audio and keeps lightweight recognition context between utterances so that
// consecutive transcriptions of the same speaker stay coherent. Reset discards
// that context, typically after a keyword match has been acted on.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously, one per active speaker.
package recognizer

import "context"

// SessionConfig describes the audio format and recognition hints for a new
// session. All fields must be compatible with what the underlying engine
// supports.
type SessionConfig struct {
	// SampleRate is the audio sample rate in Hz. Common value: 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// engines). Implementors may downmix multi-channel input internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g. "en", "pt").
	// An empty string lets the engine use its default.
	Language string
}

// Result is the outcome of transcribing one utterance.
type Result struct {
	// Text is the recognised text, trimmed of surrounding whitespace.
	// Empty when the utterance contained no recognisable speech.
	Text string
}

// Session is an open per-speaker recognition session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type Session interface {
	// Transcribe runs recognition over one complete utterance of raw 16-bit
	// little-endian PCM audio in the format agreed in SessionConfig. It blocks
	// until recognition completes or ctx is cancelled.
	Transcribe(ctx context.Context, pcm []byte) (Result, error)

	// Reset discards any recognition context carried between utterances.
	// The next Transcribe starts from a clean slate.
	Reset()

	// Close releases all resources held by the session. Calling Close more
	// than once is safe and returns nil.
	Close() error
}

// Engine is the abstraction over any speech-to-text backend.
type Engine interface {
	// NewSession opens a recognition session with the given configuration.
	// The caller owns the Session and must call Close when done.
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)

	// Close releases the underlying model. Sessions opened from this engine
	// must be closed first.
	Close() error
}
