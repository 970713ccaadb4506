// Package audio defines the interfaces and types for voice-channel
// connectivity and audio stream handling.
//
// The two primary abstractions are:
//
//   - [Platform] — joins a voice channel and returns a [Connection].
//   - [Connection] — an active session on that channel, giving callers
//     per-speaker input streams, a single output stream, and speaker
//     lifecycle events.
//
// Implementations live in platform-specific adapter packages (audio/discord).
// The interfaces are intentionally narrow so the ingest and playback layers
// stay decoupled from the transport SDK.
package audio

import "context"

// EventType classifies speaker lifecycle events emitted by a [Connection].
type EventType int

const (
	// EventJoin is emitted when a speaker starts being heard on the channel.
	EventJoin EventType = iota

	// EventLeave is emitted when a speaker leaves the voice channel.
	EventLeave
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventJoin:
		return "JOIN"
	case EventLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Event describes a speaker lifecycle change on a voice channel.
type Event struct {
	// Type indicates whether the speaker joined or left.
	Type EventType

	// SpeakerID is the platform-specific unique identifier for the speaker.
	SpeakerID string

	// Username is the human-readable display name, when known.
	Username string
}

// Connection is an active session on a voice channel.
//
// A Connection is obtained from [Platform.Connect] and remains valid until
// [Connection.Disconnect] is called. Input channels are closed automatically
// when the connection terminates.
//
// Implementations must be safe for concurrent use.
type Connection interface {
	// InputStreams returns a snapshot of the current per-speaker audio
	// channels. The map key is the speaker ID; the value delivers [Frame]
	// values as they arrive from that speaker. A new entry appears for each
	// speaker whose audio is first heard and is removed (channel closed)
	// when that speaker leaves.
	//
	// Call InputStreams again after an [EventJoin] to pick up new channels.
	InputStreams() map[string]<-chan Frame

	// OutputStream returns the single write-only channel for playback
	// output. Frames written here are encoded and sent to the channel.
	//
	// Ownership: the returned channel is owned by the writer. The platform
	// does not close it on Disconnect; writes after Disconnect result in
	// dropped frames, not a panic.
	OutputStream() chan<- Frame

	// OnSpeakerChange registers cb as the callback invoked whenever a
	// speaker joins or leaves. Only one callback may be registered at a
	// time; later calls replace the registration. The callback runs on an
	// internal goroutine and must not block.
	OnSpeakerChange(cb func(Event))

	// Disconnect tears down the connection and closes all input channels.
	// Safe to call more than once; subsequent calls return nil.
	Disconnect() error
}

// Platform is the entry point for a voice-channel provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Connect joins the voice channel identified by channelID and returns
	// an active [Connection]. ctx governs the connection attempt only; the
	// Connection lives until Disconnect.
	Connect(ctx context.Context, channelID string) (Connection, error)
}
