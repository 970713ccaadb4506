package playback

import "time"

// EventType enumerates the lifecycle notifications a Controller emits.
type EventType string

const (
	// EventStarted fires when a playback begins streaming audio.
	EventStarted EventType = "started"

	// EventProgress fires periodically while a playback is running.
	EventProgress EventType = "progress"

	// EventCompleted fires when a playback reaches the end of its audio.
	EventCompleted EventType = "completed"

	// EventFailed fires when a playback gives up, after retries where
	// applicable.
	EventFailed EventType = "failed"

	// EventPreempted fires when a playback is stopped to make room for a
	// request of sufficient priority.
	EventPreempted EventType = "preempted"

	// EventRejected fires when a request is refused because the slot is
	// occupied and the request does not outrank the current playback.
	EventRejected EventType = "rejected"

	// EventStopped fires when a playback is stopped by an explicit Stop call.
	EventStopped EventType = "stopped"
)

// Event is one playback lifecycle notification.
type Event struct {
	Type     EventType
	Sound    string
	Priority Priority
	Err      error
	At       time.Time

	// Requester is carried over from the originating [Request].
	Requester string

	// SuppressUI is carried over from the originating [Request]; sinks
	// feeding external consumers should drop marked events.
	SuppressUI bool

	// Elapsed is how long the playback has been running. Set on
	// [EventProgress] only.
	Elapsed time.Duration

	// Duration is the total length of the sound when known, zero
	// otherwise. The ffmpeg source streams without probing, so it is
	// normally zero.
	Duration time.Duration
}

// EventSink receives playback events. Implementations must not block; the
// controller calls sinks synchronously from its own goroutines.
type EventSink func(Event)
