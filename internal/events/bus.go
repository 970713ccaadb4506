// Package events fans pipeline activity out to observers, including a
// WebSocket stream for dashboards.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Event is a single pipeline occurrence in wire form.
type Event struct {
	// Type is one of "keyword", "playback.started", "playback.progress",
	// "playback.completed", "playback.failed", "playback.preempted",
	// "playback.rejected", "playback.stopped", "speaker.join" or
	// "speaker.leave".
	Type string `json:"type"`

	Sound     string    `json:"sound,omitempty"`
	Keyword   string    `json:"keyword,omitempty"`
	Speaker   string    `json:"speaker,omitempty"`
	Requester string    `json:"requester,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Error     string    `json:"error,omitempty"`
	Elapsed   float64   `json:"elapsed,omitempty"`  // seconds, progress events only
	Duration  float64   `json:"duration,omitempty"` // seconds, zero when unknown
	At        time.Time `json:"at"`
}

const subscriberBuffer = 32

// Bus is a non-blocking publish/subscribe hub. Slow subscribers lose
// events rather than stalling the pipeline.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new observer. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber that has room for it.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("events: subscriber full, dropping", "type", ev.Type)
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
