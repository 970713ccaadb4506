// Package playback owns the single playback slot of a voice connection.
//
// At most one sound plays at a time. An incoming request either claims the
// idle slot, preempts the current playback when it has sufficient priority,
// or is rejected outright; there is no queue. Preemption stops the current
// playback cooperatively and waits a bounded time for it to let go before
// the slot is forcibly reclaimed. Transient playback failures are retried on
// a fixed budget; the slot is always freed no matter how an attempt ends.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/observe"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/pkg/audio"
)

// Priority orders playback requests. Higher values preempt lower ones.
type Priority int

const (
	// PriorityAmbient is background filler. It only plays into an idle slot
	// and never preempts, not even other ambient sounds.
	PriorityAmbient Priority = iota

	// PriorityManual is an operator- or command-initiated playback.
	PriorityManual

	// PriorityInterrupt is a keyword-triggered reaction. It preempts
	// anything, including another interrupt.
	PriorityInterrupt
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PriorityAmbient:
		return "ambient"
	case PriorityManual:
		return "manual"
	case PriorityInterrupt:
		return "interrupt"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// State describes the playback slot's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateStarting
	StatePlaying
	StateStopping
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePlaying:
		return "playing"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Request describes one sound to play.
type Request struct {
	// Sound is the sound's name, used in logs and events.
	Sound string

	// Path is the audio file to play.
	Path string

	// Priority decides whether the request can claim an occupied slot.
	Priority Priority

	// Requester identifies who asked for the sound, for logs and audit
	// records. Empty for system-initiated playback.
	Requester string

	// SuppressUI marks a playback that should not be surfaced to
	// external event consumers.
	SuppressUI bool
}

// Player decodes and streams one sound. Play blocks until the audio ends,
// stop is closed, or an unrecoverable error occurs. Implementations must
// stop promptly once stop is closed.
type Player interface {
	Play(ctx context.Context, req Request, out chan<- audio.Frame, stop <-chan struct{}) error
}

// Config holds retry and stop parameters.
type Config struct {
	// StopTimeout bounds how long a preemption or Stop waits for the
	// current playback to exit before the slot is reclaimed anyway.
	StopTimeout time.Duration

	// MaxAttempts is the per-request attempt budget. Only transient
	// failures are retried.
	MaxAttempts int

	// RetryBackoff is the pause between attempts.
	RetryBackoff time.Duration

	// ProgressInterval is how often a running playback emits progress
	// events. Defaults to one second.
	ProgressInterval time.Duration
}

// slot is one granted playback occupying the controller.
type slot struct {
	req     Request
	stop    chan struct{}
	done    chan struct{}
	stopped bool // explicit Stop or preemption, guarded by Controller.mu
}

// Controller serialises playback onto a single audio output. It is safe for
// concurrent use.
type Controller struct {
	player  Player
	out     chan<- audio.Frame
	cfg     Config
	metrics *observe.Metrics
	sink    EventSink

	mu       sync.Mutex
	state    State
	current  *slot
	stopOnce sync.Once
	closed   chan struct{}
}

// Option configures a [Controller].
type Option func(*Controller)

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithEventSink registers a lifecycle event sink.
func WithEventSink(sink EventSink) Option {
	return func(c *Controller) { c.sink = sink }
}

// NewController creates a Controller that streams decoded audio to out.
func NewController(player Player, out chan<- audio.Frame, cfg Config, opts ...Option) *Controller {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = time.Second
	}
	c := &Controller{
		player: player,
		out:    out,
		cfg:    cfg,
		closed: make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// State returns the slot's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play requests playback of req. It returns once the slot decision is made:
// nil when the request was granted (playback continues in the background),
// [ErrBusy] when it was rejected. Granting may involve preempting the
// current playback, which blocks up to the configured stop timeout.
func (c *Controller) Play(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}

	c.mu.Lock()
	for c.current != nil {
		cur := c.current

		// Ambient never preempts; anything else preempts an equal or lower
		// priority playback.
		if req.Priority == PriorityAmbient || req.Priority < cur.req.Priority {
			c.mu.Unlock()
			c.emit(event(EventRejected, req))
			c.metrics.RecordPlayback(ctx, req.Priority.String(), "rejected")
			return fmt.Errorf("%w: %s playing at %s", ErrBusy, cur.req.Sound, cur.req.Priority)
		}

		// Preempt: stop the current playback and wait for it to let go.
		// A concurrent Play or Stop may already have closed the channel.
		c.state = StateStopping
		if !cur.stopped {
			cur.stopped = true
			close(cur.stop)
		}
		c.mu.Unlock()

		c.emit(event(EventPreempted, cur.req))
		c.metrics.RecordPlayback(ctx, cur.req.Priority.String(), "preempted")

		select {
		case <-cur.done:
		case <-time.After(c.cfg.StopTimeout):
			slog.Warn("playback: stop timed out, reclaiming slot",
				"sound", cur.req.Sound, "timeout", c.cfg.StopTimeout)
		}

		c.mu.Lock()
		if c.current == cur {
			// The run goroutine hung past the timeout; take the slot anyway.
			c.current = nil
			c.state = StateIdle
		}
		// Loop: another Play may have claimed the slot while we waited.
	}

	s := &slot{
		req:  req,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.current = s
	c.state = StateStarting
	c.mu.Unlock()

	go c.run(s)
	return nil
}

// Stop stops the current playback, if any, waiting up to the stop timeout.
func (c *Controller) Stop() {
	c.mu.Lock()
	cur := c.current
	if cur == nil {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	if !cur.stopped {
		cur.stopped = true
		close(cur.stop)
	}
	c.mu.Unlock()

	select {
	case <-cur.done:
	case <-time.After(c.cfg.StopTimeout):
		slog.Warn("playback: stop timed out", "sound", cur.req.Sound)
		c.mu.Lock()
		if c.current == cur {
			c.current = nil
			c.state = StateIdle
		}
		c.mu.Unlock()
	}
}

// Close stops the current playback and unblocks any retry backoff.
// Callers should not call Play after Close.
func (c *Controller) Close() {
	c.stopOnce.Do(func() { close(c.closed) })
	c.Stop()
}

// run executes one granted request with its retry budget, then frees the slot.
func (c *Controller) run(s *slot) {
	ctx := context.Background()
	start := time.Now()

	c.emit(event(EventStarted, s.req))
	go c.reportProgress(s, start)

	var err error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.setState(s, StatePlaying)
		err = c.player.Play(ctx, s.req, c.out, s.stop)
		if err == nil {
			break
		}
		if !IsTransient(err) || c.isStopped(s) {
			break
		}
		slog.Warn("playback: attempt failed",
			"sound", s.req.Sound, "attempt", attempt, "max", c.cfg.MaxAttempts, "error", err)
		if attempt < c.cfg.MaxAttempts {
			select {
			case <-s.stop:
			case <-c.closed:
			case <-time.After(c.cfg.RetryBackoff):
			}
			if c.isStopped(s) {
				break
			}
		}
	}

	// Free the slot before emitting terminal events.
	c.mu.Lock()
	stopped := s.stopped
	if c.current == s {
		c.current = nil
		c.state = StateIdle
	}
	c.mu.Unlock()
	close(s.done)

	c.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())

	switch {
	case stopped:
		// Preemption already emitted its event; an explicit Stop gets one here.
		c.emit(event(EventStopped, s.req))
		c.metrics.RecordPlayback(ctx, s.req.Priority.String(), "stopped")
	case err != nil:
		slog.Error("playback: failed", "sound", s.req.Sound, "error", err)
		ev := event(EventFailed, s.req)
		ev.Err = err
		c.emit(ev)
		c.metrics.RecordPlayback(ctx, s.req.Priority.String(), "failed")
	default:
		c.emit(event(EventCompleted, s.req))
		c.metrics.RecordPlayback(ctx, s.req.Priority.String(), "completed")
	}
}

// reportProgress emits periodic progress events until the slot finishes.
func (c *Controller) reportProgress(s *slot, start time.Time) {
	t := time.NewTicker(c.cfg.ProgressInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			ev := event(EventProgress, s.req)
			ev.Elapsed = time.Since(start)
			c.emit(ev)
		}
	}
}

// setState transitions the slot's state if s still owns the slot.
func (c *Controller) setState(s *slot, st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.state = st
	}
}

// isStopped reports whether s was stopped or preempted.
func (c *Controller) isStopped(s *slot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return s.stopped
}

// emit delivers an event to the sink, if one is registered.
func (c *Controller) emit(ev Event) {
	if c.sink != nil {
		c.sink(ev)
	}
}

// event builds a lifecycle event for req, stamped with the current time.
func event(t EventType, req Request) Event {
	return Event{
		Type:       t,
		Sound:      req.Sound,
		Priority:   req.Priority,
		Requester:  req.Requester,
		SuppressUI: req.SuppressUI,
		At:         time.Now(),
	}
}
