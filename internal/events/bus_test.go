package events_test

import (
	"errors"
	"testing"
	"time"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/events"
	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/playback"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	defer bus.Close()

	a, cancelA := bus.Subscribe()
	defer cancelA()
	b, cancelB := bus.Subscribe()
	defer cancelB()

	bus.Publish(events.Event{Type: "keyword", Keyword: "horn"})

	for name, ch := range map[string]<-chan events.Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Keyword != "horn" {
				t.Errorf("subscriber %s got Keyword = %q", name, ev.Keyword)
			}
			if ev.At.IsZero() {
				t.Errorf("subscriber %s got zero At", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive the event", name)
		}
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	// Must not panic or block.
	bus.Publish(events.Event{Type: "keyword"})
	cancel()
}

func TestBusFullSubscriberDoesNotBlockPublish(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	defer bus.Close()

	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			bus.Publish(events.Event{Type: "playback.started"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	ch, _ := bus.Subscribe()

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("channel still open after bus close")
	}

	late, _ := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription to a closed bus returned an open channel")
	}
}

func TestPlaybackSinkTranslatesEvents(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	sink := bus.PlaybackSink()
	sink(playback.Event{
		Type:      playback.EventFailed,
		Sound:     "airhorn",
		Priority:  playback.PriorityManual,
		Requester: "user-1",
		Err:       errors.New("boom"),
		At:        time.Now(),
	})

	select {
	case ev := <-ch:
		if ev.Type != "playback.failed" {
			t.Errorf("Type = %q, want %q", ev.Type, "playback.failed")
		}
		if ev.Sound != "airhorn" || ev.Priority != "manual" || ev.Error != "boom" {
			t.Errorf("event = %+v", ev)
		}
		if ev.Requester != "user-1" {
			t.Errorf("Requester = %q, want user-1", ev.Requester)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestPlaybackSinkDropsSuppressedEvents(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	defer bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()

	sink := bus.PlaybackSink()
	sink(playback.Event{
		Type:       playback.EventStarted,
		Sound:      "secret",
		Priority:   playback.PriorityManual,
		SuppressUI: true,
		At:         time.Now(),
	})

	select {
	case ev := <-ch:
		t.Errorf("suppressed event was forwarded: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
