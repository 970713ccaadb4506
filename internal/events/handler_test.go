package events_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/events"
)

func dialStream(t *testing.T, bus *events.Bus) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(events.NewHandler(bus))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket.Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("conn.Read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}
	var ev events.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func TestHandlerStreamsEvents(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	defer bus.Close()

	conn := dialStream(t, bus)

	// The subscription happens inside ServeHTTP, after the dial returns.
	// Publish until the client sees an event.
	got := make(chan events.Event, 1)
	go func() {
		got <- readEvent(t, conn)
	}()
	deadline := time.After(5 * time.Second)
	for {
		bus.Publish(events.Event{Type: "keyword", Keyword: "horn", Speaker: "user-1"})
		select {
		case ev := <-got:
			if ev.Type != "keyword" || ev.Keyword != "horn" || ev.Speaker != "user-1" {
				t.Errorf("event = %+v", ev)
			}
			return
		case <-deadline:
			t.Fatal("client never received an event")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHandlerClosesWhenBusCloses(t *testing.T) {
	t.Parallel()
	bus := events.NewBus()
	conn := dialStream(t, bus)

	// Let the server-side subscription get established.
	time.Sleep(50 * time.Millisecond)
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("Read succeeded after bus close, want connection close")
	}
}
