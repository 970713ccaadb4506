package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/GabrielAgrela/Discord-Brain-Rot-sub000/internal/playback"
)

const writeTimeout = 5 * time.Second

// Handler streams bus events to WebSocket clients as JSON objects, one
// message per event.
type Handler struct {
	bus *Bus
}

// NewHandler creates a handler backed by bus.
func NewHandler(bus *Bus) *Handler {
	return &Handler{bus: bus}
}

var _ http.Handler = (*Handler)(nil)

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("events: websocket accept", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// CloseRead keeps the read side pumped so pings are answered and
	// client disconnects cancel the context.
	ctx := conn.CloseRead(r.Context())

	sub, cancel := h.bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				slog.Debug("events: websocket write", "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

// PlaybackSink adapts the bus to [playback.EventSink]. Events from requests
// marked SuppressUI are not forwarded.
func (b *Bus) PlaybackSink() playback.EventSink {
	return func(ev playback.Event) {
		if ev.SuppressUI {
			return
		}
		out := Event{
			Type:      "playback." + string(ev.Type),
			Sound:     ev.Sound,
			Requester: ev.Requester,
			Priority:  ev.Priority.String(),
			Elapsed:   ev.Elapsed.Seconds(),
			Duration:  ev.Duration.Seconds(),
			At:        ev.At,
		}
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
		b.Publish(out)
	}
}
