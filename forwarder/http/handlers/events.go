package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/julienstroheker/portrelay/internal/api"
	"github.com/julienstroheker/portrelay/internal/event"
	"github.com/julienstroheker/portrelay/internal/logging"
)

const (
	// subscriberBuffer is how many events a slow stream may lag behind
	subscriberBuffer = 64
	writeWait        = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NewEventsHandler upgrades to a WebSocket and streams every relay event as
// one JSON api.EventMessage per frame. The stream ends when the client goes
// away or stop is closed.
func NewEventsHandler(hub *event.Hub, stop <-chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())

		if hub == nil {
			http.Error(w, "event stream not available", http.StatusServiceUnavailable)
			return
		}

		// Carry headers set by middleware onto the handshake response
		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			// Upgrade has already replied to the client
			logger.Warn("WebSocket upgrade failed", logging.Error(err))
			return
		}
		defer func() {
			_ = conn.Close()
		}()

		events, cancel := hub.Subscribe(subscriberBuffer)
		defer cancel()

		logger.Info("Event stream opened", logging.String("remote_addr", r.RemoteAddr))

		// Drain client frames so close and ping control messages are processed
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				logger.Info("Event stream closed by client")
				return
			case <-stop:
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ToMessage(evt)); err != nil {
					logger.Warn("Event stream write failed", logging.Error(err))
					return
				}
			}
		}
	}
}

// ToMessage converts a relay event to its wire form
func ToMessage(evt event.Event) api.EventMessage {
	msg := api.EventMessage{
		Kind:        string(evt.Kind),
		Time:        evt.Time.UTC().Format(time.RFC3339Nano),
		Source:      evt.Route.Source,
		Destination: evt.Route.Destination,
		SessionID:   evt.SessionID,
		Client:      evt.Client,
		Active:      evt.Active,
		BytesUp:     evt.BytesUp,
		BytesDown:   evt.BytesDown,
		DurationMS:  evt.Duration.Milliseconds(),
	}
	if evt.Err != nil {
		msg.Error = evt.Err.Error()
	}
	return msg
}
