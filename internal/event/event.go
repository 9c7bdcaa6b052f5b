package event

import (
	"time"

	"github.com/julienstroheker/portrelay/internal/config"
)

// Kind identifies what happened
type Kind string

const (
	// KindRouteStarted is published once a route's listen address is bound
	KindRouteStarted Kind = "route.started"
	// KindRouteFailed is published when a route stops for good (bind or accept failure)
	KindRouteFailed Kind = "route.failed"
	// KindAcceptError is published when Accept fails but the route keeps serving
	KindAcceptError Kind = "route.accept_error"
	// KindRouteStopped is published when a route shuts down on request
	KindRouteStopped Kind = "route.stopped"
	// KindDialFailed is published when the destination could not be reached for one client
	KindDialFailed Kind = "connection.dial_failed"
	// KindConnectionOpened is published when a relay session starts
	KindConnectionOpened Kind = "connection.opened"
	// KindConnectionClosed is published when a relay session ends
	KindConnectionClosed Kind = "connection.closed"
)

// Event is one observation from the relay core
type Event struct {
	Kind  Kind
	Time  time.Time
	Route config.Route

	// SessionID identifies the relay session for connection events
	SessionID string
	// Client is the remote address of the accepted connection
	Client string
	// Active is the route's live session count after this event
	Active int64

	BytesUp   int64
	BytesDown int64
	Duration  time.Duration

	// Err carries the failure detail, if any
	Err error
}

// Sink receives events. Publish must not block the caller for long:
// it runs on the accept loop and session goroutines.
type Sink interface {
	Publish(evt Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(evt Event)

// Publish calls f(evt)
func (f SinkFunc) Publish(evt Event) {
	f(evt)
}

// Multi fans one event out to several sinks in order
type Multi []Sink

// Publish forwards evt to every non-nil sink
func (m Multi) Publish(evt Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(evt)
		}
	}
}

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})
