package api

// RouteState describes where a route listener is in its lifecycle
type RouteState string

const (
	// RouteStarting means the listen address has not been bound yet
	RouteStarting RouteState = "starting"
	// RouteListening means the route is accepting connections
	RouteListening RouteState = "listening"
	// RouteFailed means the route stopped on a bind or accept error
	RouteFailed RouteState = "failed"
	// RouteStopped means the route was shut down on request
	RouteStopped RouteState = "stopped"
)

// RouteStatus is the admin endpoint's view of one route
type RouteStatus struct {
	Source       string     `json:"source"`
	Destination  string     `json:"destination"`
	ListenAddr   string     `json:"listen_addr,omitempty"`
	State        RouteState `json:"state"`
	Active       int64      `json:"active"`
	Accepted     int64      `json:"accepted"`
	DialFailures int64      `json:"dial_failures"`
	AcceptErrors int64      `json:"accept_errors"`
	LastError    string     `json:"last_error,omitempty"`
}

// EventMessage is the wire form of a relay event on the events stream
type EventMessage struct {
	Kind        string `json:"kind"`
	Time        string `json:"time"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	SessionID   string `json:"session_id,omitempty"`
	Client      string `json:"client,omitempty"`
	Active      int64  `json:"active"`
	BytesUp     int64  `json:"bytes_up,omitempty"`
	BytesDown   int64  `json:"bytes_down,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Error       string `json:"error,omitempty"`
}
