package relay

import (
	"context"
	"io"
	"net"
	"time"
)

// Connection represents one end of a relayed byte stream
type Connection interface {
	io.ReadWriteCloser
}

// Dialer opens outbound connections to a route's destination
type Dialer interface {
	// Dial establishes a connection to address
	Dial(ctx context.Context, address string) (Connection, error)
}

// NetDialer dials TCP destinations through net.Dialer
type NetDialer struct {
	// Timeout bounds each dial; zero means no limit beyond ctx
	Timeout time.Duration
}

// Dial establishes a TCP connection to address
func (d *NetDialer) Dial(ctx context.Context, address string) (Connection, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	return dialer.DialContext(ctx, "tcp", address)
}
