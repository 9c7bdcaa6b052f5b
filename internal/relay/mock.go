package relay

import (
	"context"
	"errors"
	"io"
	"sync"
)

var (
	// ErrDialerClosed is returned when dialing through a closed MemoryDialer
	ErrDialerClosed = errors.New("dialer is closed")
	// ErrConnectionClosed is returned when trying to read/write on a closed connection
	ErrConnectionClosed = errors.New("connection is closed")
)

// memoryConnection represents one end of an in-memory bidirectional pipe
type memoryConnection struct {
	reader *io.PipeReader
	writer *io.PipeWriter
	mu     sync.Mutex
	closed bool
}

// Read reads data from the connection
func (c *memoryConnection) Read(p []byte) (n int, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrConnectionClosed
	}
	c.mu.Unlock()
	return c.reader.Read(p)
}

// Write writes data to the connection
func (c *memoryConnection) Write(p []byte) (n int, err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrConnectionClosed
	}
	c.mu.Unlock()
	return c.writer.Write(p)
}

// Close closes the connection; the peer sees EOF on its next read
func (c *memoryConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.reader.Close()
	_ = c.writer.Close()
	return nil
}

// NewMemoryPair returns two connected in-memory connections.
// Bytes written to one are read from the other.
func NewMemoryPair() (Connection, Connection) {
	// Pipe 1: a writes -> b reads
	bReader, aWriter := io.Pipe()
	// Pipe 2: b writes -> a reads
	aReader, bWriter := io.Pipe()

	a := &memoryConnection{reader: aReader, writer: aWriter}
	b := &memoryConnection{reader: bReader, writer: bWriter}
	return a, b
}

// MemoryDialer is an in-memory Dialer for testing. Each Dial returns one end of
// a fresh pair; the other end is delivered to Accept, playing the destination.
type MemoryDialer struct {
	connections chan Connection
	done        chan struct{}
	closeOnce   sync.Once

	mu     sync.Mutex
	dialed []string
}

// NewMemoryDialer creates a new in-memory dialer
func NewMemoryDialer() *MemoryDialer {
	return &MemoryDialer{
		connections: make(chan Connection, 10),
		done:        make(chan struct{}),
	}
}

// Dial creates a new connection pair and queues the far end for Accept.
// It blocks while the queue is full, until Accept drains it, ctx ends or the
// dialer is closed.
func (d *MemoryDialer) Dial(ctx context.Context, address string) (Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.isClosed() {
		return nil, ErrDialerClosed
	}

	near, far := NewMemoryPair()
	select {
	case d.connections <- far:
	case <-d.done:
		_ = near.Close()
		_ = far.Close()
		return nil, ErrDialerClosed
	case <-ctx.Done():
		_ = near.Close()
		_ = far.Close()
		return nil, ctx.Err()
	}

	d.mu.Lock()
	d.dialed = append(d.dialed, address)
	d.mu.Unlock()
	return near, nil
}

// Accept waits for the far end of the next dialed connection
func (d *MemoryDialer) Accept(ctx context.Context) (Connection, error) {
	if d.isClosed() {
		return nil, ErrDialerClosed
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return nil, ErrDialerClosed
	case conn := <-d.connections:
		return conn, nil
	}
}

// Dialed returns the addresses passed to Dial so far
func (d *MemoryDialer) Dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}

// Close closes the dialer; pending Dial and Accept calls return ErrDialerClosed
func (d *MemoryDialer) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	return nil
}

func (d *MemoryDialer) isClosed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}
