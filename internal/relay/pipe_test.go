package relay

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// scriptedConn is a Connection whose reads come from r (or block until Close
// when r is nil) and whose writes are recorded chunk by chunk
type scriptedConn struct {
	r          io.Reader
	writeErr   error
	shortWrite bool

	mu     sync.Mutex
	writes [][]byte
	once   sync.Once
	closed chan struct{}
}

func newScriptedConn(r io.Reader) *scriptedConn {
	return &scriptedConn{r: r, closed: make(chan struct{})}
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	if c.r == nil {
		<-c.closed
		return 0, ErrConnectionClosed
	}
	return c.r.Read(p)
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.mu.Lock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	c.mu.Unlock()
	if c.shortWrite && len(p) > 1 {
		return len(p) - 1, nil
	}
	return len(p), nil
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *scriptedConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *scriptedConn) chunks() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

type zeroReader struct{}

func (zeroReader) Read([]byte) (int, error) { return 0, nil }

// runPipe starts Pipe in the background and returns a channel with its result
func runPipe(ctx context.Context, inbound, outbound Connection) <-chan pipeResult {
	out := make(chan pipeResult, 1)
	go func() {
		stats, err := Pipe(ctx, inbound, outbound)
		out <- pipeResult{stats: stats, err: err}
	}()
	return out
}

type pipeResult struct {
	stats Stats
	err   error
}

func waitPipe(t *testing.T, results <-chan pipeResult) pipeResult {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for Pipe to return")
		return pipeResult{}
	}
}

func TestPipe_ForwardsBothDirections(t *testing.T) {
	client, inbound := NewMemoryPair()
	outbound, server := NewMemoryPair()

	results := runPipe(context.Background(), inbound, outbound)

	// client -> server
	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("Client write failed: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("Server read failed: %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("Expected server to receive %q, got %q", "ping", string(buf))
	}

	// server -> client
	if _, err := server.Write([]byte("ECHO:ping")); err != nil {
		t.Fatalf("Server write failed: %v", err)
	}
	reply := make([]byte, 9)
	if _, err := io.ReadFull(client, reply); err != nil {
		t.Fatalf("Client read failed: %v", err)
	}
	if string(reply) != "ECHO:ping" {
		t.Errorf("Expected client to receive %q, got %q", "ECHO:ping", string(reply))
	}

	// Client hangs up: clean EOF ends the session
	_ = client.Close()
	res := waitPipe(t, results)
	if res.err != nil {
		t.Errorf("Expected nil error on clean EOF, got: %v", res.err)
	}
	if res.stats.BytesUp != 4 {
		t.Errorf("Expected 4 bytes upstream, got: %d", res.stats.BytesUp)
	}
	if res.stats.BytesDown != 9 {
		t.Errorf("Expected 9 bytes downstream, got: %d", res.stats.BytesDown)
	}
}

func TestPipe_LargePayloadPreservesOrder(t *testing.T) {
	client, inbound := NewMemoryPair()
	outbound, server := NewMemoryPair()

	payload := make([]byte, 256*1024+17)
	if _, err := rand.Read(payload); err != nil {
		t.Fatalf("Failed to generate payload: %v", err)
	}

	results := runPipe(context.Background(), inbound, outbound)

	go func() {
		_, _ = client.Write(payload)
	}()

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(server, got); err != nil {
		t.Fatalf("Server read failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("Payload was altered or reordered in transit")
	}

	_ = server.Close()
	res := waitPipe(t, results)
	if res.stats.BytesUp != int64(len(payload)) {
		t.Errorf("Expected %d bytes upstream, got: %d", len(payload), res.stats.BytesUp)
	}
}

func TestPipe_ChunksAtBufferSize(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4*BufferSize+100)
	inbound := newScriptedConn(bytes.NewReader(payload))
	outbound := newScriptedConn(nil)

	res := waitPipe(t, runPipe(context.Background(), inbound, outbound))
	if res.err != nil {
		t.Fatalf("Expected nil error, got: %v", res.err)
	}

	chunks := outbound.chunks()
	var total int
	for i, c := range chunks {
		if len(c) > BufferSize {
			t.Errorf("Chunk %d is %d bytes, larger than BufferSize", i, len(c))
		}
		total += len(c)
	}
	if total != len(payload) {
		t.Errorf("Expected %d bytes written, got: %d", len(payload), total)
	}
}

func TestPipe_FailFastClosesBothSides(t *testing.T) {
	client, inbound := NewMemoryPair()
	outbound, server := NewMemoryPair()

	results := runPipe(context.Background(), inbound, outbound)

	// Destination goes away while the client is still connected
	_ = server.Close()

	res := waitPipe(t, results)
	if res.err != nil {
		t.Errorf("Expected nil error on EOF, got: %v", res.err)
	}

	// The client side must observe the session ending without closing itself
	buf := make([]byte, 1)
	if _, err := client.Read(buf); err == nil {
		t.Error("Expected client read to fail after relay ended")
	}
}

func TestPipe_ReadError(t *testing.T) {
	boom := errors.New("connection reset by peer")
	inbound := newScriptedConn(errReader{err: boom})
	outbound := newScriptedConn(nil)

	res := waitPipe(t, runPipe(context.Background(), inbound, outbound))

	var ioErr *IOError
	if !errors.As(res.err, &ioErr) {
		t.Fatalf("Expected *IOError, got: %v", res.err)
	}
	if ioErr.Direction != Upstream {
		t.Errorf("Expected direction %s, got: %s", Upstream, ioErr.Direction)
	}
	if ioErr.Op != "read" {
		t.Errorf("Expected op read, got: %s", ioErr.Op)
	}
	if !errors.Is(res.err, boom) {
		t.Errorf("Expected wrapped error %v, got: %v", boom, res.err)
	}
	if !inbound.isClosed() || !outbound.isClosed() {
		t.Error("Expected both connections to be closed")
	}
}

func TestPipe_WriteError(t *testing.T) {
	boom := errors.New("broken pipe")
	inbound := newScriptedConn(nil)
	inbound.writeErr = boom
	outbound := newScriptedConn(readerOf("reply"))

	res := waitPipe(t, runPipe(context.Background(), inbound, outbound))

	var ioErr *IOError
	if !errors.As(res.err, &ioErr) {
		t.Fatalf("Expected *IOError, got: %v", res.err)
	}
	if ioErr.Direction != Downstream || ioErr.Op != "write" {
		t.Errorf("Expected downstream write failure, got: %s %s", ioErr.Direction, ioErr.Op)
	}
}

func TestPipe_ShortWrite(t *testing.T) {
	inbound := newScriptedConn(readerOf("hello"))
	outbound := newScriptedConn(nil)
	outbound.shortWrite = true

	res := waitPipe(t, runPipe(context.Background(), inbound, outbound))

	if !errors.Is(res.err, io.ErrShortWrite) {
		t.Errorf("Expected io.ErrShortWrite, got: %v", res.err)
	}
}

func TestPipe_ZeroByteReadEndsSession(t *testing.T) {
	inbound := newScriptedConn(zeroReader{})
	outbound := newScriptedConn(nil)

	res := waitPipe(t, runPipe(context.Background(), inbound, outbound))

	if res.err != nil {
		t.Errorf("Expected nil error, got: %v", res.err)
	}
	if !outbound.isClosed() {
		t.Error("Expected outbound to be closed")
	}
}

func TestPipe_ContextCancel(t *testing.T) {
	inbound := newScriptedConn(nil)
	outbound := newScriptedConn(nil)

	ctx, cancel := context.WithCancel(context.Background())
	results := runPipe(ctx, inbound, outbound)

	cancel()

	res := waitPipe(t, results)
	if !errors.Is(res.err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", res.err)
	}
	if !inbound.isClosed() || !outbound.isClosed() {
		t.Error("Expected both connections to be closed")
	}
}

func TestIOError_Error(t *testing.T) {
	err := &IOError{Direction: Downstream, Op: "read", Err: io.ErrUnexpectedEOF}
	want := "outbound->inbound read: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}

func readerOf(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}
