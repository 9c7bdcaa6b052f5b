package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// BufferSize is the largest chunk read from one side before it is written to the other
const BufferSize = 1024

// Direction names one half of a relay session
type Direction string

const (
	// Upstream carries bytes from the accepted client to the destination
	Upstream Direction = "inbound->outbound"
	// Downstream carries bytes from the destination back to the client
	Downstream Direction = "outbound->inbound"
)

// IOError describes the read or write failure that ended a relay session
type IOError struct {
	Direction Direction
	Op        string
	Err       error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Direction, e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Stats reports how many bytes crossed a relay session in each direction
type Stats struct {
	// BytesUp were copied from the inbound to the outbound connection
	BytesUp int64
	// BytesDown were copied from the outbound to the inbound connection
	BytesDown int64
}

// Pipe copies bytes between inbound and outbound in both directions at once.
//
// The first direction to reach EOF or an error ends the whole session: both
// connections are closed, the other direction is not drained, and Pipe waits
// for it to unwind before returning. A clean EOF returns a nil error; any
// other failure is reported as an *IOError. Cancelling ctx closes both
// connections and returns ctx.Err().
func Pipe(ctx context.Context, inbound, outbound Connection) (Stats, error) {
	var up, down atomic.Int64
	done := make(chan error, 2)

	go func() {
		done <- copyChunks(outbound, inbound, Upstream, &up)
	}()
	go func() {
		done <- copyChunks(inbound, outbound, Downstream, &down)
	}()

	var err error
	pending := 2
	select {
	case err = <-done:
		pending--
	case <-ctx.Done():
		err = ctx.Err()
	}

	// Closing both ends unblocks whichever direction is still running
	_ = inbound.Close()
	_ = outbound.Close()

	// Remaining results are a consequence of the close above, not a cause
	for ; pending > 0; pending-- {
		<-done
	}

	return Stats{BytesUp: up.Load(), BytesDown: down.Load()}, err
}

// copyChunks forwards src to dst in reads of at most BufferSize bytes,
// writing each chunk in full before reading the next
func copyChunks(dst io.Writer, src io.Reader, dir Direction, total *atomic.Int64) error {
	buf := make([]byte, BufferSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			written, werr := dst.Write(buf[:n])
			total.Add(int64(written))
			if werr != nil {
				return &IOError{Direction: dir, Op: "write", Err: werr}
			}
			if written != n {
				return &IOError{Direction: dir, Op: "write", Err: io.ErrShortWrite}
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil
			}
			return &IOError{Direction: dir, Op: "read", Err: rerr}
		}
		if n == 0 {
			// A zero-byte read without error is treated as end of stream
			return nil
		}
	}
}
