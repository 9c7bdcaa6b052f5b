// Package relay moves bytes between the two ends of a forwarded connection.
//
// # Core pieces
//
// Pipe runs one relay session: it copies inbound->outbound and
// outbound->inbound concurrently, in chunks of at most BufferSize bytes, and
// ends the whole session as soon as either direction reaches EOF or fails.
// Both connections are closed when Pipe returns. Half-closed streams are not
// kept open.
//
// Counter is the per-route live session count. Route listeners increment it
// once a destination dial succeeds and decrement it when Pipe returns.
//
// Dialer abstracts how destinations are reached. NetDialer is the TCP
// implementation used in production.
//
// # Memory implementation
//
// NewMemoryPair and MemoryDialer provide in-memory connections for tests that
// do not need real sockets.
//
// # Usage Example
//
//	dialer := &relay.NetDialer{Timeout: 10 * time.Second}
//	outbound, err := dialer.Dial(ctx, "127.0.0.1:9100")
//	if err != nil {
//	    return err
//	}
//
//	active := counter.Increment()
//	stats, err := relay.Pipe(ctx, inbound, outbound)
//	active = counter.Decrement()
package relay
