package route

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/julienstroheker/portrelay/internal/api"
	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/event"
	"github.com/julienstroheker/portrelay/internal/logging"
	"github.com/julienstroheker/portrelay/internal/relay"
)

// Listener serves one route: it accepts clients on the route's source address
// and relays each of them to a fresh connection to the destination
type Listener struct {
	route        config.Route
	listen       ListenFunc
	dialer       relay.Dialer
	acceptPolicy config.AcceptPolicy
	retry        *rate.Limiter
	sink         event.Sink

	counter      relay.Counter
	accepted     atomic.Int64
	dialFailures atomic.Int64
	acceptErrors atomic.Int64
	sessions     sync.WaitGroup

	mu      sync.Mutex
	ln      net.Listener
	state   api.RouteState
	lastErr error

	ready     chan struct{}
	readyOnce sync.Once
}

// ListenFunc binds a listening socket
type ListenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// Options contains configuration for the Listener
type Options struct {
	// Route is the source/destination pair to serve
	Route config.Route

	// Listen binds the source address; defaults to net.ListenConfig.Listen
	Listen ListenFunc

	// Dialer reaches the destination; defaults to a TCP dialer using DialTimeout
	Dialer relay.Dialer

	// DialTimeout bounds each destination dial when Dialer is not set
	DialTimeout time.Duration

	// AcceptPolicy decides whether an Accept failure ends the route
	AcceptPolicy config.AcceptPolicy

	// AcceptRetryInterval spaces accept retries under the retry policy
	AcceptRetryInterval time.Duration

	// Sink receives route and connection events
	Sink event.Sink
}

// NewListener creates a new route listener
func NewListener(opts *Options) *Listener {
	if opts == nil {
		opts = &Options{}
	}

	listen := opts.Listen
	if listen == nil {
		var lc net.ListenConfig
		listen = lc.Listen
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &relay.NetDialer{Timeout: opts.DialTimeout}
	}

	policy := opts.AcceptPolicy
	if !policy.IsValid() {
		policy = config.AcceptStop
	}

	interval := opts.AcceptRetryInterval
	if interval <= 0 {
		interval = config.DefaultAcceptRetryInterval
	}

	sink := opts.Sink
	if sink == nil {
		sink = event.Discard
	}

	return &Listener{
		route:        opts.Route,
		listen:       listen,
		dialer:       dialer,
		acceptPolicy: policy,
		retry:        rate.NewLimiter(rate.Every(interval), 1),
		sink:         sink,
		state:        api.RouteStarting,
		ready:        make(chan struct{}),
	}
}

// Start binds the route's source address and serves it until ctx is cancelled,
// Close is called, or a route-fatal error occurs.
//
// A bind failure returns *BindError. An accept failure returns *AcceptError
// under the stop policy. Shutdown returns ctx.Err(), or nil after Close.
// Relay sessions started by this listener keep running until they end or ctx
// is cancelled; use Wait to join them.
func (l *Listener) Start(ctx context.Context, logger *logging.Logger) error {
	if logger != nil {
		logger.Debug("Binding route",
			logging.String("source", l.route.Source),
			logging.String("destination", l.route.Destination))
	}

	ln, err := l.listen(ctx, "tcp", l.route.Source)
	if err != nil {
		bindErr := &BindError{Addr: l.route.Source, Err: err}
		l.finish(api.RouteFailed, bindErr)
		l.markReady()
		l.publish(event.Event{Kind: event.KindRouteFailed, Err: bindErr})
		return bindErr
	}

	l.mu.Lock()
	l.ln = ln
	l.state = api.RouteListening
	l.mu.Unlock()
	l.markReady()
	l.publish(event.Event{Kind: event.KindRouteStarted})

	// Unblock Accept when the caller cancels
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()
	defer func() {
		_ = ln.Close()
	}()

	return l.serve(ctx, ln, logger)
}

// serve runs the accept loop
func (l *Listener) serve(ctx context.Context, ln net.Listener, logger *logging.Logger) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.finish(api.RouteStopped, nil)
				l.publish(event.Event{Kind: event.KindRouteStopped})
				return ctx.Err()
			}

			l.acceptErrors.Add(1)

			if l.acceptPolicy == config.AcceptRetry {
				l.setLastErr(err)
				l.publish(event.Event{Kind: event.KindAcceptError, Err: err})
				if werr := l.retry.Wait(ctx); werr != nil {
					l.finish(api.RouteStopped, nil)
					l.publish(event.Event{Kind: event.KindRouteStopped})
					return ctx.Err()
				}
				continue
			}

			acceptErr := &AcceptError{Addr: l.route.Source, Err: err}
			l.finish(api.RouteFailed, acceptErr)
			l.publish(event.Event{Kind: event.KindRouteFailed, Err: acceptErr})
			return acceptErr
		}

		l.accepted.Add(1)
		if logger != nil {
			logger.Debug("Accepted connection",
				logging.String("source", l.route.Source),
				logging.String("client", conn.RemoteAddr().String()))
		}

		l.sessions.Add(1)
		go func() {
			defer l.sessions.Done()
			l.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection dials the destination for one accepted client and relays
// the pair until either side ends
func (l *Listener) handleConnection(ctx context.Context, inbound net.Conn) {
	client := inbound.RemoteAddr().String()

	outbound, err := l.dialer.Dial(ctx, l.route.Destination)
	if err != nil {
		_ = inbound.Close()
		dialErr := &DialError{Addr: l.route.Destination, Err: err}
		l.dialFailures.Add(1)
		l.setLastErr(dialErr)
		l.publish(event.Event{
			Kind:   event.KindDialFailed,
			Client: client,
			Active: l.counter.Value(),
			Err:    dialErr,
		})
		return
	}

	sessionID := uuid.New().String()[:8]
	l.publish(event.Event{
		Kind:      event.KindConnectionOpened,
		SessionID: sessionID,
		Client:    client,
		Active:    l.counter.Increment(),
	})

	start := time.Now()
	stats, err := relay.Pipe(ctx, inbound, outbound)

	l.publish(event.Event{
		Kind:      event.KindConnectionClosed,
		SessionID: sessionID,
		Client:    client,
		Active:    l.counter.Decrement(),
		BytesUp:   stats.BytesUp,
		BytesDown: stats.BytesDown,
		Duration:  time.Since(start),
		Err:       err,
	})
}

// publish stamps evt with the route and time and hands it to the sink
func (l *Listener) publish(evt event.Event) {
	evt.Route = l.route
	evt.Time = time.Now()
	l.sink.Publish(evt)
}

func (l *Listener) markReady() {
	l.readyOnce.Do(func() {
		close(l.ready)
	})
}

func (l *Listener) finish(state api.RouteState, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	if err != nil {
		l.lastErr = err
	}
}

func (l *Listener) setLastErr(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
}

// Ready is closed once the bind attempt has finished, successfully or not
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Addr returns the bound listen address, or nil before a successful bind
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Route returns the route this listener serves
func (l *Listener) Route() config.Route {
	return l.route
}

// Counter returns the route's live session counter
func (l *Listener) Counter() *relay.Counter {
	return &l.counter
}

// Wait blocks until every relay session started by this listener has ended
func (l *Listener) Wait() {
	l.sessions.Wait()
}

// Status returns a snapshot for the admin endpoint
func (l *Listener) Status() api.RouteStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	status := api.RouteStatus{
		Source:       l.route.Source,
		Destination:  l.route.Destination,
		State:        l.state,
		Active:       l.counter.Value(),
		Accepted:     l.accepted.Load(),
		DialFailures: l.dialFailures.Load(),
		AcceptErrors: l.acceptErrors.Load(),
	}
	if l.ln != nil {
		status.ListenAddr = l.ln.Addr().String()
	}
	if l.lastErr != nil {
		status.LastError = l.lastErr.Error()
	}
	return status
}

// Close stops accepting new clients. Live sessions are not interrupted.
func (l *Listener) Close() error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
