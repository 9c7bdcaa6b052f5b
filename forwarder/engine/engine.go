package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/julienstroheker/portrelay/forwarder/route"
	"github.com/julienstroheker/portrelay/internal/api"
	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/event"
	"github.com/julienstroheker/portrelay/internal/logging"
	"github.com/julienstroheker/portrelay/internal/relay"
)

// ErrNoActiveRoutes is returned by Run when every route has stopped on its own
var ErrNoActiveRoutes = errors.New("no active routes")

// Engine runs one route.Listener per configured route
type Engine struct {
	listeners []*route.Listener

	mu      sync.Mutex
	started bool
}

// Options contains configuration for the Engine
type Options struct {
	// Routes to serve, in configuration order
	Routes []config.Route

	// Dialer reaches destinations; defaults to a TCP dialer using DialTimeout
	Dialer relay.Dialer

	// DialTimeout bounds each destination dial
	DialTimeout time.Duration

	// AcceptPolicy applies to every route
	AcceptPolicy config.AcceptPolicy

	// AcceptRetryInterval spaces accept retries under the retry policy
	AcceptRetryInterval time.Duration

	// Listen overrides how route sockets are bound
	Listen route.ListenFunc

	// Sink receives route and connection events from every listener
	Sink event.Sink
}

// New creates an Engine. Listeners are created up front so Status is
// meaningful before Run binds anything.
func New(opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}

	listeners := make([]*route.Listener, 0, len(opts.Routes))
	for _, r := range opts.Routes {
		listeners = append(listeners, route.NewListener(&route.Options{
			Route:               r,
			Listen:              opts.Listen,
			Dialer:              opts.Dialer,
			DialTimeout:         opts.DialTimeout,
			AcceptPolicy:        opts.AcceptPolicy,
			AcceptRetryInterval: opts.AcceptRetryInterval,
			Sink:                opts.Sink,
		}))
	}

	return &Engine{listeners: listeners}
}

// Run starts every route and blocks until all of them have terminated.
//
// A route that fails to bind or stops on an accept error never affects the
// others. Cancelling ctx closes every listener, then every live session, and
// Run returns nil once they are all joined. If every route stops without ctx
// being cancelled, Run returns ErrNoActiveRoutes joined with each route's error.
func (e *Engine) Run(ctx context.Context, logger *logging.Logger) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.started = true
	e.mu.Unlock()

	if len(e.listeners) == 0 {
		return ErrNoActiveRoutes
	}

	if logger != nil {
		logger.Info("Starting relay engine", logging.Int("routes", len(e.listeners)))
	}

	errs := make([]error, len(e.listeners))
	var wg sync.WaitGroup
	for i, l := range e.listeners {
		wg.Add(1)
		go func(i int, l *route.Listener) {
			defer wg.Done()
			errs[i] = l.Start(ctx, logger)
			// Sessions end on their own or when ctx is cancelled
			l.Wait()
		}(i, l)
	}
	wg.Wait()

	if ctx.Err() != nil {
		if logger != nil {
			logger.Info("Relay engine stopped")
		}
		return nil
	}

	var fatal []error
	for _, err := range errs {
		if err != nil {
			fatal = append(fatal, err)
		}
	}
	return errors.Join(append([]error{ErrNoActiveRoutes}, fatal...)...)
}

// Status returns a snapshot of every route, in configuration order
func (e *Engine) Status() []api.RouteStatus {
	statuses := make([]api.RouteStatus, 0, len(e.listeners))
	for _, l := range e.listeners {
		statuses = append(statuses, l.Status())
	}
	return statuses
}

// Listeners returns the route listeners, in configuration order
func (e *Engine) Listeners() []*route.Listener {
	return append([]*route.Listener(nil), e.listeners...)
}

// Ready is closed once every route has finished its bind attempt
func (e *Engine) Ready() <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		for _, l := range e.listeners {
			<-l.Ready()
		}
		close(ready)
	}()
	return ready
}
