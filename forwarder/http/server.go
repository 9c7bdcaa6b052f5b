package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienstroheker/portrelay/forwarder/http/handlers"
	"github.com/julienstroheker/portrelay/forwarder/http/middleware"
	"github.com/julienstroheker/portrelay/internal/event"
	"github.com/julienstroheker/portrelay/internal/logging"
)

// Server is the optional admin HTTP server
type Server struct {
	server *http.Server
	addr   string
	logger *logging.Logger

	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
}

// Options configures the admin server
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:9090"
	Addr string

	// Routes supplies route status for /healthz and /api/routes
	Routes handlers.StatusProvider

	// Hub feeds the /api/events stream; nil disables it
	Hub *event.Hub

	Logger *logging.Logger
}

// NewServer creates a new admin server instance
func NewServer(opts *Options) *Server {
	if opts == nil {
		opts = &Options{}
	}

	s := &Server{
		addr:   opts.Addr,
		logger: opts.Logger,
		stop:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handlers.NewHealthHandler(opts.Routes))
	mux.HandleFunc("/api/routes", handlers.NewRoutesHandler(opts.Routes))
	mux.HandleFunc("/api/events", handlers.NewEventsHandler(opts.Hub, s.stop))

	// Telemetry runs first so the logger sees the request IDs
	var handler http.Handler = mux
	handler = middleware.Logger(opts.Logger)(handler)
	handler = middleware.Telemetry(handler)

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe binds Addr and serves until Shutdown or Close
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves admin requests on ln
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("Admin server listening", logging.String("addr", ln.Addr().String()))
	}
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the server and ends open event streams
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopStreams()
	return s.server.Shutdown(ctx)
}

// Close immediately closes the server
func (s *Server) Close() error {
	s.stopStreams()
	return s.server.Close()
}

func (s *Server) stopStreams() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Addr returns the bound address once serving, or the configured one before
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Handler exposes the full middleware chain for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
