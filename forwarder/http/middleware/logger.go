package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julienstroheker/portrelay/internal/logging"
)

// responseWriter captures the status code written by the handler
type responseWriter struct {
	http.ResponseWriter

	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack lets the events stream upgrade to a WebSocket through this wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	rw.written = true
	return hijacker.Hijack()
}

// Logger logs every admin request and its response, and stores a
// request-scoped logger in the context for handlers
func Logger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
			}
			if requestID := GetRequestID(ctx); requestID != "" {
				fields = append(fields, logging.String("request_id", requestID))
			}
			if clientRequestID := GetClientRequestID(ctx); clientRequestID != "" {
				fields = append(fields, logging.String("client_request_id", clientRequestID))
			}

			reqLogger := logger.With(fields...)
			r = r.WithContext(logging.WithContext(ctx, reqLogger))

			reqLogger.Info("Request received", logging.String("remote_addr", r.RemoteAddr))

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(rw, r)

			reqLogger.Info("Response sent",
				logging.Int("status", rw.statusCode),
				logging.Duration("duration", time.Since(start)))
		})
	}
}
