package middleware

import (
	"context"
	"net/http"
	"unicode"

	"github.com/google/uuid"
)

// Header names used to correlate admin requests. The relay's own log lines
// for a request carry both values, and /api/events repeats them on the
// WebSocket upgrade response.
const (
	RequestIDHeader       = "X-Request-Id"
	ClientRequestIDHeader = "X-Client-Request-Id"
)

// maxClientRequestIDLen caps caller-supplied IDs before they reach the logs
const maxClientRequestIDLen = 128

type requestIDsKey struct{}

// RequestIDs identifies one admin request
type RequestIDs struct {
	// Request is assigned by the admin server for every request
	Request string
	// Client is the caller's X-Client-Request-Id, if it was usable
	Client string
}

// Telemetry assigns each admin request an ID and stores it, together with
// the caller's own ID, in the request context and the response headers.
// Client IDs that are too long or contain control characters are dropped
// so they cannot forge text log lines.
func Telemetry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := RequestIDs{
			Request: uuid.NewString(),
			Client:  sanitizeClientRequestID(r.Header.Get(ClientRequestIDHeader)),
		}

		w.Header().Set(RequestIDHeader, ids.Request)
		if ids.Client != "" {
			w.Header().Set(ClientRequestIDHeader, ids.Client)
		}

		ctx := context.WithValue(r.Context(), requestIDsKey{}, ids)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IDsFromContext returns the IDs Telemetry stored, or zero values
func IDsFromContext(ctx context.Context) RequestIDs {
	ids, _ := ctx.Value(requestIDsKey{}).(RequestIDs)
	return ids
}

// GetRequestID returns the server-assigned request ID
func GetRequestID(ctx context.Context) string {
	return IDsFromContext(ctx).Request
}

// GetClientRequestID returns the caller-supplied request ID
func GetClientRequestID(ctx context.Context) string {
	return IDsFromContext(ctx).Client
}

func sanitizeClientRequestID(id string) string {
	if len(id) > maxClientRequestIDLen {
		return ""
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return ""
		}
	}
	return id
}
