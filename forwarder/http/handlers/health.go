package handlers

import (
	"net/http"

	"github.com/julienstroheker/portrelay/internal/api"
	"github.com/julienstroheker/portrelay/internal/logging"
)

// StatusProvider reports the state of every configured route
type StatusProvider interface {
	Status() []api.RouteStatus
}

// NewHealthHandler reports 200 while at least one route is listening and 503
// once none is
func NewHealthHandler(routes StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if !anyListening(routes) {
			logging.FromContext(r.Context()).Warn("Health check failed: no route is listening")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("no active routes"))
			return
		}

		w.WriteHeader(http.StatusOK)
		// Ignore write error for health check as status is already set
		_, _ = w.Write([]byte("OK"))
	}
}

func anyListening(routes StatusProvider) bool {
	if routes == nil {
		return false
	}
	for _, s := range routes.Status() {
		if s.State == api.RouteListening {
			return true
		}
	}
	return false
}
