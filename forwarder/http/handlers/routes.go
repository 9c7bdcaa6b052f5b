package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienstroheker/portrelay/internal/api"
	"github.com/julienstroheker/portrelay/internal/logging"
)

// NewRoutesHandler returns the route table with live counters as JSON
func NewRoutesHandler(routes StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		statuses := []api.RouteStatus{}
		if routes != nil {
			statuses = append(statuses, routes.Status()...)
		}

		// Marshal response to check for errors before writing status
		data, err := json.Marshal(statuses)
		if err != nil {
			logging.FromContext(r.Context()).Error("Failed to encode route status", logging.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
