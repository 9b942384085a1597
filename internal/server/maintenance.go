package server

import (
	"net/http"
	"strings"
)

// MaintenanceNotice is the static page served while the launcher is down
// for maintenance.
type MaintenanceNotice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// DefaultMaintenanceNotice is the notice served in maintenance mode.
var DefaultMaintenanceNotice = MaintenanceNotice{
	Title:   "We'll be back soon!",
	Message: "Sorry for the inconvenience, but we're performing some maintenance at the moment. We'll be back online!",
}

// MaintenanceMiddleware answers every request except /metrics with 503 and
// the notice. Nothing behind it is reached.
func MaintenanceMiddleware(notice MaintenanceNotice) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/metrics/") {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "300")
			writeJSON(w, http.StatusServiceUnavailable, notice)
		})
	}
}
