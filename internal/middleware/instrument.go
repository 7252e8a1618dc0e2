package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// HTTPObserver receives one observation per served request.
type HTTPObserver interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
}

// Instrument records latency per chi route pattern and logs each request.
// Either argument may be nil.
func Instrument(obs HTTPObserver, logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			if obs != nil {
				obs.ObserveHTTP(route, r.Method, status, elapsed)
			}
			if logger != nil {
				entry := logger.WithFields(log.Fields{
					"method":   r.Method,
					"route":    route,
					"status":   status,
					"duration": elapsed.String(),
				})
				if status >= http.StatusInternalServerError {
					entry.Warn("request failed")
				} else {
					entry.Debug("request served")
				}
			}
		})
	}
}
