/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. requestLog: zerolog request/response logging
  4. CORS:       Cross-origin requests for the UI shell

SECURITY NOTE:
  No authentication middleware. The engine trusts the actorId supplied
  by the caller; identity is established by the surrounding system.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log zerolog.Logger, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			r.Post("/actions", h.ApplyAction)
			r.Get("/{docNo}", h.GetDocument)
			r.Get("/{docNo}/history", h.GetHistory)
			r.Get("/{docNo}/sendback-levels", h.GetSendBackLevels)
		})

		r.Get("/inbox", h.GetInbox)
		r.Get("/worklist", h.GetWorklist)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/register", h.GetRegister)
			r.Get("/outstanding", h.GetOutstanding)
			r.Get("/status", h.GetStatus)
		})

		r.Get("/refdocs/{refDocNo}/items", h.GetRefItems)
	})

	return r
}

// requestLog logs one line per request with method, path, status and
// duration.
func requestLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("requestId", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
