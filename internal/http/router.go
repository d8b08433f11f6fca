package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes are the handlers mounted by NewRouter. MockProvider is optional.
type Routes struct {
	Realtime     http.Handler
	MockProvider http.Handler
	Ready        func() bool
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if routes.Ready != nil && !routes.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("draining"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/realtime", routes.Realtime)
		if routes.MockProvider != nil {
			r.Method(http.MethodGet, "/mock-provider", routes.MockProvider)
		}
	})

	return r
}
