package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public API. Identity resolution runs on the API
// subtree only; health and metrics stay cookie-free.
func NewRouter(h *Handler, identity *IdentityMiddleware) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(identity.Handler)
		api.Post("/find-nearest", h.handleFindNearest)
		api.Get("/download-kmz", h.handleDownloadKMZ)
		api.Get("/translations", h.handleTranslations)
	})

	return r
}
