package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	httpMiddleware "github.com/drullandev/trust-engine/internal/adapters/http/middleware"
)

type RouterConfig struct {
	Trust    *TrustHandler
	Verifier httpMiddleware.ClearanceVerifier
	Proxies  *httpMiddleware.ClientIPResolver
	AdminKey string
}

// NewRouter wires the trust API and the demo route guarded by admission control.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", HealthHandler)

	r.Group(func(r chi.Router) {
		r.Use(httpMiddleware.NewAdmissionMiddleware(cfg.Trust.controller, cfg.Verifier, cfg.Proxies))
		r.Get("/test", TestHandler)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/identities/{identity}", cfg.Trust.GetIdentity)
		r.Get("/stats", cfg.Trust.Stats)

		// Everything that changes an identity's state comes from the
		// embedding backend.
		r.Group(func(r chi.Router) {
			r.Use(httpMiddleware.RequireAdminKey(cfg.AdminKey))
			r.Post("/outcomes", cfg.Trust.ReportOutcome)
			r.Post("/requests", cfg.Trust.RecordRequest)
			r.Put("/identities/{identity}/suspicious", cfg.Trust.MarkSuspicious)
			r.Delete("/identities/{identity}/suspicious", cfg.Trust.ClearSuspicious)
			r.Put("/identities/{identity}/block", cfg.Trust.Block)
			r.Delete("/identities/{identity}/block", cfg.Trust.Unblock)
			r.Post("/clearances", cfg.Trust.IssueClearance)
		})
	})

	return r
}
