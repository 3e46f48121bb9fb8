/**
 * @description
 * HTTP router setup for the operations-service using go-chi/chi. Staff batch actions
 * live under /admin behind the admin role; customer bill payments live under /bills.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The routing library and its standard middleware.
 * - github.com/go-chi/cors: CORS handling for the portal and e-banking frontends.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the auth and CORS settings the router needs.
type RouterConfig struct {
	Keys           KeyProvider
	Audience       string
	Issuer         string
	AdminRole      string
	AllowedOrigins []string
}

// NewRouter creates a new Chi router and registers all routes.
func NewRouter(h *Handlers, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Keys, cfg.Audience, cfg.Issuer))

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(cfg.AdminRole))
			r.Post("/batch", h.BatchHandler)
		})

		r.Route("/bills", func(r chi.Router) {
			r.Post("/invoice", h.UploadInvoiceHandler)
			r.Get("/invoice", h.GetInvoiceHandler)
			r.Delete("/invoice", h.DiscardInvoiceHandler)
			r.Post("/evaluate", h.EvaluatePaymentHandler)
			r.Post("/pay", h.PayBillHandler)
			r.Post("/pay/verified", h.SubmitVerifiedPaymentHandler)
			r.Get("/payees", h.ListPayeesHandler)
			r.Get("/verifications/{referenceID}", h.GetVerificationHandler)
		})
	})

	return r
}
