/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend clients

ROUTE GROUPS:
  /api/products/*        Product catalog and per-product views
  /api/batches/*         Batch ledger
  /api/sales/*           FEFO sales
  /api/opening-stock/*   Daily reconciliation workflow
  /api/edit-requests/*   Edit approval workflow
  /api/admin/*           Sweep and snapshot operations
  /api/audit-logs        Audit trail queries

SECURITY NOTE:
  No authentication middleware here. The service expects a gateway in
  front of it that authenticates and forwards X-Actor-ID / X-Actor-Role.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Get("/{id}/batches", h.ListProductBatches)
			r.Get("/{id}/snapshot", h.GetProductSnapshot)
		})

		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", h.CreateBatch)
			r.Get("/{id}", h.GetBatch)
			r.Delete("/{id}", h.DeleteBatch)
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Post("/", h.SubmitSale)
			r.Get("/{id}", h.GetSale)
		})

		// Opening stock routes
		r.Route("/opening-stock", func(r chi.Router) {
			r.Get("/", h.ListOpeningStock)
			r.Post("/", h.SubmitOpeningStock)
			r.Post("/bulk", h.BulkSubmitOpeningStock)
			r.Post("/{id}/approve", h.ApproveOpeningStock)
			r.Post("/{id}/reject", h.RejectOpeningStock)
			r.Post("/{id}/edit-requests", h.RequestEdit)
		})

		// Edit request routes
		r.Route("/edit-requests", func(r chi.Router) {
			r.Post("/{id}/approve", h.ApproveEdit)
			r.Post("/{id}/reject", h.RejectEdit)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.RunSweep)
			r.Post("/recompute", h.RecomputeSnapshots)
			r.Post("/reset", h.ResetDatabase)
		})

		// Audit routes
		r.Get("/audit-logs", h.QueryAuditLogs)
	})

	return r
}
