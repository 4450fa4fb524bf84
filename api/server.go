/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public;
  this runs as a single-user local tool.

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

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/sync", h.Sync)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Get("/pending", h.ListPending)
			r.Get("/{id}", h.GetTransaction)
			r.Get("/{id}/questions", h.GetQuestions)
			r.Post("/{id}/answers", h.SubmitAnswers)
			r.Put("/{id}/context", h.UpdateContext)
			r.Post("/{id}/files", h.UploadFile)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", h.ListDocuments)
			r.Post("/generate", h.GenerateDocument)
			r.Get("/preview", h.PreviewDocument)
			r.Get("/{id}", h.GetDocument)
			r.Get("/{id}/download", h.DownloadDocument)
			r.Put("/{id}/transactions/{txID}", h.EditDocument)
			r.Post("/{id}/review", h.ReviewDocument)
			r.Post("/{id}/send", h.SendDocument)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", h.GetConfig)
			r.Put("/", h.UpdateConfig)
		})
	})

	return r
}
