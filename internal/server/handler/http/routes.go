package http

import (
	"net/http"

	"github.com/ayermolov/vaultkeeper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the HTTP handler serving the vault API. It applies
// JSON content-type enforcement and request logging globally, and bearer
// authentication on every route except registration and login.
//
// Routes:
//
//	POST   /api/register           → authHandler.Register
//	POST   /api/login              → authHandler.Login
//	GET    /api/entries            → vaultHandler.ListEntries
//	POST   /api/entries            → vaultHandler.AddEntry
//	PUT    /api/entries/{id}       → vaultHandler.UpdateEntry
//	DELETE /api/entries/{id}       → vaultHandler.DeleteEntry
//	GET    /api/categories         → vaultHandler.ListCategories
//	POST   /api/categories         → vaultHandler.DeclareCategory
//	DELETE /api/categories/{name}  → vaultHandler.DeleteCategory
//	GET    /api/export             → vaultHandler.Export
func NewRouter(
	authHandler *AuthHandler,
	vaultHandler *VaultHandler,
	sessions middleware.SessionResolver,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json (bodyless
	// requests pass through)
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// Protected group: requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(sessions))

			r.Get("/entries", vaultHandler.ListEntries)
			r.Post("/entries", vaultHandler.AddEntry)
			r.Put("/entries/{id}", vaultHandler.UpdateEntry)
			r.Delete("/entries/{id}", vaultHandler.DeleteEntry)

			r.Get("/categories", vaultHandler.ListCategories)
			r.Post("/categories", vaultHandler.DeclareCategory)
			r.Delete("/categories/{name}", vaultHandler.DeleteCategory)

			r.Get("/export", vaultHandler.Export)
		})
	})

	return r
}
