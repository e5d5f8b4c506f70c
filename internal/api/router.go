/**
 * @description
 * This file sets up the HTTP router for the service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers all service routes.
func NewRouter(h *Handlers, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public auth endpoints
	r.Post("/auth/register", h.RegisterHandler)
	r.Post("/auth/login", h.LoginHandler)

	// Protected routes that require authentication
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/transfer", h.TransferHandler)
			r.Post("/card-to-card", h.CardToCardTransferHandler)
			r.Post("/card-to-account", h.CardToAccountTransferHandler)
			r.Get("/{id}", h.GetTransactionHandler)
			r.Get("/user/{userId}", h.ListUserTransactionsHandler)
			r.Get("/user/{userId}/date-range", h.ListUserTransactionsByDateRangeHandler)
			r.Get("/account/{accountNumber}", h.ListAccountTransactionsHandler)
		})

		r.Route("/cards", func(r chi.Router) {
			r.Post("/", h.CreateCardHandler)
			r.Get("/{id}", h.GetCardHandler)
			r.Put("/{id}/status", h.UpdateCardStatusHandler)
			r.Delete("/{id}", h.DeleteCardHandler)
			r.Get("/user/{userId}", h.ListUserCardsHandler)
			r.Get("/account/{accountId}", h.ListAccountCardsHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsersHandler)
			r.Get("/{id}", h.GetUserHandler)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccountHandler)
			r.Get("/{id}", h.GetAccountHandler)
			r.Delete("/{id}", h.DeleteAccountHandler)
			r.Get("/user/{userId}", h.ListUserAccountsHandler)
		})
	})

	return r
}
