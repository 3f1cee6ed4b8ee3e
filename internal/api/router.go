/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the standard middleware stack.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS policy for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// LedgerRoutes creates and returns a new router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Account-No"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Get("/banks", h.ListBanksHandler)

	r.Route("/account", func(r chi.Router) {
		r.Use(CallerIdentity)

		r.Post("/", h.CreateAccountHandler)
		r.Post("/login", h.LoginHandler)
		r.Post("/transfer", h.TransferHandler)
		r.Post("/cross-bank-transfer", h.CrossBankTransferHandler)

		r.Route("/{accountNo}", func(r chi.Router) {
			r.Get("/", h.GetAccountHandler)
			r.Put("/", h.UpdateAccountHandler)
			r.Post("/validate", h.ValidateSortCodeHandler)
			r.Patch("/deposit", h.DepositHandler)
			r.Patch("/withdraw", h.WithdrawHandler)
			r.Get("/transactions", h.ListTransactionsHandler)
			r.Post("/payees", h.AddPayeeHandler)
			r.Get("/payees", h.ListPayeesHandler)
		})
	})

	return r
}
